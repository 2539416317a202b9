/*
Package play contains the real-time session coordinator.

This file defines the Registry, the live in-memory map from user identity to
its current connection handle and availability status. It is point-in-time
truth: losing it on process restart is acceptable since clients re-register on
(re)connect.
*/
package play

import (
	"sync"

	"github.com/rs/zerolog"

	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
)

// Conn is the connection handle the coordinator holds for a user. A live
// WebSocket Client satisfies it; tests substitute fakes.
type Conn interface {
	// SendEvent queues an event envelope for delivery to the connection.
	SendEvent(event string, payload any) error

	// SendError queues a coded error event for the connection.
	SendError(event string, customErr *errs.CustomError)

	// Kick closes the connection because its session was replaced.
	Kick(reason string)
}

// PresenceStatus is a user's availability as seen by other users.
type PresenceStatus string

const (
	StatusAvailable PresenceStatus = "available"
	StatusInGame    PresenceStatus = "in-game"
)

// presenceEntry binds one connected user to its current connection handle.
// A nil conn marks a suspended entry: an in-game user whose connection dropped
// and whose reconnection grace window is still running.
type presenceEntry struct {
	user   user.User
	conn   Conn
	status PresenceStatus
}

// UserStatusPayload is the payload of user-online/user-offline/user-busy/
// user-available broadcasts.
type UserStatusPayload struct {
	User   user.User      `json:"user"`
	Status PresenceStatus `json:"status"`
}

// Registry tracks which users are currently reachable over a real-time
// connection and whether each is available or in a game.
type Registry struct {
	// mu protects concurrent access to the entries map.
	mu sync.RWMutex

	// entries maps user identity to its presence entry, one per connected user.
	entries map[string]*presenceEntry

	logger zerolog.Logger
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*presenceEntry),
		logger:  logx.Logger().With().Str("component", "PresenceRegistry").Logger(),
	}
}

// Register binds a user to a connection handle, replacing any prior handle for
// that identity; the replaced connection is kicked. Registering over a
// suspended entry revives it silently, since the user never left others' view.
// Registration is idempotent for the same handle. New registrations broadcast
// user-online to everyone else.
func (r *Registry) Register(u user.User, conn Conn) {
	r.mu.Lock()

	var replaced Conn
	entry, exists := r.entries[u.ID]

	if exists {
		if entry.conn != conn {
			replaced = entry.conn
			entry.conn = conn
		}
		entry.user = u
	} else {
		r.entries[u.ID] = &presenceEntry{user: u, conn: conn, status: StatusAvailable}
	}

	r.mu.Unlock()

	if replaced != nil {
		r.logger.Warn().
			Str("user_id", u.ID).
			Msg("User already connected. Replacing old connection.")
		replaced.Kick("Session replaced by new connection.")
	}

	if !exists {
		r.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("User registered.")
		r.Broadcast(EventUserOnline, UserStatusPayload{User: u, Status: StatusAvailable}, u.ID)
	}
}

// Unregister removes the entry whose current handle equals the given
// connection. It is a no-op when no entry matches, which covers stale
// disconnect events after the user already re-registered on a new connection.
// It returns the removed user and true when an entry was actually removed.
func (r *Registry) Unregister(conn Conn) (user.User, bool) {
	r.mu.Lock()

	var removed *presenceEntry
	for id, entry := range r.entries {
		if entry.conn == conn {
			removed = entry
			delete(r.entries, id)
			break
		}
	}

	r.mu.Unlock()

	if removed == nil {
		return user.User{}, false
	}

	r.logger.Info().Str("user_id", removed.user.ID).Msg("User unregistered.")
	r.Broadcast(EventUserOffline, UserStatusPayload{User: removed.user}, removed.user.ID)

	return removed.user, true
}

// Suspend detaches the connection from its presence entry without removing the
// entry, keeping the user visible to others while their grace window runs.
// Nothing is broadcast. It is a no-op for stale handles, returning false.
func (r *Registry) Suspend(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		if entry.conn == conn {
			entry.conn = nil
			return true
		}
	}
	return false
}

// DropIfSuspended removes a suspended entry and broadcasts user-offline. This
// is the user's final disconnect: their grace window resolved in forfeiture
// instead of a rejoin. Live and unknown entries are left alone.
func (r *Registry) DropIfSuspended(userID string) bool {
	r.mu.Lock()

	entry, ok := r.entries[userID]
	if !ok || entry.conn != nil {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, userID)
	u := entry.user

	r.mu.Unlock()

	r.logger.Info().Str("user_id", u.ID).Msg("Suspended user dropped after grace window.")
	r.Broadcast(EventUserOffline, UserStatusPayload{User: u}, u.ID)

	return true
}

// Lookup returns the current connection handle for a user identity. Suspended
// entries have no reachable connection.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok || entry.conn == nil {
		return nil, false
	}
	return entry.conn, true
}

// Get returns a registered user's identity and status.
func (r *Registry) Get(userID string) (user.User, PresenceStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return user.User{}, "", false
	}
	return entry.user, entry.status, true
}

// SetStatus updates a user's availability and broadcasts the change
// (user-busy for in-game, user-available otherwise) to all other users.
// Unknown identities are ignored.
func (r *Registry) SetStatus(userID string, status PresenceStatus) {
	r.mu.Lock()

	entry, ok := r.entries[userID]
	if !ok || entry.status == status {
		r.mu.Unlock()
		return
	}
	entry.status = status
	u := entry.user

	r.mu.Unlock()

	event := EventUserAvailable
	if status == StatusInGame {
		event = EventUserBusy
	}

	r.Broadcast(event, UserStatusPayload{User: u, Status: status}, userID)
}

// Broadcast queues an event for every connected user except exceptID.
func (r *Registry) Broadcast(event string, payload any, exceptID string) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.entries))
	for id, entry := range r.entries {
		if id == exceptID || entry.conn == nil {
			continue
		}
		conns = append(conns, entry.conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.SendEvent(event, payload); err != nil {
			r.logger.Warn().Err(err).Str("event", event).Msg("Failed to queue broadcast event")
		}
	}
}
