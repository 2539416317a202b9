/*
Package play contains the real-time session coordinator.

This file defines the GameManager, the table of live game sessions and the
per-game binding from player identity to its current connection handle. The
binding is what join-game refreshes after a reconnect, so move notifications
always reach the newest connection.
*/
package play

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dominet/internal/app/game"
	"dominet/internal/pkg/logx"
)

// gameEntry is one live session plus the connection bound per player.
type gameEntry struct {
	session *game.Session

	// conns maps player identity to the connection currently bound for this
	// game. A player may be absent while disconnected.
	conns map[string]Conn
}

// GameManager holds every in-progress game session.
type GameManager struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*gameEntry
	logger  zerolog.Logger
}

// NewGameManager constructs an empty game table.
func NewGameManager() *GameManager {
	return &GameManager{
		entries: make(map[uuid.UUID]*gameEntry),
		logger:  logx.Logger().With().Str("component", "GameManager").Logger(),
	}
}

// Add registers a new session with both players' initial connections bound.
func (m *GameManager) Add(s *game.Session, conns map[string]Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bound := make(map[string]Conn, len(conns))
	for id, c := range conns {
		bound[id] = c
	}
	m.entries[s.ID] = &gameEntry{session: s, conns: bound}
}

// Get returns the live session for a game id.
func (m *GameManager) Get(gameID uuid.UUID) (*game.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[gameID]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Bind sets the player's current connection for the game, replacing any prior
// handle. It is how a reconnecting player resumes receiving notifications.
func (m *GameManager) Bind(gameID uuid.UUID, playerID string, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[gameID]
	if !ok {
		return false
	}
	entry.conns[playerID] = conn
	return true
}

// ConnFor returns the connection currently bound for a player in a game.
func (m *GameManager) ConnFor(gameID uuid.UUID, playerID string) (Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[gameID]
	if !ok {
		return nil, false
	}
	conn, ok := entry.conns[playerID]
	return conn, ok
}

// Unbind clears the player's binding, but only while conn is still the bound
// handle. A stale disconnect after a rebind leaves the new handle in place.
func (m *GameManager) Unbind(gameID uuid.UUID, playerID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[gameID]
	if !ok {
		return
	}
	if entry.conns[playerID] == conn {
		delete(entry.conns, playerID)
	}
}

// Remove drops the session from the table once it reached a terminal state.
func (m *GameManager) Remove(gameID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, gameID)
}

// ForConn returns every session in which the given connection is the bound
// handle for the given player. Used on disconnect to find the games a grace
// timer must be armed for.
func (m *GameManager) ForConn(playerID string, conn Conn) []*game.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*game.Session
	for _, entry := range m.entries {
		if entry.conns[playerID] == conn {
			sessions = append(sessions, entry.session)
		}
	}
	return sessions
}

// Len returns the number of live sessions.
func (m *GameManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
