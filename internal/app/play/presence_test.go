package play

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
)

var (
	alice = user.User{ID: "u-alice", Username: "alice", DisplayName: "Alice"}
	bob   = user.User{ID: "u-bob", Username: "bob", DisplayName: "Bob"}
	carol = user.User{ID: "u-carol", Username: "carol", DisplayName: "Carol"}
)

type sentEvent struct {
	event   string
	payload any
}

// fakeConn records everything the coordinator components try to deliver.
// Safe for use from timer goroutines.
type fakeConn struct {
	mu     sync.Mutex
	events []sentEvent
	kicked bool
}

func (f *fakeConn) SendEvent(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{event: event, payload: payload})
	return nil
}

func (f *fakeConn) SendError(event string, customErr *errs.CustomError) {
	f.SendEvent(event, customErr)
}

func (f *fakeConn) Kick(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = true
}

func (f *fakeConn) wasKicked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kicked
}

// received returns how many events with the given name were delivered.
func (f *fakeConn) received(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.events {
		if e.event == event {
			count++
		}
	}
	return count
}

// last returns the most recent delivered event.
func (f *fakeConn) last() (sentEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.events) == 0 {
		return sentEvent{}, false
	}
	return f.events[len(f.events)-1], true
}

func TestRegisterBroadcastsOnline(t *testing.T) {
	r := NewRegistry()

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}

	r.Register(alice, aliceConn)
	r.Register(bob, bobConn)

	assert.Equal(t, 1, aliceConn.received(EventUserOnline), "existing users hear about the newcomer")
	assert.Equal(t, 0, bobConn.received(EventUserOnline), "the newcomer does not hear about itself")

	conn, ok := r.Lookup(bob.ID)
	require.True(t, ok)
	assert.Same(t, bobConn, conn.(*fakeConn))
}

func TestRegisterReplacesOldConnection(t *testing.T) {
	r := NewRegistry()

	oldConn := &fakeConn{}
	newConn := &fakeConn{}
	observer := &fakeConn{}

	r.Register(carol, observer)
	r.Register(alice, oldConn)
	r.Register(alice, newConn)

	assert.True(t, oldConn.wasKicked())
	assert.False(t, newConn.wasKicked())

	conn, ok := r.Lookup(alice.ID)
	require.True(t, ok)
	assert.Same(t, newConn, conn.(*fakeConn))

	assert.Equal(t, 1, observer.received(EventUserOnline), "re-registration is not a new arrival")
}

func TestUnregisterIsStaleSafe(t *testing.T) {
	r := NewRegistry()

	oldConn := &fakeConn{}
	newConn := &fakeConn{}
	observer := &fakeConn{}

	r.Register(carol, observer)
	r.Register(alice, oldConn)
	r.Register(alice, newConn)

	// The old connection's disconnect arrives after the replacement.
	_, removed := r.Unregister(oldConn)
	assert.False(t, removed)

	_, ok := r.Lookup(alice.ID)
	assert.True(t, ok, "stale unregister must not drop the live entry")
	assert.Equal(t, 0, observer.received(EventUserOffline))

	u, removed := r.Unregister(newConn)
	assert.True(t, removed)
	assert.Equal(t, alice.ID, u.ID)
	assert.Equal(t, 1, observer.received(EventUserOffline))

	_, ok = r.Lookup(alice.ID)
	assert.False(t, ok)
}

func TestSuspendKeepsUserVisible(t *testing.T) {
	r := NewRegistry()

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}

	r.Register(alice, aliceConn)
	r.Register(bob, bobConn)
	r.SetStatus(alice.ID, StatusInGame)

	require.True(t, r.Suspend(aliceConn))
	assert.False(t, r.Suspend(aliceConn), "a detached handle matches nothing")

	_, ok := r.Lookup(alice.ID)
	assert.False(t, ok, "a suspended user has no reachable connection")

	_, status, ok := r.Get(alice.ID)
	require.True(t, ok, "a suspended user stays visible to others")
	assert.Equal(t, StatusInGame, status)
	assert.Equal(t, 0, bobConn.received(EventUserOffline), "suspension is silent")

	// Broadcasts skip the detached entry instead of touching it.
	r.Broadcast(EventUserBusy, UserStatusPayload{User: bob, Status: StatusInGame}, bob.ID)

	// Returning on a fresh connection revives the entry without a new arrival.
	newConn := &fakeConn{}
	r.Register(alice, newConn)

	conn, ok := r.Lookup(alice.ID)
	require.True(t, ok)
	assert.Same(t, newConn, conn.(*fakeConn))
	assert.Equal(t, 0, bobConn.received(EventUserOnline), "revival is not a new arrival")
}

func TestDropIfSuspended(t *testing.T) {
	r := NewRegistry()

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}

	r.Register(alice, aliceConn)
	r.Register(bob, bobConn)

	assert.False(t, r.DropIfSuspended(alice.ID), "live entries are left alone")
	assert.False(t, r.DropIfSuspended("u-stranger"))

	require.True(t, r.Suspend(aliceConn))
	assert.True(t, r.DropIfSuspended(alice.ID))

	_, _, ok := r.Get(alice.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, bobConn.received(EventUserOffline), "the final disconnect is broadcast once")

	assert.False(t, r.DropIfSuspended(alice.ID))
	assert.Equal(t, 1, bobConn.received(EventUserOffline))
}

func TestSetStatusBroadcasts(t *testing.T) {
	r := NewRegistry()

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}

	r.Register(alice, aliceConn)
	r.Register(bob, bobConn)

	r.SetStatus(alice.ID, StatusInGame)
	assert.Equal(t, 1, bobConn.received(EventUserBusy))
	assert.Equal(t, 0, aliceConn.received(EventUserBusy), "status changes are not echoed to the subject")

	_, status, ok := r.Get(alice.ID)
	require.True(t, ok)
	assert.Equal(t, StatusInGame, status)

	// Setting the same status again is silent.
	r.SetStatus(alice.ID, StatusInGame)
	assert.Equal(t, 1, bobConn.received(EventUserBusy))

	r.SetStatus(alice.ID, StatusAvailable)
	assert.Equal(t, 1, bobConn.received(EventUserAvailable))

	// Unknown identities are ignored.
	r.SetStatus("u-stranger", StatusInGame)
}
