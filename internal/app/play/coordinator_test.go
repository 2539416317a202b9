package play

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dominet/internal/app/game"
	authjwt "dominet/internal/pkg/auth/jwt"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
)

func newCoordinatorFixture(t *testing.T, grace time.Duration) *Coordinator {
	t.Helper()

	co := NewCoordinator(&stubGateway{}, grace, time.Minute, time.Minute)
	t.Cleanup(co.Shutdown)
	return co
}

// newDispatchClient builds a Client whose outbound traffic lands on its send
// channel instead of a socket, so tests can drive dispatch directly.
func newDispatchClient(co *Coordinator) *Client {
	return &Client{
		coord:  co,
		send:   make(chan []byte, 256),
		logger: logx.Logger().With().Str("component", "Client").Logger(),
	}
}

// sendEvent marshals the payload and dispatches one inbound envelope the way
// the read pump would.
func sendEvent(t *testing.T, co *Coordinator, c *Client, event string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	co.dispatch(c, Envelope{Event: event, Payload: raw})
}

// drainEvents decodes everything queued on the client's send channel, grouped
// by event name.
func drainEvents(t *testing.T, c *Client) map[string][]json.RawMessage {
	t.Helper()

	out := make(map[string][]json.RawMessage)
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(msg, &env))
			out[env.Event] = append(out[env.Event], env.Payload)
		default:
			return out
		}
	}
}

func errorCode(t *testing.T, raw json.RawMessage) int {
	t.Helper()

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p.Code
}

func registerClient(t *testing.T, co *Coordinator, c *Client, id, username string) {
	t.Helper()

	sendEvent(t, co, c, EventRegisterUser, RegisterUserPayload{ID: id, Username: username})
}

// startDispatchGame runs the challenge handshake between two registered
// clients and returns the new game's id.
func startDispatchGame(t *testing.T, co *Coordinator, challenger, target *Client) string {
	t.Helper()

	tu, ok := target.User()
	require.True(t, ok)
	sendEvent(t, co, challenger, EventSendChallenge, SendChallengePayload{TargetID: tu.ID})

	events := drainEvents(t, target)
	require.Len(t, events[EventChallengeReceived], 1)
	var ch Challenge
	require.NoError(t, json.Unmarshal(events[EventChallengeReceived][0], &ch))

	sendEvent(t, co, target, EventAcceptChallenge, ChallengeRefPayload{ChallengeID: ch.ID.String()})

	started := drainEvents(t, challenger)
	require.Len(t, started[EventGameStart], 1)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(started[EventGameStart][0], &snap))
	drainEvents(t, target)

	return snap.GameID
}

func TestDispatchRejectsUnregisteredSenders(t *testing.T) {
	co := newCoordinatorFixture(t, time.Hour)
	c := newDispatchClient(co)

	sendEvent(t, co, c, EventSendChallenge, SendChallengePayload{TargetID: bob.ID})
	events := drainEvents(t, c)
	require.Len(t, events[EventChallengeError], 1)
	assert.Equal(t, errs.ErrUserNotRegistered, errorCode(t, events[EventChallengeError][0]))

	sendEvent(t, co, c, EventPlayTile, PlayTilePayload{GameID: uuid.NewString(), Tile: InboundTile{ID: "2-5"}, Side: "right"})
	events = drainEvents(t, c)
	require.Len(t, events[EventGameError], 1)
	assert.Equal(t, errs.ErrUserNotRegistered, errorCode(t, events[EventGameError][0]))
}

func TestDispatchMalformedAndUnknownEvents(t *testing.T) {
	co := newCoordinatorFixture(t, time.Hour)
	c := newDispatchClient(co)
	registerClient(t, co, c, alice.ID, alice.Username)
	drainEvents(t, c)

	co.dispatch(c, Envelope{Event: EventPlayTile, Payload: json.RawMessage(`"not an object"`)})
	events := drainEvents(t, c)
	require.Len(t, events[EventGameError], 1)
	assert.Equal(t, errs.ErrInvalidEventPayload, errorCode(t, events[EventGameError][0]))

	co.dispatch(c, Envelope{Event: "no-such-event"})
	events = drainEvents(t, c)
	require.Len(t, events[EventGameError], 1)
	assert.Equal(t, errs.ErrInvalidEventPayload, errorCode(t, events[EventGameError][0]))
}

func TestDispatchRegisterPinnedToToken(t *testing.T) {
	co := newCoordinatorFixture(t, time.Hour)
	c := newDispatchClient(co)
	c.claims = &authjwt.Payload{ID: alice.ID}

	// The connection presented a token for alice; registering as bob is refused.
	registerClient(t, co, c, bob.ID, bob.Username)
	events := drainEvents(t, c)
	require.Len(t, events[EventGameError], 1)
	assert.Equal(t, errs.ErrUnauthorized, errorCode(t, events[EventGameError][0]))

	_, registered := c.User()
	assert.False(t, registered)

	registerClient(t, co, c, alice.ID, alice.Username)
	u, registered := c.User()
	require.True(t, registered)
	assert.Equal(t, alice.ID, u.ID)
}

func TestDispatchChallengeToGameFlow(t *testing.T) {
	co := newCoordinatorFixture(t, time.Hour)
	aliceClient := newDispatchClient(co)
	bobClient := newDispatchClient(co)

	registerClient(t, co, aliceClient, alice.ID, alice.Username)
	registerClient(t, co, bobClient, bob.ID, bob.Username)

	assert.Len(t, drainEvents(t, aliceClient)[EventUserOnline], 1, "the first arrival hears about the second")
	drainEvents(t, bobClient)

	sendEvent(t, co, aliceClient, EventSendChallenge, SendChallengePayload{TargetID: bob.ID})

	bobEvents := drainEvents(t, bobClient)
	require.Len(t, bobEvents[EventChallengeReceived], 1)
	var ch Challenge
	require.NoError(t, json.Unmarshal(bobEvents[EventChallengeReceived][0], &ch))
	assert.Equal(t, alice.ID, ch.Challenger.ID)
	assert.Empty(t, drainEvents(t, aliceClient), "the challenger hears nothing on success")

	sendEvent(t, co, bobClient, EventAcceptChallenge, ChallengeRefPayload{ChallengeID: ch.ID.String()})

	aliceEvents := drainEvents(t, aliceClient)
	require.Len(t, aliceEvents[EventGameStart], 1)
	require.Len(t, drainEvents(t, bobClient)[EventGameStart], 1)

	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(aliceEvents[EventGameStart][0], &snap))
	assert.Equal(t, alice.ID, snap.CurrentTurn, "the challenger holds the first turn")
	assert.Len(t, snap.Hand, game.HandSize)

	_, status, ok := co.registry.Get(alice.ID)
	require.True(t, ok)
	assert.Equal(t, StatusInGame, status)

	// The acting identity comes from the connection, not the payload: bob
	// cannot draw on alice's turn by naming her id.
	sendEvent(t, co, bobClient, EventDrawTile, DrawTilePayload{GameID: snap.GameID, PlayerID: alice.ID})
	bobEvents = drainEvents(t, bobClient)
	require.Len(t, bobEvents[EventGameError], 1)
	assert.Equal(t, errs.ErrNotYourTurn, errorCode(t, bobEvents[EventGameError][0]))
	assert.Empty(t, drainEvents(t, aliceClient))

	// Alice draws; she alone sees the tile, bob learns the counts.
	sendEvent(t, co, aliceClient, EventDrawTile, DrawTilePayload{GameID: snap.GameID})
	require.Len(t, drainEvents(t, aliceClient)[EventDrawResult], 1)
	bobEvents = drainEvents(t, bobClient)
	require.Len(t, bobEvents[EventOpponentDrew], 1)
	var drew OpponentDrewPayload
	require.NoError(t, json.Unmarshal(bobEvents[EventOpponentDrew][0], &drew))
	assert.Equal(t, game.HandSize+1, drew.HandCount)
	assert.Equal(t, alice.ID, drew.Player.ID)

	// Bob concedes; alice wins and the game leaves the live table.
	sendEvent(t, co, bobClient, EventLeaveGame, LeaveGamePayload{GameID: snap.GameID})

	aliceEvents = drainEvents(t, aliceClient)
	require.Len(t, aliceEvents[EventGameEnded], 1)
	var ended GameEndedPayload
	require.NoError(t, json.Unmarshal(aliceEvents[EventGameEnded][0], &ended))
	assert.Equal(t, alice.ID, ended.Winner.ID)

	require.Len(t, drainEvents(t, bobClient)[EventGameEnded], 1)
	assert.Zero(t, co.games.Len())
}

func TestDispatchDisconnectMidGameSuspendsPresence(t *testing.T) {
	co := newCoordinatorFixture(t, 100*time.Millisecond)
	aliceClient := newDispatchClient(co)
	bobClient := newDispatchClient(co)

	registerClient(t, co, aliceClient, alice.ID, alice.Username)
	registerClient(t, co, bobClient, bob.ID, bob.Username)
	drainEvents(t, aliceClient)
	drainEvents(t, bobClient)

	startDispatchGame(t, co, aliceClient, bobClient)

	co.handleDisconnect(aliceClient)

	_, _, ok := co.registry.Get(alice.ID)
	assert.True(t, ok, "an in-game player stays visible through the grace window")
	_, reachable := co.registry.Lookup(alice.ID)
	assert.False(t, reachable)
	assert.Empty(t, drainEvents(t, bobClient)[EventUserOffline], "no offline broadcast before the window resolves")

	assert.Eventually(t, func() bool {
		_, _, ok := co.registry.Get(alice.ID)
		return !ok
	}, time.Second, 5*time.Millisecond, "forfeiture is the final disconnect")

	bobEvents := drainEvents(t, bobClient)
	assert.Len(t, bobEvents[EventGameEnded], 1)
	assert.Len(t, bobEvents[EventUserOffline], 1)
	assert.Zero(t, co.games.Len())
}
