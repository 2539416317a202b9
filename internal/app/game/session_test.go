package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
)

var (
	alice = user.User{ID: "u-alice", Username: "alice", DisplayName: "Alice"}
	bob   = user.User{ID: "u-bob", Username: "bob", DisplayName: "Bob"}
)

// fakeGateway is an in-memory Gateway that records every call and can be told
// to fail the next write.
type fakeGateway struct {
	mu sync.Mutex

	createCalls  int
	createdTiles int
	moveCalls    int
	turnCalls    int
	outcomeCalls int

	failNext error
}

func (f *fakeGateway) takeFailure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeGateway) CreateGame(_ context.Context, _ GameRecord, tiles []TileRecord) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.createdTiles = len(tiles)
	return nil
}

func (f *fakeGateway) RecordMove(_ context.Context, _ uuid.UUID, _ MoveRecord) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveCalls++
	return nil
}

func (f *fakeGateway) RecordTurn(_ context.Context, _ uuid.UUID, _ string) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turnCalls++
	return nil
}

func (f *fakeGateway) RecordOutcome(_ context.Context, _ uuid.UUID, _ Status, _ string) error {
	if err := f.takeFailure(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomeCalls++
	return nil
}

func (f *fakeGateway) FetchGame(_ context.Context, _ uuid.UUID) (GameRecord, []TileRecord, error) {
	return GameRecord{}, nil, errors.New("not implemented")
}

// newTestSession creates a session and then replaces the random deal with a
// deterministic one so placement tests know exactly who holds what.
func newTestSession(t *testing.T) (*Session, *fakeGateway) {
	t.Helper()

	gw := &fakeGateway{}
	s, cerr := NewSession(context.Background(), gw, alice, bob)
	require.Nil(t, cerr)

	setHand := func(idx int, tiles ...Tile) {
		s.hands[idx] = make(map[string]Tile, len(tiles))
		for _, tile := range tiles {
			s.hands[idx][tile.ID] = tile
		}
	}

	setHand(0, NewTile(2, 5), NewTile(0, 0), NewTile(1, 3), NewTile(5, 5), NewTile(0, 6), NewTile(1, 6), NewTile(3, 4))
	setHand(1, NewTile(5, 6), NewTile(2, 2), NewTile(0, 1), NewTile(4, 6), NewTile(1, 2), NewTile(3, 3), NewTile(0, 4))
	s.pile = []Tile{
		NewTile(0, 2), NewTile(0, 3), NewTile(0, 5), NewTile(1, 1), NewTile(1, 4), NewTile(1, 5), NewTile(2, 3),
		NewTile(2, 4), NewTile(2, 6), NewTile(3, 5), NewTile(3, 6), NewTile(4, 4), NewTile(4, 5), NewTile(6, 6),
	}

	return s, gw
}

func totalTiles(s *Session) int {
	h1, h2, chain, pile := s.Counts()
	return h1 + h2 + chain + pile
}

func TestNewSessionDeals(t *testing.T) {
	gw := &fakeGateway{}
	s, cerr := NewSession(context.Background(), gw, alice, bob)
	require.Nil(t, cerr)

	h1, h2, chain, pile := s.Counts()
	assert.Equal(t, HandSize, h1)
	assert.Equal(t, HandSize, h2)
	assert.Zero(t, chain)
	assert.Equal(t, SetSize-2*HandSize, pile)

	assert.Equal(t, StatusActive, s.Status())
	assert.Equal(t, alice.ID, s.CurrentTurn(), "challenger holds the first turn")

	assert.Equal(t, 1, gw.createCalls)
	assert.Equal(t, SetSize, gw.createdTiles)
}

func TestNewSessionPersistenceFailure(t *testing.T) {
	gw := &fakeGateway{failNext: errors.New("db down")}
	s, cerr := NewSession(context.Background(), gw, alice, bob)

	require.Nil(t, s)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPersistenceUnavailable, cerr.Code)
}

func TestPlayFirstTileOpensChain(t *testing.T) {
	s, gw := newTestSession(t)

	res, cerr := s.Play(context.Background(), alice.ID, "2-5", SideRight)
	require.Nil(t, cerr)

	assert.Equal(t, 0, res.BoardPosition)
	assert.Equal(t, 2, res.LeftEnd)
	assert.Equal(t, 5, res.RightEnd)
	assert.Equal(t, 6, res.HandCount)
	assert.Equal(t, bob.ID, res.CurrentTurn)
	assert.Equal(t, StatusActive, res.Status)
	assert.Equal(t, 1, gw.moveCalls)
	assert.Equal(t, SetSize, totalTiles(s))
}

func TestPlayOrientsAgainstOpenEnds(t *testing.T) {
	s, _ := newTestSession(t)

	_, cerr := s.Play(context.Background(), alice.ID, "2-5", SideRight)
	require.Nil(t, cerr)

	// 5-6 against the right end 5: the 5 half faces the chain, 6 becomes the new end.
	res, cerr := s.Play(context.Background(), bob.ID, "5-6", SideRight)
	require.Nil(t, cerr)
	assert.Equal(t, 1, res.BoardPosition)
	assert.Equal(t, 5, res.Tile.LeftPip)
	assert.Equal(t, 6, res.Tile.RightPip)
	assert.Equal(t, 2, res.LeftEnd)
	assert.Equal(t, 6, res.RightEnd)

	// 1-2 against the left end 2: the 2 half faces the chain, 1 becomes the new end.
	res, cerr = s.Play(context.Background(), alice.ID, "1-3", SideLeft)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrIllegalPlacement, cerr.Code)

	res, cerr = s.Play(context.Background(), alice.ID, "0-0", SideLeft)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrIllegalPlacement, cerr.Code)

	// Alice draws instead, then Bob extends left with 1-2.
	_, cerr = s.Draw(context.Background(), alice.ID)
	require.Nil(t, cerr)

	res, cerr = s.Play(context.Background(), bob.ID, "1-2", SideLeft)
	require.Nil(t, cerr)
	assert.Equal(t, -1, res.BoardPosition)
	assert.Equal(t, 1, res.Tile.LeftPip)
	assert.Equal(t, 2, res.Tile.RightPip)
	assert.Equal(t, 1, res.LeftEnd)
	assert.Equal(t, 6, res.RightEnd)

	assert.Equal(t, SetSize, totalTiles(s))
}

func TestPlayValidation(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	_, cerr := s.Play(ctx, bob.ID, "5-6", SideRight)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotYourTurn, cerr.Code)

	_, cerr = s.Play(ctx, "u-stranger", "2-5", SideRight)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotInGame, cerr.Code)

	_, cerr = s.Play(ctx, alice.ID, "6-6", SideRight)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrTileNotInHand, cerr.Code)

	_, cerr = s.Play(ctx, alice.ID, "2-5", Side("top"))
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrInvalidEventPayload, cerr.Code)
}

func TestWinningPlayCompletesGame(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	_, cerr := s.Play(ctx, alice.ID, "2-5", SideRight)
	require.Nil(t, cerr)

	// Leave Bob a single matching tile so his play empties the hand.
	s.hands[1] = map[string]Tile{"5-6": NewTile(5, 6)}

	res, cerr := s.Play(ctx, bob.ID, "5-6", SideRight)
	require.Nil(t, cerr)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, bob.ID, res.Winner)
	assert.Equal(t, bob.ID, res.CurrentTurn, "the win takes precedence over the turn switch")
	assert.Equal(t, 0, res.HandCount)

	_, cerr = s.Play(ctx, alice.ID, "1-6", SideRight)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameAlreadyOver, cerr.Code)
}

func TestDrawConsumesTurn(t *testing.T) {
	s, gw := newTestSession(t)

	res, cerr := s.Draw(context.Background(), alice.ID)
	require.Nil(t, cerr)

	assert.Equal(t, 8, res.HandCount)
	assert.Equal(t, 13, res.PileCount)
	assert.Equal(t, bob.ID, res.CurrentTurn)
	assert.True(t, res.Tile.ID != "")
	assert.Equal(t, 1, gw.moveCalls)
	assert.Equal(t, SetSize, totalTiles(s))
}

func TestDrawEmptyPile(t *testing.T) {
	s, _ := newTestSession(t)
	s.pile = nil

	_, cerr := s.Draw(context.Background(), alice.ID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrEmptyPile, cerr.Code)
}

func TestPassRequiresEmptyPile(t *testing.T) {
	s, gw := newTestSession(t)
	ctx := context.Background()

	_, cerr := s.Pass(ctx, alice.ID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrMustDrawFirst, cerr.Code)

	s.pile = nil

	res, cerr := s.Pass(ctx, alice.ID)
	require.Nil(t, cerr)
	assert.Equal(t, bob.ID, res.CurrentTurn)
	assert.Equal(t, 1, gw.turnCalls)
}

func TestPersistenceFailureLeavesStateUntouched(t *testing.T) {
	s, gw := newTestSession(t)
	ctx := context.Background()

	gw.failNext = errors.New("db down")
	_, cerr := s.Play(ctx, alice.ID, "2-5", SideRight)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPersistenceUnavailable, cerr.Code)

	h1, _, chain, _ := s.Counts()
	assert.Equal(t, HandSize, h1, "failed play must not leave the hand")
	assert.Zero(t, chain)
	assert.Equal(t, alice.ID, s.CurrentTurn(), "failed play must not switch the turn")
	assert.Equal(t, StatusActive, s.Status())

	// The same move succeeds once the gateway recovers.
	_, cerr = s.Play(ctx, alice.ID, "2-5", SideRight)
	require.Nil(t, cerr)

	gw.failNext = errors.New("db down")
	_, cerr = s.Draw(ctx, bob.ID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrPersistenceUnavailable, cerr.Code)
	assert.Equal(t, bob.ID, s.CurrentTurn())
	assert.Equal(t, SetSize, totalTiles(s))
}

func TestForceEndFiresExactlyOnce(t *testing.T) {
	s, gw := newTestSession(t)
	ctx := context.Background()

	res, cerr := s.ForceEnd(ctx, StatusCompleted, bob.ID)
	require.Nil(t, cerr)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, bob, res.Winner)
	assert.Equal(t, bob.ID, s.Winner())

	_, cerr = s.ForceEnd(ctx, StatusCompleted, alice.ID)
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrGameAlreadyOver, cerr.Code)
	assert.Equal(t, 1, gw.outcomeCalls)
	assert.Equal(t, bob.ID, s.Winner(), "losing racer must not overwrite the outcome")
}

func TestForceEndRejectsStrangerWinner(t *testing.T) {
	s, _ := newTestSession(t)

	_, cerr := s.ForceEnd(context.Background(), StatusCompleted, "u-stranger")
	require.NotNil(t, cerr)
	assert.Equal(t, errs.ErrNotInGame, cerr.Code)
	assert.Equal(t, StatusActive, s.Status())
}

func TestSnapshotScopesToViewer(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	_, cerr := s.Play(ctx, alice.ID, "2-5", SideRight)
	require.Nil(t, cerr)

	snap, ok := s.Snapshot(bob.ID)
	require.True(t, ok)

	assert.Equal(t, s.ID.String(), snap.GameID)
	assert.Equal(t, bob.ID, snap.CurrentTurn)
	assert.Len(t, snap.Hand, HandSize)
	assert.Equal(t, HandSize-1, snap.OpponentCount)
	assert.Len(t, snap.Chain, 1)
	require.NotNil(t, snap.LeftEnd)
	require.NotNil(t, snap.RightEnd)
	assert.Equal(t, 2, *snap.LeftEnd)
	assert.Equal(t, 5, *snap.RightEnd)

	for _, tile := range snap.Hand {
		assert.NotEqual(t, "2-5", tile.ID, "viewer hand must not contain played tiles")
	}

	_, ok = s.Snapshot("u-stranger")
	assert.False(t, ok)
}

func TestOpponentAndAccessors(t *testing.T) {
	s, _ := newTestSession(t)

	opp, ok := s.Opponent(alice.ID)
	require.True(t, ok)
	assert.Equal(t, bob, opp)

	_, ok = s.Opponent("u-stranger")
	assert.False(t, ok)

	assert.True(t, s.IsPlayer(alice.ID))
	assert.False(t, s.IsPlayer("u-stranger"))

	_, _, ok = s.OpenEnds()
	assert.False(t, ok, "empty chain has no open ends")
}
