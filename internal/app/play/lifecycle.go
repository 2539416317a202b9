/*
Package play contains the real-time session coordinator.

This file defines the LifecycleManager, which tolerates brief disconnects: a
player dropping mid-game gets a cancellable grace window to reconnect before
the game is forfeited to the opponent.
*/
package play

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dominet/internal/app/game"
	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
)

// graceKey identifies one pending forfeiture timer. Keys are structured so two
// games involving the same player never collide.
type graceKey struct {
	gameID   uuid.UUID
	playerID string
}

// graceTimer pairs an armed timer with its generation. A fired timer whose
// generation no longer matches the armed entry belongs to an earlier window
// that was cancelled after firing, and must not forfeit.
type graceTimer struct {
	timer *time.Timer
	gen   uint64
}

// OpponentDisconnectedPayload tells the remaining player the game was
// forfeited because the opponent never returned.
type OpponentDisconnectedPayload struct {
	GameID uuid.UUID `json:"gameId"`
	Player user.User `json:"player"`
}

// GameEndedPayload announces a terminal transition.
type GameEndedPayload struct {
	GameID uuid.UUID   `json:"gameId"`
	Status game.Status `json:"status"`
	Winner user.User   `json:"winner"`
}

// LifecycleManager arms a grace timer per (game, player) on disconnect and
// forfeits the game to the opponent when the timer expires unanswered.
type LifecycleManager struct {
	registry *Registry
	games    *GameManager

	grace time.Duration

	// mu protects the timers map and the generation counter.
	mu     sync.Mutex
	timers map[graceKey]*graceTimer
	gen    uint64

	logger zerolog.Logger
}

// NewLifecycleManager constructs a LifecycleManager with the given grace window.
func NewLifecycleManager(registry *Registry, games *GameManager, grace time.Duration) *LifecycleManager {
	return &LifecycleManager{
		registry: registry,
		games:    games,
		grace:    grace,
		timers:   make(map[graceKey]*graceTimer),
		logger:   logx.Logger().With().Str("component", "LifecycleManager").Logger(),
	}
}

// OnDisconnect arms the grace timer for a player who dropped out of an active
// game. Re-disconnects reset the window. Terminal games are ignored.
func (l *LifecycleManager) OnDisconnect(s *game.Session, playerID string) {
	if s.Status().Terminal() || !s.IsPlayer(playerID) {
		return
	}

	key := graceKey{gameID: s.ID, playerID: playerID}

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[key]; ok {
		t.timer.Stop()
	}

	l.gen++
	gen := l.gen
	l.timers[key] = &graceTimer{
		gen: gen,
		timer: time.AfterFunc(l.grace, func() {
			l.onGraceExpired(s, key, gen)
		}),
	}

	l.logger.Info().
		Str("game_id", s.ID.String()).
		Str("player_id", playerID).
		Dur("grace", l.grace).
		Msg("Grace timer armed.")
}

// CancelGrace stops the pending timer for the pair, if any. Called when the
// player rejoins within the window.
func (l *LifecycleManager) CancelGrace(gameID uuid.UUID, playerID string) {
	key := graceKey{gameID: gameID, playerID: playerID}

	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.timers[key]; ok {
		t.timer.Stop()
		delete(l.timers, key)
		l.logger.Info().
			Str("game_id", gameID.String()).
			Str("player_id", playerID).
			Msg("Grace timer cancelled.")
	}
}

// onGraceExpired runs in the timer goroutine. It forfeits only when the armed
// entry carries the firing timer's own generation: a rejoin followed by a new
// disconnect arms a fresh timer under the same key, and the stale goroutine
// must not collapse that fresh window.
func (l *LifecycleManager) onGraceExpired(s *game.Session, key graceKey, gen uint64) {
	l.mu.Lock()
	t, ok := l.timers[key]
	if !ok || t.gen != gen {
		l.mu.Unlock()
		return
	}
	delete(l.timers, key)
	l.mu.Unlock()

	l.logger.Info().
		Str("game_id", key.gameID.String()).
		Str("player_id", key.playerID).
		Msg("Grace period expired. Forfeiting game.")

	l.Forfeit(context.Background(), s, key.playerID)
}

// Forfeit ends the game against absentID, declaring the opponent winner. The
// session's terminal-state check makes forfeiture exactly-once under racing
// disconnects. The game is recorded abandoned when the winning opponent is
// offline too, completed otherwise.
func (l *LifecycleManager) Forfeit(ctx context.Context, s *game.Session, absentID string) {
	opponent, ok := s.Opponent(absentID)
	if !ok {
		return
	}

	absent, _ := s.Opponent(opponent.ID)

	status := game.StatusCompleted
	opponentConn, opponentOnline := l.games.ConnFor(s.ID, opponent.ID)
	if !opponentOnline {
		status = game.StatusAbandoned
	}

	end, cerr := s.ForceEnd(ctx, status, opponent.ID)
	if cerr != nil {
		if cerr.Code != errs.ErrGameAlreadyOver {
			l.logger.Error().
				Int("code", cerr.Code).
				Str("game_id", s.ID.String()).
				Msg("Failed to forfeit game")
		}
		return
	}

	if opponentOnline {
		if err := opponentConn.SendEvent(EventOpponentDisconnected, OpponentDisconnectedPayload{
			GameID: s.ID,
			Player: absent,
		}); err != nil {
			l.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to notify remaining player of disconnect")
		}

		if err := opponentConn.SendEvent(EventGameEnded, GameEndedPayload{
			GameID: s.ID,
			Status: end.Status,
			Winner: end.Winner,
		}); err != nil {
			l.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to notify remaining player of game end")
		}
	}

	l.cleanup(s)
}

// Leave handles a voluntary forfeit: any pending timers for the pair are
// cancelled and the game ends immediately in the opponent's favor.
func (l *LifecycleManager) Leave(ctx context.Context, s *game.Session, leaverID string) {
	for _, p := range s.Players() {
		l.CancelGrace(s.ID, p.ID)
	}

	l.Forfeit(ctx, s, leaverID)
}

// cleanup drops the finished session from the table. Players whose grace
// window just resolved in forfeiture take their final disconnect here and are
// broadcast offline; connected players flip back to available.
func (l *LifecycleManager) cleanup(s *game.Session) {
	l.games.Remove(s.ID)

	for _, p := range s.Players() {
		if l.registry.DropIfSuspended(p.ID) {
			continue
		}
		l.registry.SetStatus(p.ID, StatusAvailable)
	}
}
