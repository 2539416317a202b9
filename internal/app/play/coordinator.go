/*
Package play contains the real-time session coordinator.

This file defines the Coordinator, the single entry point for every inbound
client event. It routes each event to the presence registry, the challenge
negotiator, the live game table, or the lifecycle manager, and turns the
committed results into outbound notifications. Errors are reported to the
acting connection only, never broadcast.
*/
package play

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dominet/internal/app/game"
	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
)

// OpponentPlayedPayload notifies the opponent of a committed tile placement.
type OpponentPlayedPayload struct {
	GameID uuid.UUID `json:"gameId"`
	game.PlayResult
}

// OpponentDrewPayload notifies the opponent of a committed draw. The drawn
// tile is never disclosed; the opponent learns the new counts only.
type OpponentDrewPayload struct {
	GameID      uuid.UUID `json:"gameId"`
	Player      user.User `json:"player"`
	HandCount   int       `json:"handCount"`
	PileCount   int       `json:"pileCount"`
	CurrentTurn string    `json:"currentTurn"`
}

// DrawResultPayload discloses the drawn tile to the acting player only.
type DrawResultPayload struct {
	GameID uuid.UUID `json:"gameId"`
	game.DrawResult
}

// OpponentPassedPayload notifies the opponent of a committed pass.
type OpponentPassedPayload struct {
	GameID uuid.UUID `json:"gameId"`
	game.PassResult
}

// Coordinator wires the four session components together and dispatches every
// inbound client event.
type Coordinator struct {
	registry   *Registry
	negotiator *Negotiator
	games      *GameManager
	lifecycle  *LifecycleManager
	gw         game.Gateway

	logger zerolog.Logger
}

// NewCoordinator constructs the coordinator and its components. grace is the
// reconnection window; challengeTTL and sweepTick drive challenge expiry.
func NewCoordinator(gw game.Gateway, grace, challengeTTL, sweepTick time.Duration) *Coordinator {
	registry := NewRegistry()
	games := NewGameManager()

	return &Coordinator{
		registry:   registry,
		negotiator: NewNegotiator(registry, challengeTTL, sweepTick),
		games:      games,
		lifecycle:  NewLifecycleManager(registry, games, grace),
		gw:         gw,
		logger:     logx.Logger().With().Str("component", "Coordinator").Logger(),
	}
}

// Games exposes the live game table, used by the lifecycle tests and the
// handler layer.
func (co *Coordinator) Games() *GameManager {
	return co.games
}

// Shutdown stops the negotiator's background sweep.
func (co *Coordinator) Shutdown() {
	co.negotiator.Stop()
}

// dispatch routes one inbound envelope from a client connection.
func (co *Coordinator) dispatch(c *Client, env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case EventRegisterUser:
		co.handleRegister(c, env.Payload)
	case EventSendChallenge:
		co.handleSendChallenge(c, env.Payload)
	case EventAcceptChallenge:
		co.handleAcceptChallenge(ctx, c, env.Payload)
	case EventDeclineChallenge:
		co.handleDeclineChallenge(c, env.Payload)
	case EventJoinGame:
		co.handleJoinGame(c, env.Payload)
	case EventPlayTile:
		co.handlePlayTile(ctx, c, env.Payload)
	case EventDrawTile:
		co.handleDrawTile(ctx, c, env.Payload)
	case EventPassTurn:
		co.handlePassTurn(ctx, c, env.Payload)
	case EventEndGame:
		co.handleEndGame(ctx, c, env.Payload)
	case EventLeaveGame:
		co.handleLeaveGame(ctx, c, env.Payload)
	default:
		co.logger.Warn().Str("event", env.Event).Msg("Client sent unknown event")
		c.SendError(EventGameError, errs.NewError(errs.ErrInvalidEventPayload))
	}
}

// decode unmarshals an event payload, reporting InvalidEventPayload on the
// given error event when the payload does not parse.
func decode[T any](c *Client, errEvent string, raw json.RawMessage, dst *T) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		c.SendError(errEvent, errs.NewError(errs.ErrInvalidEventPayload))
		return false
	}
	return true
}

// requireUser returns the connection's bound identity, reporting
// UserNotRegistered on the given error event when register-user has not run.
func (co *Coordinator) requireUser(c *Client, errEvent string) (user.User, bool) {
	u, ok := c.User()
	if !ok {
		c.SendError(errEvent, errs.NewError(errs.ErrUserNotRegistered))
	}
	return u, ok
}

// handleRegister binds the connection to a user identity. When the connection
// presented an identity token at upgrade time, the registered identity must
// match the token's subject.
func (co *Coordinator) handleRegister(c *Client, raw json.RawMessage) {
	var p RegisterUserPayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	if p.ID == "" || p.Username == "" {
		c.SendError(EventGameError, errs.NewError(errs.ErrInvalidEventPayload))
		return
	}

	if c.claims != nil && c.claims.ID != p.ID {
		co.logger.Warn().
			Str("token_id", c.claims.ID).
			Str("claimed_id", p.ID).
			Msg("Register identity does not match token subject")
		c.SendError(EventGameError, errs.NewError(errs.ErrUnauthorized))
		return
	}

	// A connection keeps its first identity; re-registering as someone else is rejected.
	if existing, registered := c.User(); registered && existing.ID != p.ID {
		c.SendError(EventGameError, errs.NewError(errs.ErrInvalidEventPayload))
		return
	}

	u := user.User{ID: p.ID, Username: p.Username, DisplayName: p.DisplayName}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}

	c.bindUser(u)
	co.registry.Register(u, c)
}

// handleSendChallenge offers a challenge to another online user. The
// challenger identity is the connection's bound identity, never the payload's.
func (co *Coordinator) handleSendChallenge(c *Client, raw json.RawMessage) {
	challenger, ok := co.requireUser(c, EventChallengeError)
	if !ok {
		return
	}

	var p SendChallengePayload
	if !decode(c, EventChallengeError, raw, &p) {
		return
	}

	if p.TargetID == "" || p.TargetID == challenger.ID {
		c.SendError(EventChallengeError, errs.NewError(errs.ErrInvalidEventPayload))
		return
	}

	target, _, present := co.registry.Get(p.TargetID)
	if !present {
		c.SendError(EventChallengeError, errs.NewError(errs.ErrTargetUnreachable))
		return
	}

	if _, cerr := co.negotiator.Offer(challenger, target); cerr != nil {
		c.SendError(EventChallengeError, cerr)
	}
}

// handleAcceptChallenge consumes the pending challenge and creates the game.
// The game is durably persisted before game-start reaches either player; on
// persistence failure the challenge is restored so the accept can be retried.
func (co *Coordinator) handleAcceptChallenge(ctx context.Context, c *Client, raw json.RawMessage) {
	accepter, ok := co.requireUser(c, EventChallengeError)
	if !ok {
		return
	}

	var p ChallengeRefPayload
	if !decode(c, EventChallengeError, raw, &p) {
		return
	}

	challengeID, err := uuid.Parse(p.ChallengeID)
	if err != nil {
		c.SendError(EventChallengeError, errs.NewError(errs.ErrInvalidEventPayload))
		return
	}

	ch, cerr := co.negotiator.Take(challengeID)
	if cerr != nil {
		c.SendError(EventChallengeError, cerr)
		return
	}

	if ch.Target.ID != accepter.ID {
		co.negotiator.Restore(ch)
		c.SendError(EventChallengeError, errs.NewError(errs.ErrChallengeNotFound))
		return
	}

	challengerConn, online := co.registry.Lookup(ch.Challenger.ID)
	if !online {
		c.SendError(EventChallengeError, errs.NewError(errs.ErrTargetUnreachable))
		return
	}

	s, cerr := game.NewSession(ctx, co.gw, ch.Challenger, ch.Target)
	if cerr != nil {
		co.negotiator.Restore(ch)
		c.SendError(EventChallengeError, cerr)
		return
	}

	co.games.Add(s, map[string]Conn{
		ch.Challenger.ID: challengerConn,
		ch.Target.ID:     c,
	})

	co.registry.SetStatus(ch.Challenger.ID, StatusInGame)
	co.registry.SetStatus(ch.Target.ID, StatusInGame)

	co.sendSnapshot(challengerConn, s, ch.Challenger.ID, EventGameStart)
	co.sendSnapshot(c, s, ch.Target.ID, EventGameStart)
}

// handleDeclineChallenge removes the challenge and notifies the challenger.
func (co *Coordinator) handleDeclineChallenge(c *Client, raw json.RawMessage) {
	decliner, ok := co.requireUser(c, EventChallengeError)
	if !ok {
		return
	}

	var p ChallengeRefPayload
	if !decode(c, EventChallengeError, raw, &p) {
		return
	}

	challengeID, err := uuid.Parse(p.ChallengeID)
	if err != nil {
		c.SendError(EventChallengeError, errs.NewError(errs.ErrInvalidEventPayload))
		return
	}

	if cerr := co.negotiator.Decline(challengeID, decliner.ID); cerr != nil {
		c.SendError(EventChallengeError, cerr)
	}
}

// handleJoinGame rebinds a reconnecting player to its game, cancels any
// pending forfeiture timer, and sends the full authoritative snapshot.
func (co *Coordinator) handleJoinGame(c *Client, raw json.RawMessage) {
	u, ok := co.requireUser(c, EventGameError)
	if !ok {
		return
	}

	var p JoinGamePayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	s, cerr := co.sessionFor(c, p.GameID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	co.games.Bind(s.ID, u.ID, c)
	co.lifecycle.CancelGrace(s.ID, u.ID)
	co.registry.SetStatus(u.ID, StatusInGame)

	co.sendSnapshot(c, s, u.ID, EventGameState)
}

// handlePlayTile validates and applies a tile placement. The acting identity
// is the connection's bound identity; legality and orientation are computed by
// the session, never trusted from the payload.
func (co *Coordinator) handlePlayTile(ctx context.Context, c *Client, raw json.RawMessage) {
	u, ok := co.requireUser(c, EventGameError)
	if !ok {
		return
	}

	var p PlayTilePayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	s, cerr := co.sessionFor(c, p.GameID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	side := game.Side(p.Side)
	if p.Side == "" {
		side = game.SideLeft
	}

	res, cerr := s.Play(ctx, u.ID, p.Tile.ID, side)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	co.sendSnapshot(c, s, u.ID, EventGameState)

	if conn, online := co.opponentConn(s, u.ID); online {
		if err := conn.SendEvent(EventOpponentPlayed, OpponentPlayedPayload{GameID: s.ID, PlayResult: *res}); err != nil {
			co.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to notify opponent of play")
		}
	}

	if res.Status.Terminal() {
		co.finishGame(s, res.Status, res.Player)
	}
}

// handleDrawTile draws one tile from the pile. The tile is disclosed to the
// actor only; the opponent learns the new counts.
func (co *Coordinator) handleDrawTile(ctx context.Context, c *Client, raw json.RawMessage) {
	u, ok := co.requireUser(c, EventGameError)
	if !ok {
		return
	}

	var p DrawTilePayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	s, cerr := co.sessionFor(c, p.GameID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	res, cerr := s.Draw(ctx, u.ID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	if err := c.SendEvent(EventDrawResult, DrawResultPayload{GameID: s.ID, DrawResult: *res}); err != nil {
		co.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to deliver draw result")
	}

	if conn, online := co.opponentConn(s, u.ID); online {
		if err := conn.SendEvent(EventOpponentDrew, OpponentDrewPayload{
			GameID:      s.ID,
			Player:      res.Player,
			HandCount:   res.HandCount,
			PileCount:   res.PileCount,
			CurrentTurn: res.CurrentTurn,
		}); err != nil {
			co.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to notify opponent of draw")
		}
	}
}

// handlePassTurn passes the turn to the other player.
func (co *Coordinator) handlePassTurn(ctx context.Context, c *Client, raw json.RawMessage) {
	u, ok := co.requireUser(c, EventGameError)
	if !ok {
		return
	}

	var p PassTurnPayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	s, cerr := co.sessionFor(c, p.GameID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	res, cerr := s.Pass(ctx, u.ID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	co.sendSnapshot(c, s, u.ID, EventGameState)

	if conn, online := co.opponentConn(s, u.ID); online {
		if err := conn.SendEvent(EventOpponentPassed, OpponentPassedPayload{GameID: s.ID, PassResult: *res}); err != nil {
			co.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to notify opponent of pass")
		}
	}
}

// handleEndGame reports a voluntary game end with a declared winner.
func (co *Coordinator) handleEndGame(ctx context.Context, c *Client, raw json.RawMessage) {
	if _, ok := co.requireUser(c, EventGameError); !ok {
		return
	}

	var p EndGamePayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	s, cerr := co.sessionFor(c, p.GameID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	if !s.IsPlayer(p.WinnerID) {
		c.SendError(EventGameError, errs.NewError(errs.ErrNotInGame))
		return
	}

	end, cerr := s.ForceEnd(ctx, game.StatusCompleted, p.WinnerID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	co.finishGame(s, end.Status, end.Winner)
}

// handleLeaveGame forfeits the game voluntarily. The opponent wins; pending
// grace timers for either player are cancelled.
func (co *Coordinator) handleLeaveGame(ctx context.Context, c *Client, raw json.RawMessage) {
	u, ok := co.requireUser(c, EventGameError)
	if !ok {
		return
	}

	var p LeaveGamePayload
	if !decode(c, EventGameError, raw, &p) {
		return
	}

	s, cerr := co.sessionFor(c, p.GameID)
	if cerr != nil {
		c.SendError(EventGameError, cerr)
		return
	}

	winner, _ := s.Opponent(u.ID)

	co.lifecycle.Leave(ctx, s, u.ID)

	if s.Status().Terminal() {
		if err := c.SendEvent(EventGameEnded, GameEndedPayload{
			GameID: s.ID,
			Status: s.Status(),
			Winner: winner,
		}); err != nil {
			co.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to acknowledge leave")
		}
	}
}

// handleDisconnect runs when a client's read pump terminates. Pending
// challenges are discarded silently and grace timers armed for every active
// game bound to this connection. A player with such a game is only suspended
// in presence, staying visible to others until the grace window resolves;
// everyone else is removed and broadcast offline right away. Stale events from
// an already-replaced connection are no-ops.
func (co *Coordinator) handleDisconnect(c *Client) {
	c.closeSend()

	u, registered := c.User()
	if !registered {
		return
	}

	sessions := co.games.ForConn(u.ID, c)

	inGrace := false
	for _, s := range sessions {
		if !s.Status().Terminal() {
			inGrace = true
			break
		}
	}

	var owned bool
	if inGrace {
		owned = co.registry.Suspend(c)
	} else {
		_, owned = co.registry.Unregister(c)
	}
	if !owned {
		return
	}

	co.negotiator.DropFor(u.ID)

	for _, s := range sessions {
		co.games.Unbind(s.ID, u.ID, c)
		co.lifecycle.OnDisconnect(s, u.ID)
	}
}

// sessionFor resolves a game id string to a live session the connection's
// user actually plays in.
func (co *Coordinator) sessionFor(c *Client, gameID string) (*game.Session, *errs.CustomError) {
	id, err := uuid.Parse(gameID)
	if err != nil {
		return nil, errs.NewError(errs.ErrInvalidEventPayload)
	}

	s, ok := co.games.Get(id)
	if !ok {
		return nil, errs.NewError(errs.ErrGameNotFound)
	}

	u, _ := c.User()
	if !s.IsPlayer(u.ID) {
		return nil, errs.NewError(errs.ErrNotInGame)
	}

	return s, nil
}

// opponentConn returns the connection bound for the actor's opponent.
func (co *Coordinator) opponentConn(s *game.Session, actorID string) (Conn, bool) {
	opponent, ok := s.Opponent(actorID)
	if !ok {
		return nil, false
	}
	return co.games.ConnFor(s.ID, opponent.ID)
}

// sendSnapshot delivers a viewer-scoped snapshot on the given event.
func (co *Coordinator) sendSnapshot(conn Conn, s *game.Session, viewerID, event string) {
	snap, ok := s.Snapshot(viewerID)
	if !ok {
		return
	}
	if err := conn.SendEvent(event, snap); err != nil {
		co.logger.Warn().Err(err).Str("game_id", snap.GameID).Str("event", event).Msg("Failed to deliver snapshot")
	}
}

// finishGame announces the terminal state to both bound connections, drops the
// session, and flips both players back to available.
func (co *Coordinator) finishGame(s *game.Session, status game.Status, winner user.User) {
	payload := GameEndedPayload{GameID: s.ID, Status: status, Winner: winner}

	for _, p := range s.Players() {
		if conn, ok := co.games.ConnFor(s.ID, p.ID); ok {
			if err := conn.SendEvent(EventGameEnded, payload); err != nil {
				co.logger.Warn().Err(err).Str("game_id", s.ID.String()).Msg("Failed to announce game end")
			}
		}
		co.lifecycle.CancelGrace(s.ID, p.ID)
	}

	co.games.Remove(s.ID)

	for _, p := range s.Players() {
		if co.registry.DropIfSuspended(p.ID) {
			continue
		}
		co.registry.SetStatus(p.ID, StatusAvailable)
	}
}
