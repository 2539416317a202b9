/*
Package game contains the authoritative rules and state machine for a two-player dominoes match.

This file defines the Session struct, the per-game authoritative state machine.
All mutating operations serialize on the session's own mutex, so operations on
one game are mutually exclusive while distinct games proceed fully in parallel.
Every mutation is persisted through the Gateway before it is applied in memory.
*/
package game

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dominet/internal/app/user"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
	"dominet/internal/pkg/randx"
)

// Status is the lifecycle state of a game session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Session is the authoritative state of one active game. Player 1 is always
// the challenger and holds the first turn.
type Session struct {
	// ID is the unique game identifier.
	ID uuid.UUID

	// gw is the persistence collaborator; mutations commit there first.
	gw Gateway

	// mu serializes all mutating operations on this game.
	mu sync.Mutex

	// players holds the two identities; index 0 is the challenger.
	players [2]user.User

	// current indexes players for the identity holding the turn.
	current int

	// hands holds each player's unplayed tiles, keyed by tile id.
	hands [2]map[string]Tile

	// chain is the ordered sequence of placed tiles, left to right.
	chain []PlacedTile

	// nextLeft/nextRight are the board positions the next left/right placement receives.
	nextLeft  int
	nextRight int

	// pile holds the undealt tiles available for drawing.
	pile []Tile

	status Status
	winner string

	logger zerolog.Logger
}

// NewSession deals a shuffled 28-tile set into 7/7/14 (player1 = challenger),
// durably creates the game row and its tile rows through the Gateway, and only
// then returns the live session. The challenger holds the first turn.
func NewSession(ctx context.Context, gw Gateway, challenger, target user.User) (*Session, *errs.CustomError) {
	tiles := NewTileSet()
	if err := randx.Shuffle(len(tiles), func(i, j int) {
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}); err != nil {
		logx.Error(err, "Failed to shuffle tile set")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	s := &Session{
		ID:        randx.NewID(),
		gw:        gw,
		players:   [2]user.User{challenger, target},
		current:   0,
		hands:     [2]map[string]Tile{make(map[string]Tile, HandSize), make(map[string]Tile, HandSize)},
		nextLeft:  -1,
		nextRight: 1,
		status:    StatusActive,
	}
	s.logger = logx.Logger().With().
		Str("component", "GameSession").
		Str("game_id", s.ID.String()).
		Logger()

	for _, t := range tiles[:HandSize] {
		s.hands[0][t.ID] = t
	}
	for _, t := range tiles[HandSize : 2*HandSize] {
		s.hands[1][t.ID] = t
	}
	s.pile = append(s.pile, tiles[2*HandSize:]...)

	if err := gw.CreateGame(ctx, s.record(), s.tileRecords()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist new game")
		return nil, errs.NewError(errs.ErrPersistenceUnavailable)
	}

	s.logger.Info().
		Str("player1", challenger.ID).
		Str("player2", target.ID).
		Msg("Game session created.")

	return s, nil
}

// record builds the persisted shape of the game row from current state.
// Callers must hold mu (or own the session exclusively, as NewSession does).
func (s *Session) record() GameRecord {
	return GameRecord{
		ID:          s.ID,
		Player1ID:   s.players[0].ID,
		Player2ID:   s.players[1].ID,
		CurrentTurn: s.players[s.current].ID,
		Status:      s.status,
		Winner:      s.winner,
	}
}

// tileRecords builds the persisted shape of all 28 tile rows from current state.
func (s *Session) tileRecords() []TileRecord {
	records := make([]TileRecord, 0, SetSize)

	for idx, hand := range s.hands {
		location := LocationHand1
		if idx == 1 {
			location = LocationHand2
		}
		for _, t := range hand {
			records = append(records, TileRecord{TileID: t.ID, PipA: t.PipA, PipB: t.PipB, Location: location})
		}
	}

	for pos, pt := range s.chain {
		boardPos := s.nextLeft + 1 + pos
		left, right := pt.LeftPip, pt.RightPip
		records = append(records, TileRecord{
			TileID: pt.ID, PipA: pt.PipA, PipB: pt.PipB,
			Location:      LocationChain,
			BoardPosition: &boardPos,
			LeftPip:       &left,
			RightPip:      &right,
		})
	}

	for _, t := range s.pile {
		records = append(records, TileRecord{TileID: t.ID, PipA: t.PipA, PipB: t.PipB, Location: LocationPile})
	}

	return records
}

// playerIndex resolves a player identity to its seat index.
func (s *Session) playerIndex(playerID string) (int, bool) {
	for idx, p := range s.players {
		if p.ID == playerID {
			return idx, true
		}
	}
	return 0, false
}

// handLocation maps a seat index to its persisted hand location label.
func handLocation(idx int) string {
	if idx == 0 {
		return LocationHand1
	}
	return LocationHand2
}

// checkTurn validates that the game is active and the actor holds the turn.
// Callers must hold mu.
func (s *Session) checkTurn(playerID string) (int, *errs.CustomError) {
	if s.status.Terminal() {
		return 0, errs.NewError(errs.ErrGameAlreadyOver)
	}

	idx, ok := s.playerIndex(playerID)
	if !ok {
		return 0, errs.NewError(errs.ErrNotInGame)
	}

	if idx != s.current {
		return 0, errs.NewError(errs.ErrNotYourTurn)
	}

	return idx, nil
}

// PlayResult describes a committed play for notification and reload purposes.
type PlayResult struct {
	Player        user.User  `json:"player"`
	Tile          PlacedTile `json:"tile"`
	Side          Side       `json:"side"`
	BoardPosition int        `json:"boardPosition"`
	HandCount     int        `json:"handCount"`
	LeftEnd       int        `json:"leftEnd"`
	RightEnd      int        `json:"rightEnd"`
	CurrentTurn   string     `json:"currentTurn"`
	Status        Status     `json:"status"`
	Winner        string     `json:"winner,omitempty"`
}

// Play validates and applies a tile placement by the acting player.
//
// Legality: any tile may open an empty chain; against a non-empty chain the
// tile must carry a pip equal to the chosen side's open end. Orientation is
// computed here: the matching pip is consumed against the open end and the
// other pip becomes that side's new open end. The client's claimed orientation
// is never trusted.
//
// A play that empties the acting player's hand completes the game with that
// player as winner, taking precedence over the turn switch.
func (s *Session) Play(ctx context.Context, playerID, tileID string, side Side) (*PlayResult, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, cerr := s.checkTurn(playerID)
	if cerr != nil {
		return nil, cerr
	}

	tile, ok := s.hands[idx][tileID]
	if !ok {
		return nil, errs.NewError(errs.ErrTileNotInHand)
	}

	if !side.Valid() {
		return nil, errs.NewError(errs.ErrInvalidEventPayload)
	}

	var placed PlacedTile
	var boardPos int

	switch {
	case len(s.chain) == 0:
		// First tile: orientation is arbitrary, both pips become the open ends.
		placed = PlacedTile{Tile: tile, LeftPip: tile.PipA, RightPip: tile.PipB}
		boardPos = 0

	case side == SideRight:
		end := s.chain[len(s.chain)-1].RightPip
		if !tile.Has(end) {
			return nil, errs.NewError(errs.ErrIllegalPlacement)
		}
		placed = PlacedTile{Tile: tile, LeftPip: end, RightPip: tile.Other(end)}
		boardPos = s.nextRight

	default: // SideLeft
		end := s.chain[0].LeftPip
		if !tile.Has(end) {
			return nil, errs.NewError(errs.ErrIllegalPlacement)
		}
		placed = PlacedTile{Tile: tile, LeftPip: tile.Other(end), RightPip: end}
		boardPos = s.nextLeft
	}

	nextCurrent := 1 - idx
	nextStatus := s.status
	nextWinner := s.winner
	if len(s.hands[idx]) == 1 {
		// Last tile leaves the hand: the win takes precedence over the turn switch.
		nextCurrent = idx
		nextStatus = StatusCompleted
		nextWinner = playerID
	}

	left, right := placed.LeftPip, placed.RightPip
	mv := MoveRecord{
		Tile: TileRecord{
			TileID: tile.ID, PipA: tile.PipA, PipB: tile.PipB,
			Location:      LocationChain,
			BoardPosition: &boardPos,
			LeftPip:       &left,
			RightPip:      &right,
		},
		CurrentTurn: s.players[nextCurrent].ID,
		Status:      nextStatus,
		Winner:      nextWinner,
	}

	if err := s.gw.RecordMove(ctx, s.ID, mv); err != nil {
		s.logger.Error().Err(err).Str("tile_id", tileID).Msg("Failed to persist play")
		return nil, errs.NewError(errs.ErrPersistenceUnavailable)
	}

	delete(s.hands[idx], tileID)
	if boardPos < 0 {
		s.chain = append([]PlacedTile{placed}, s.chain...)
		s.nextLeft--
	} else if boardPos > 0 {
		s.chain = append(s.chain, placed)
		s.nextRight++
	} else {
		s.chain = []PlacedTile{placed}
	}
	s.current = nextCurrent
	s.status = nextStatus
	s.winner = nextWinner

	s.logger.Debug().
		Str("player_id", playerID).
		Str("tile_id", tileID).
		Str("side", string(side)).
		Int("board_position", boardPos).
		Msg("Tile played.")

	return &PlayResult{
		Player:        s.players[idx],
		Tile:          placed,
		Side:          side,
		BoardPosition: boardPos,
		HandCount:     len(s.hands[idx]),
		LeftEnd:       s.chain[0].LeftPip,
		RightEnd:      s.chain[len(s.chain)-1].RightPip,
		CurrentTurn:   s.players[s.current].ID,
		Status:        s.status,
		Winner:        s.winner,
	}, nil
}

// DrawResult describes a committed draw. The drawn tile is disclosed only to
// the actor; opponents learn the new counts.
type DrawResult struct {
	Player      user.User `json:"player"`
	Tile        Tile      `json:"tile"`
	HandCount   int       `json:"handCount"`
	PileCount   int       `json:"pileCount"`
	CurrentTurn string    `json:"currentTurn"`
}

// Draw moves one arbitrarily-chosen tile from the pile to the acting player's
// hand and passes the turn. Drawing consumes the turn; it does not grant an
// extra play. Fails with EmptyPile when no tiles remain.
func (s *Session) Draw(ctx context.Context, playerID string) (*DrawResult, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, cerr := s.checkTurn(playerID)
	if cerr != nil {
		return nil, cerr
	}

	if len(s.pile) == 0 {
		return nil, errs.NewError(errs.ErrEmptyPile)
	}

	pick, err := randx.Intn(len(s.pile))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to pick a pile tile")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	tile := s.pile[pick]

	nextCurrent := 1 - idx
	mv := MoveRecord{
		Tile: TileRecord{
			TileID: tile.ID, PipA: tile.PipA, PipB: tile.PipB,
			Location: handLocation(idx),
		},
		CurrentTurn: s.players[nextCurrent].ID,
		Status:      s.status,
		Winner:      s.winner,
	}

	if err := s.gw.RecordMove(ctx, s.ID, mv); err != nil {
		s.logger.Error().Err(err).Str("tile_id", tile.ID).Msg("Failed to persist draw")
		return nil, errs.NewError(errs.ErrPersistenceUnavailable)
	}

	s.pile[pick] = s.pile[len(s.pile)-1]
	s.pile = s.pile[:len(s.pile)-1]
	s.hands[idx][tile.ID] = tile
	s.current = nextCurrent

	s.logger.Debug().
		Str("player_id", playerID).
		Int("pile_count", len(s.pile)).
		Msg("Tile drawn.")

	return &DrawResult{
		Player:      s.players[idx],
		Tile:        tile,
		HandCount:   len(s.hands[idx]),
		PileCount:   len(s.pile),
		CurrentTurn: s.players[s.current].ID,
	}, nil
}

// PassResult describes a committed pass.
type PassResult struct {
	Player      user.User `json:"player"`
	CurrentTurn string    `json:"currentTurn"`
}

// Pass hands the turn to the other player. While the pile still holds tiles
// the player must draw instead, so Pass fails with MustDrawFirst; an optional
// pass with draws remaining would break the stalemate rule.
func (s *Session) Pass(ctx context.Context, playerID string) (*PassResult, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, cerr := s.checkTurn(playerID)
	if cerr != nil {
		return nil, cerr
	}

	if len(s.pile) > 0 {
		return nil, errs.NewError(errs.ErrMustDrawFirst)
	}

	nextCurrent := 1 - idx
	if err := s.gw.RecordTurn(ctx, s.ID, s.players[nextCurrent].ID); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist pass")
		return nil, errs.NewError(errs.ErrPersistenceUnavailable)
	}

	s.current = nextCurrent

	s.logger.Debug().Str("player_id", playerID).Msg("Turn passed.")

	return &PassResult{
		Player:      s.players[idx],
		CurrentTurn: s.players[s.current].ID,
	}, nil
}

// EndResult describes a committed game-ending transition.
type EndResult struct {
	Status Status    `json:"status"`
	Winner user.User `json:"winner"`
}

// ForceEnd sets the terminal status and winner independent of whose turn it
// is. Used by the lifecycle manager on forfeiture and by voluntary leave or
// win reports. It fires at most once: a session already in a terminal state
// returns GameAlreadyOver and racing callers observe exactly one transition.
func (s *Session) ForceEnd(ctx context.Context, status Status, winnerID string) (*EndResult, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return nil, errs.NewError(errs.ErrGameAlreadyOver)
	}

	idx, ok := s.playerIndex(winnerID)
	if !ok {
		return nil, errs.NewError(errs.ErrNotInGame)
	}

	if !status.Terminal() {
		status = StatusCompleted
	}

	if err := s.gw.RecordOutcome(ctx, s.ID, status, winnerID); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist game outcome")
		return nil, errs.NewError(errs.ErrPersistenceUnavailable)
	}

	s.status = status
	s.winner = winnerID

	s.logger.Info().
		Str("winner", winnerID).
		Str("status", string(status)).
		Msg("Game ended.")

	return &EndResult{Status: status, Winner: s.players[idx]}, nil
}

// Players returns both player identities; index 0 is the challenger.
func (s *Session) Players() [2]user.User {
	return s.players
}

// Opponent returns the other player's identity, or false when playerID is not
// part of this game.
func (s *Session) Opponent(playerID string) (user.User, bool) {
	idx, ok := s.playerIndex(playerID)
	if !ok {
		return user.User{}, false
	}
	return s.players[1-idx], true
}

// IsPlayer reports whether the identity is one of the game's two players.
func (s *Session) IsPlayer(playerID string) bool {
	_, ok := s.playerIndex(playerID)
	return ok
}

// CurrentTurn returns the identity holding the turn.
func (s *Session) CurrentTurn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[s.current].ID
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Winner returns the winning identity, empty while the game is still active.
func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner
}

// Counts returns the tile counts of both hands, the chain, and the pile.
func (s *Session) Counts() (hand1, hand2, chain, pile int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hands[0]), len(s.hands[1]), len(s.chain), len(s.pile)
}

// OpenEnds returns the chain's two exposed pip values; ok is false while the
// chain is still empty.
func (s *Session) OpenEnds() (left, right int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chain) == 0 {
		return 0, 0, false
	}
	return s.chain[0].LeftPip, s.chain[len(s.chain)-1].RightPip, true
}
