/*
Package game contains the authoritative rules and state machine for a two-player dominoes match.

This file defines the Gateway interface, the coordinator's contract with the
durable persistence collaborator, and the row shapes exchanged through it. Every
state-mutating session call goes through the Gateway before the in-memory
mutation is committed, so a reconnecting player can always reload consistent state.
*/
package game

import (
	"context"

	"github.com/google/uuid"
)

// Tile locations in the persisted representation. The structural in-memory
// model (hands, chain, pile) is authoritative; these labels are purely the
// serialization of that structure.
const (
	LocationHand1 = "hand1"
	LocationHand2 = "hand2"
	LocationChain = "chain"
	LocationPile  = "pile"
)

// GameRecord is the persisted shape of a game row.
type GameRecord struct {
	ID          uuid.UUID
	Player1ID   string
	Player2ID   string
	CurrentTurn string
	Status      Status
	Winner      string
}

// TileRecord is the persisted shape of one tile row within a game.
// BoardPosition, LeftPip, and RightPip are set only for tiles on the chain.
type TileRecord struct {
	TileID        string
	PipA          int
	PipB          int
	Location      string
	BoardPosition *int
	LeftPip       *int
	RightPip      *int
}

// MoveRecord captures the row changes of a single play or draw: the moved
// tile's new location plus the game row's resulting turn/status/winner.
type MoveRecord struct {
	Tile        TileRecord
	CurrentTurn string
	Status      Status
	Winner      string
}

// Gateway is the synchronous request/response contract with the persistence
// collaborator. Implementations may fail transiently; callers treat any error
// as retryable and leave in-memory state untouched.
type Gateway interface {
	// CreateGame durably creates the game row and its 28 tile rows.
	CreateGame(ctx context.Context, game GameRecord, tiles []TileRecord) error

	// RecordMove updates one tile row and the game row as a single unit.
	RecordMove(ctx context.Context, gameID uuid.UUID, mv MoveRecord) error

	// RecordTurn updates only the game row's current turn (a pass).
	RecordTurn(ctx context.Context, gameID uuid.UUID, currentTurn string) error

	// RecordOutcome updates the game row's status and winner.
	RecordOutcome(ctx context.Context, gameID uuid.UUID, status Status, winner string) error

	// FetchGame reads the game row and all its tile rows by id.
	FetchGame(ctx context.Context, gameID uuid.UUID) (GameRecord, []TileRecord, error)
}
