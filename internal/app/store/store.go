/*
Package store implements the game.Gateway persistence contract on PostgreSQL.

It owns every query against the games and game_tiles tables and wraps each
write in a bounded fibonacci-backoff retry, since the coordinator treats
gateway failures as transient: a failed write leaves in-memory game state
exactly as before the attempted move.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"dominet/internal/app/db"
	"dominet/internal/app/game"
	"dominet/internal/pkg/logx"
)

const (
	// retryBaseDelay is the first fibonacci backoff step between attempts.
	retryBaseDelay = 100 * time.Millisecond

	// maxRetries bounds the additional attempts after the first failure.
	maxRetries = 3
)

// GameStore is the PostgreSQL-backed implementation of game.Gateway.
type GameStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewGameStore constructs a GameStore over an initialized connection pool.
func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "GameStore").Logger(),
	}
}

// withRetry runs op with bounded fibonacci backoff. Integrity violations are
// not retried: they indicate a bug, not a transient outage.
func (g *GameStore) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
			return err
		}

		return retry.RetryableError(err)
	})
}

// CreateGame durably creates the game row and its 28 tile rows in one transaction.
func (g *GameStore) CreateGame(ctx context.Context, rec game.GameRecord, tiles []game.TileRecord) error {
	err := g.withRetry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx,
				`INSERT INTO games (id, player1_id, player2_id, current_turn, status, winner)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				rec.ID, rec.Player1ID, rec.Player2ID, rec.CurrentTurn, string(rec.Status), nullString(rec.Winner),
			)
			if err != nil {
				return fmt.Errorf("insert game row: %w", err)
			}

			batch := &pgx.Batch{}
			for _, t := range tiles {
				batch.Queue(
					`INSERT INTO game_tiles (game_id, tile_id, pip_a, pip_b, location, board_position, left_pip, right_pip)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					rec.ID, t.TileID, t.PipA, t.PipB, t.Location, t.BoardPosition, t.LeftPip, t.RightPip,
				)
			}

			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert tile rows: %w", err)
			}

			return nil
		})
	})

	if db.IsUniqueViolation(err) {
		return fmt.Errorf("game %s already exists: %w", rec.ID, err)
	}
	return err
}

// RecordMove updates the moved tile row and the game row as a single transaction.
func (g *GameStore) RecordMove(ctx context.Context, gameID uuid.UUID, mv game.MoveRecord) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				`UPDATE game_tiles
				 SET location = $3, board_position = $4, left_pip = $5, right_pip = $6
				 WHERE game_id = $1 AND tile_id = $2`,
				gameID, mv.Tile.TileID, mv.Tile.Location, mv.Tile.BoardPosition, mv.Tile.LeftPip, mv.Tile.RightPip,
			)
			if err != nil {
				return fmt.Errorf("update tile row: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("tile %s not found in game %s", mv.Tile.TileID, gameID)
			}

			return g.updateGameRow(ctx, tx, gameID, mv.CurrentTurn, mv.Status, mv.Winner)
		})
	})
}

// updateGameRow writes the game row's turn, status, and winner inside tx.
func (g *GameStore) updateGameRow(ctx context.Context, tx pgx.Tx, gameID uuid.UUID, currentTurn string, status game.Status, winner string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE games SET current_turn = $2, status = $3, winner = $4, updated_at = now() WHERE id = $1`,
		gameID, currentTurn, string(status), nullString(winner),
	)
	if err != nil {
		return fmt.Errorf("update game row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %s not found", gameID)
	}
	return nil
}

// RecordTurn updates only the game row's current turn.
func (g *GameStore) RecordTurn(ctx context.Context, gameID uuid.UUID, currentTurn string) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		tag, err := g.pool.Exec(ctx,
			`UPDATE games SET current_turn = $2, updated_at = now() WHERE id = $1`,
			gameID, currentTurn,
		)
		if err != nil {
			return fmt.Errorf("update game turn: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("game %s not found", gameID)
		}
		return nil
	})
}

// RecordOutcome updates the game row's status and winner.
func (g *GameStore) RecordOutcome(ctx context.Context, gameID uuid.UUID, status game.Status, winner string) error {
	return g.withRetry(ctx, func(ctx context.Context) error {
		tag, err := g.pool.Exec(ctx,
			`UPDATE games SET status = $2, winner = $3, updated_at = now() WHERE id = $1`,
			gameID, string(status), nullString(winner),
		)
		if err != nil {
			return fmt.Errorf("update game outcome: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("game %s not found", gameID)
		}
		return nil
	})
}

// ErrGameNotFound is returned by FetchGame when no row exists for the id.
var ErrGameNotFound = errors.New("store: game not found")

// FetchGame reads the game row and all its tile rows by id. Reads are not
// retried; callers surface the failure and the client retries the reload.
func (g *GameStore) FetchGame(ctx context.Context, gameID uuid.UUID) (game.GameRecord, []game.TileRecord, error) {
	var rec game.GameRecord
	var status string
	var winner *string

	err := g.pool.QueryRow(ctx,
		`SELECT id, player1_id, player2_id, current_turn, status, winner FROM games WHERE id = $1`,
		gameID,
	).Scan(&rec.ID, &rec.Player1ID, &rec.Player2ID, &rec.CurrentTurn, &status, &winner)

	if errors.Is(err, pgx.ErrNoRows) {
		return game.GameRecord{}, nil, ErrGameNotFound
	}
	if err != nil {
		return game.GameRecord{}, nil, fmt.Errorf("select game row: %w", err)
	}

	rec.Status = game.Status(status)
	if winner != nil {
		rec.Winner = *winner
	}

	rows, err := g.pool.Query(ctx,
		`SELECT tile_id, pip_a, pip_b, location, board_position, left_pip, right_pip
		 FROM game_tiles WHERE game_id = $1
		 ORDER BY board_position NULLS LAST, tile_id`,
		gameID,
	)
	if err != nil {
		return game.GameRecord{}, nil, fmt.Errorf("select tile rows: %w", err)
	}

	tiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.TileRecord, error) {
		var t game.TileRecord
		err := row.Scan(&t.TileID, &t.PipA, &t.PipB, &t.Location, &t.BoardPosition, &t.LeftPip, &t.RightPip)
		return t, err
	})
	if err != nil {
		return game.GameRecord{}, nil, fmt.Errorf("scan tile rows: %w", err)
	}

	return rec, tiles, nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
