/*
Package handler provides the HTTP handlers and routing setup for the Dominet server.

This file contains the read-only game endpoint backing client reloads. The
response is viewer-scoped: a player sees their own hand in full while the
opponent's hand and the pile are disclosed as counts only.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dominet/internal/app/game"
	"dominet/internal/app/store"
	"dominet/internal/pkg/auth/jwt"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
	"dominet/internal/pkg/resp"
)

// TileView is one tile in the game view response.
type TileView struct {
	ID            string `json:"id"`
	PipA          int    `json:"pipA"`
	PipB          int    `json:"pipB"`
	BoardPosition *int   `json:"boardPosition,omitempty"`
	LeftPip       *int   `json:"leftPip,omitempty"`
	RightPip      *int   `json:"rightPip,omitempty"`
}

// GameView is the persisted game state as visible to the requesting identity.
type GameView struct {
	ID            string      `json:"id"`
	Player1ID     string      `json:"player1Id"`
	Player2ID     string      `json:"player2Id"`
	CurrentTurn   string      `json:"currentTurn"`
	Status        game.Status `json:"status"`
	Winner        string      `json:"winner,omitempty"`
	Chain         []TileView  `json:"chain"`
	Hand          []TileView  `json:"hand,omitempty"`
	Hand1Count    int         `json:"hand1Count"`
	Hand2Count    int         `json:"hand2Count"`
	PileCount     int         `json:"pileCount"`
}

// HandleGetGame serves GET /api/games/{id}, reading the game and its tiles
// through the persistence gateway.
func HandleGetGame(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		rec, tiles, err := deps.Gateway.FetchGame(r.Context(), gameID)
		if errors.Is(err, store.ErrGameNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrGameNotFound))
			return
		}
		if err != nil {
			logx.Error(err, "Failed to fetch game", "game_id", gameID.String())
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistenceUnavailable))
			return
		}

		var viewerID string
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			viewerID = payload.ID
		}

		resp.RespondSuccess(w, r, buildGameView(rec, tiles, viewerID))
	}
}

// buildGameView assembles the viewer-scoped response. Anonymous viewers and
// non-players see both hands as counts only.
func buildGameView(rec game.GameRecord, tiles []game.TileRecord, viewerID string) GameView {
	view := GameView{
		ID:          rec.ID.String(),
		Player1ID:   rec.Player1ID,
		Player2ID:   rec.Player2ID,
		CurrentTurn: rec.CurrentTurn,
		Status:      rec.Status,
		Winner:      rec.Winner,
		Chain:       []TileView{},
	}

	viewerHand := ""
	switch viewerID {
	case rec.Player1ID:
		viewerHand = game.LocationHand1
	case rec.Player2ID:
		viewerHand = game.LocationHand2
	}

	for _, t := range tiles {
		switch t.Location {
		case game.LocationChain:
			view.Chain = append(view.Chain, TileView{
				ID: t.TileID, PipA: t.PipA, PipB: t.PipB,
				BoardPosition: t.BoardPosition,
				LeftPip:       t.LeftPip,
				RightPip:      t.RightPip,
			})
		case game.LocationHand1:
			view.Hand1Count++
		case game.LocationHand2:
			view.Hand2Count++
		case game.LocationPile:
			view.PileCount++
		}

		if viewerHand != "" && t.Location == viewerHand {
			view.Hand = append(view.Hand, TileView{ID: t.TileID, PipA: t.PipA, PipB: t.PipB})
		}
	}

	return view
}
