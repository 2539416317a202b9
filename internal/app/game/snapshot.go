/*
Package game contains the authoritative rules and state machine for a two-player dominoes match.

This file defines the viewer-scoped snapshot of a session, sent in response to
join-game so a reconnecting client can reload consistent state. A viewer sees
their own hand in full; the opponent's hand and the pile are disclosed as
counts only.
*/
package game

import (
	"sort"

	"dominet/internal/app/user"
)

// Snapshot is the full authoritative game state as visible to one player.
type Snapshot struct {
	GameID        string       `json:"gameId"`
	Players       [2]user.User `json:"players"`
	CurrentTurn   string       `json:"currentTurn"`
	Status        Status       `json:"status"`
	Winner        string       `json:"winner,omitempty"`
	Chain         []PlacedTile `json:"chain"`
	Hand          []Tile       `json:"hand"`
	OpponentCount int          `json:"opponentCount"`
	PileCount     int          `json:"pileCount"`
	LeftEnd       *int         `json:"leftEnd,omitempty"`
	RightEnd      *int         `json:"rightEnd,omitempty"`
}

// Snapshot builds the state visible to viewerID. The second return value is
// false when viewerID is not one of the game's two players.
func (s *Session) Snapshot(viewerID string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.playerIndex(viewerID)
	if !ok {
		return Snapshot{}, false
	}

	hand := make([]Tile, 0, len(s.hands[idx]))
	for _, t := range s.hands[idx] {
		hand = append(hand, t)
	}
	sort.Slice(hand, func(i, j int) bool { return hand[i].ID < hand[j].ID })

	chain := make([]PlacedTile, len(s.chain))
	copy(chain, s.chain)

	snap := Snapshot{
		GameID:        s.ID.String(),
		Players:       s.players,
		CurrentTurn:   s.players[s.current].ID,
		Status:        s.status,
		Winner:        s.winner,
		Chain:         chain,
		Hand:          hand,
		OpponentCount: len(s.hands[1-idx]),
		PileCount:     len(s.pile),
	}

	if len(s.chain) > 0 {
		left := s.chain[0].LeftPip
		right := s.chain[len(s.chain)-1].RightPip
		snap.LeftEnd = &left
		snap.RightEnd = &right
	}

	return snap, true
}
