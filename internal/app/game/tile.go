/*
Package game contains the authoritative rules and state machine for a two-player
dominoes match: the tile set, the chain with its two open ends, both hands, the
draw pile, and turn ownership.

This file defines tiles and placed tiles. A tile is an unordered pair of pip
values in 0..6; a placed tile additionally carries the orientation chosen when
it was laid onto the chain.
*/
package game

import "fmt"

const (
	// MaxPip is the highest pip value in a standard double-six set.
	MaxPip = 6

	// SetSize is the number of tiles in a standard double-six set.
	SetSize = 28

	// HandSize is the number of tiles dealt to each player.
	HandSize = 7
)

// Side identifies which end of the chain a tile is played against.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Valid reports whether s is one of the two chain sides.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Tile is one domino: an unordered pair of pip values with a stable identity.
// PipA <= PipB always holds, so doubles exist exactly once and non-doubles once.
type Tile struct {
	ID   string `json:"id"`
	PipA int    `json:"pipA"`
	PipB int    `json:"pipB"`
}

// NewTile constructs the canonical tile for the pip pair (a, b).
func NewTile(a, b int) Tile {
	if a > b {
		a, b = b, a
	}
	return Tile{ID: fmt.Sprintf("%d-%d", a, b), PipA: a, PipB: b}
}

// Has reports whether the tile carries the given pip value.
func (t Tile) Has(pip int) bool {
	return t.PipA == pip || t.PipB == pip
}

// Other returns the pip on the opposite half from the given pip.
// For doubles both halves are equal, so Other returns the same value.
func (t Tile) Other(pip int) int {
	if t.PipA == pip {
		return t.PipB
	}
	return t.PipA
}

// IsDouble reports whether both halves carry the same pip value.
func (t Tile) IsDouble() bool {
	return t.PipA == t.PipB
}

// PlacedTile is a tile laid onto the chain together with its orientation:
// LeftPip is the half facing the chain's left end, RightPip the half facing right.
type PlacedTile struct {
	Tile
	LeftPip  int `json:"leftPip"`
	RightPip int `json:"rightPip"`
}

// NewTileSet returns the full double-six set of 28 tiles in canonical order.
func NewTileSet() []Tile {
	tiles := make([]Tile, 0, SetSize)
	for a := 0; a <= MaxPip; a++ {
		for b := a; b <= MaxPip; b++ {
			tiles = append(tiles, NewTile(a, b))
		}
	}
	return tiles
}
