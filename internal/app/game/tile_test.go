package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTileSet(t *testing.T) {
	tiles := NewTileSet()
	require.Len(t, tiles, SetSize)

	seen := make(map[string]struct{}, SetSize)
	doubles := 0

	for _, tile := range tiles {
		assert.LessOrEqual(t, tile.PipA, tile.PipB, "canonical order violated for %s", tile.ID)
		assert.GreaterOrEqual(t, tile.PipA, 0)
		assert.LessOrEqual(t, tile.PipB, MaxPip)

		_, dup := seen[tile.ID]
		assert.False(t, dup, "duplicate tile %s", tile.ID)
		seen[tile.ID] = struct{}{}

		if tile.IsDouble() {
			doubles++
		}
	}

	assert.Equal(t, 7, doubles)
}

func TestNewTileCanonicalizes(t *testing.T) {
	assert.Equal(t, NewTile(2, 5), NewTile(5, 2))
	assert.Equal(t, "2-5", NewTile(5, 2).ID)
}

func TestTileHasAndOther(t *testing.T) {
	tile := NewTile(2, 5)

	assert.True(t, tile.Has(2))
	assert.True(t, tile.Has(5))
	assert.False(t, tile.Has(3))

	assert.Equal(t, 5, tile.Other(2))
	assert.Equal(t, 2, tile.Other(5))

	double := NewTile(4, 4)
	assert.Equal(t, 4, double.Other(4))
}

func TestSideValid(t *testing.T) {
	assert.True(t, SideLeft.Valid())
	assert.True(t, SideRight.Valid())
	assert.False(t, Side("").Valid())
	assert.False(t, Side("top").Valid())
}
