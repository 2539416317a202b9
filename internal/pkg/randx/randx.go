/*
Package randx provides functions for cryptographically secure randomness and unique identifiers.

It is primarily used to shuffle the tile set when a game is dealt and to generate
standard UUID identifiers for games and challenges.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// NewID generates a standard UUID v4 to serve as a unique identifier for a game or challenge.
func NewID() uuid.UUID {
	return uuid.New()
}

// Shuffle performs an in-place Fisher-Yates shuffle of n elements using the
// cryptographically secure random number generator (crypto/rand). The swap
// function exchanges the elements at the two given indices.
func Shuffle(n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to generate random number for shuffle: %v", err)
		}

		swap(i, int(num.Int64()))
	}

	return nil
}

// Intn returns a uniformly random int in [0, n) using crypto/rand.
// Used to pick an arbitrary tile from the draw pile.
func Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("randx: Intn called with non-positive n (%d)", n)
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %v", err)
	}

	return int(num.Int64()), nil
}
