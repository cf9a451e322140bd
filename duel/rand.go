package duel

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Rand is the source of randomness for target picks, first turns and shots
type Rand interface {
	// IntN returns a uniform number in [0, n)
	IntN(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rng.IntN(n)
}

// NewRand returns a concurrency-safe PCG generator seeded from crypto/rand
func NewRand() (Rand, error) {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}

	seed1 := binary.LittleEndian.Uint64(b[:8])
	seed2 := binary.LittleEndian.Uint64(b[8:])

	return &lockedRand{rng: rand.New(rand.NewPCG(seed1, seed2))}, nil
}
