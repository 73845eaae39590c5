package dice

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// seededSource is a deterministic Source. Two sources built from the same
// seed produce the same stream, which makes whole encounters replayable.
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a deterministic Source for the given seed.
func NewSeededSource(seed uint64) Source {
	return &seededSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Intn returns a pseudo-random int in [0, n).
//
// Precondition: n > 0.
func (s *seededSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
