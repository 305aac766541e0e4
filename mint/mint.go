// Package mint produces new object ids, either from a random number
// generator or from a deterministic sequence.
//
// Production mints derive the counter half of each id from a nanosecond
// clock with a monotonic bump, so ids from one mint are strictly increasing
// and store inserts stay append-shaped. The deterministic modes exist for
// tests.
package mint

import (
	cryptorand "crypto/rand"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hupe1980/entstore/model"
)

type mode int

const (
	modeClock mode = iota
	modeSeeded
	modeSequential
)

// Mint generates object ids. Safe for concurrent use.
type Mint struct {
	mu      sync.Mutex
	mode    mode
	rng     *rand.ChaCha8
	counter uint64
}

// New creates a production mint: counters come from the wall clock in
// nanoseconds (bumped to stay strictly increasing), random halves from a
// crypto-seeded generator.
func New() *Mint {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		panic("entstore/mint: reading random seed: " + err.Error())
	}
	return &Mint{mode: modeClock, rng: rand.NewChaCha8(seed)}
}

// NewSeeded creates a mint whose ids are a deterministic function of seed.
// Both id halves are drawn from the generator, so ids are NOT monotonic;
// useful for exercising the store's out-of-order insert paths.
func NewSeeded(seed [32]byte) *Mint {
	return &Mint{mode: modeSeeded, rng: rand.NewChaCha8(seed)}
}

// NewSequential creates a mint yielding counters 1, 2, 3, ... with zero
// random halves. Intended for tests that need predictable ids.
func NewSequential() *Mint {
	return &Mint{mode: modeSequential}
}

// NextID returns a fresh object id.
func (m *Mint) NextID() model.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.mode {
	case modeClock:
		counter := uint64(time.Now().UnixNano())
		if counter <= m.counter {
			counter = m.counter + 1
		}
		m.counter = counter
		return model.NewObjectID(counter, m.rng.Uint64())

	case modeSeeded:
		counter := m.rng.Uint64()
		for counter == 0 {
			counter = m.rng.Uint64()
		}
		return model.NewObjectID(counter, m.rng.Uint64())

	default: // modeSequential
		m.counter++
		return model.NewObjectID(m.counter, 0)
	}
}
