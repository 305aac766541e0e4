package mint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialMint(t *testing.T) {
	m := NewSequential()
	for want := uint64(1); want <= 5; want++ {
		id := m.NextID()
		assert.Equal(t, want, id.Counter)
		assert.Equal(t, uint64(0), id.Random)
	}
}

func TestSeededMintIsDeterministic(t *testing.T) {
	var seed [32]byte
	seed[0] = 7

	a, b := NewSeeded(seed), NewSeeded(seed)
	for i := 0; i < 100; i++ {
		ida, idb := a.NextID(), b.NextID()
		require.Equal(t, ida, idb)
		require.NotZero(t, ida.Counter)
	}
}

func TestSeededMintVariesWithSeed(t *testing.T) {
	var s1, s2 [32]byte
	s2[0] = 1

	assert.NotEqual(t, NewSeeded(s1).NextID(), NewSeeded(s2).NextID())
}

func TestClockMintCountersIncrease(t *testing.T) {
	m := New()
	prev := m.NextID()
	for i := 0; i < 1000; i++ {
		id := m.NextID()
		require.Greater(t, id.Counter, prev.Counter)
		prev = id
	}
}
