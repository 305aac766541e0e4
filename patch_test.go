package entstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/entstore/codec"
	"github.com/hupe1980/entstore/model"
)

// fourVersionStore builds a store with one row per version v1..v4, ids 1..4.
func fourVersionStore(t *testing.T) *Store[uint64, model.Version] {
	t.Helper()
	s := New[uint64, model.Version](model.MinVersion)
	for i := uint64(1); i <= 4; i++ {
		s.SetMeta(model.MinVersion.Advance(i - 1))
		s.Insert(model.TestingID(i), i*10)
	}
	s.Maintenance()
	return s
}

func counters(ids []model.ObjectID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = id.Counter
	}
	return out
}

func TestPrepareEmptyStore(t *testing.T) {
	s := New[uint64, model.Version](model.MinVersion)

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Rows())
	assert.Equal(t, 0, b.BufferLen())

	p := b.ExtractPatch(0, nil)
	assert.Equal(t, 0, p.Len())

	target := New[uint64, model.Version](model.MinVersion)
	require.NoError(t, Apply(p, target))
	assert.Equal(t, 0, target.Len())
}

func TestExtractByBaseline(t *testing.T) {
	s := fourVersionStore(t)

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Rows())

	// A zero extraction baseline means "has everything up to MinVersion":
	// rows stamped exactly MinVersion are excluded.
	assert.Equal(t, []uint64{2, 3, 4}, counters(b.ExtractPatch(0, nil).IDs()))
	assert.Equal(t, []uint64{2, 3, 4}, counters(b.ExtractPatch(model.MinVersion, nil).IDs()))
	assert.Equal(t, []uint64{3, 4}, counters(b.ExtractPatch(model.MinVersion.Next(), nil).IDs()))
	assert.Equal(t, []uint64{4}, counters(b.ExtractPatch(model.MinVersion.Advance(2), nil).IDs()))
	assert.Equal(t, 0, b.ExtractPatch(model.MinVersion.Advance(3), nil).Len())
	assert.Equal(t, 0, b.ExtractPatch(model.MaxVersion, nil).Len())
}

func TestPrepareBaselineTrimsScan(t *testing.T) {
	s := fourVersionStore(t)

	// The builder itself only serializes rows newer than its own baseline.
	b, err := Prepare(s, model.MinVersion.Next(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Rows())

	// Extraction cannot resurrect rows the scan never serialized.
	assert.Equal(t, []uint64{3, 4}, counters(b.ExtractPatch(0, nil).IDs()))
}

func TestPrepareFilter(t *testing.T) {
	s := fourVersionStore(t)

	odd := func(id model.ObjectID) bool { return id.Counter%2 == 1 }
	b, err := Prepare(s, 0, odd)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Rows())

	// Ids filtered out of the scan are invisible to every extraction.
	assert.Equal(t, []uint64{3}, counters(b.ExtractPatch(0, nil).IDs()))
}

func TestExtractFilter(t *testing.T) {
	s := fourVersionStore(t)

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)

	even := func(id model.ObjectID) bool { return id.Counter%2 == 0 }
	assert.Equal(t, []uint64{2, 4}, counters(b.ExtractPatch(0, even).IDs()))

	// The shared scan still has everything for other recipients.
	assert.Equal(t, []uint64{2, 3, 4}, counters(b.ExtractPatch(0, nil).IDs()))
}

func TestPatchSortedByID(t *testing.T) {
	s := New[uint64, model.Version](model.MinVersion)

	// Rows land in the builder grouped by version, deliberately not in id
	// order: id 3 at v2, id 1 at v3, id 2 at v4.
	s.SetMeta(model.MinVersion.Next())
	s.Insert(model.TestingID(3), 30)
	s.SetMeta(model.MinVersion.Advance(2))
	s.Insert(model.TestingID(1), 10)
	s.SetMeta(model.MinVersion.Advance(3))
	s.Insert(model.TestingID(2), 20)
	s.Maintenance()

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 3}, counters(b.ExtractPatch(0, nil).IDs()))
}

func TestApplyRoundTrip(t *testing.T) {
	s := fourVersionStore(t)

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)

	replica := New[uint64, model.Version](model.MinVersion)
	replica.Insert(model.TestingID(1), 10) // the state a zero baseline assumes

	require.NoError(t, Apply(b.ExtractPatch(0, nil), replica))

	assert.Equal(t, 4, replica.Len())
	for i := uint64(1); i <= 4; i++ {
		v, ok := replica.GetByID(model.TestingID(i))
		require.True(t, ok)
		assert.Equal(t, i*10, *v)
	}

	// Applied rows carry their source versions; the replica's own current
	// metadata is untouched.
	meta, _ := replica.MetaForID(model.TestingID(4))
	assert.Equal(t, model.MinVersion.Advance(3), meta)
	assert.Equal(t, model.MinVersion, replica.Meta())
}

func TestApplyIsIdempotent(t *testing.T) {
	s := fourVersionStore(t)
	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)
	p := b.ExtractPatch(0, nil)

	replica := New[uint64, model.Version](model.MinVersion)
	require.NoError(t, Apply(p, replica))
	require.NoError(t, Apply(p, replica))

	assert.Equal(t, 3, replica.Len())
	v, _ := replica.GetByID(model.TestingID(2))
	assert.Equal(t, uint64(20), *v)
}

func TestApplyDoesNotOverrideNewer(t *testing.T) {
	s := New[uint64, model.Version](model.MinVersion)
	s.SetMeta(model.MinVersion.Advance(2))
	s.Insert(model.TestingID(1), 100)
	s.Maintenance()

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)
	p := b.ExtractPatch(0, nil)

	// The target already advanced past the patch for this id.
	target := New[uint64, model.Version](model.MinVersion)
	target.SetMeta(model.MinVersion.Advance(5))
	target.Insert(model.TestingID(1), 999)

	require.NoError(t, Apply(p, target))

	v, _ := target.GetByID(model.TestingID(1))
	assert.Equal(t, uint64(999), *v)
	meta, _ := target.MetaForID(model.TestingID(1))
	assert.Equal(t, model.MinVersion.Advance(5), meta)
}

func TestApplyEqualVersionKeepsExisting(t *testing.T) {
	v := model.MinVersion.Next()
	s := New[uint64, model.Version](model.MinVersion)
	s.SetMeta(v)
	s.Insert(model.TestingID(1), 100)
	s.Maintenance()

	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)

	target := New[uint64, model.Version](model.MinVersion)
	target.SetMeta(v)
	target.Insert(model.TestingID(1), 999)

	require.NoError(t, Apply(b.ExtractPatch(0, nil), target))

	got, _ := target.GetByID(model.TestingID(1))
	assert.Equal(t, uint64(999), *got)
}

func TestApplyDecodeError(t *testing.T) {
	src := New[string, model.Version](model.MinVersion, WithCodec(codec.JSON{}))
	src.SetMeta(model.MinVersion.Next())
	src.Insert(model.TestingID(1), "not a number")
	src.Maintenance()

	b, err := Prepare(src, 0, nil)
	require.NoError(t, err)
	p := b.ExtractPatch(0, nil)

	target := New[int, model.Version](model.MinVersion, WithCodec(codec.JSON{}))
	err = Apply(p, target)
	require.Error(t, err)

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.TestingID(1), derr.ID)
	assert.Equal(t, model.MinVersion.Next(), derr.Version)
}

func TestApplyPartialOnDecodeError(t *testing.T) {
	src := New[any, model.Version](model.MinVersion, WithCodec(codec.JSON{}))
	src.SetMeta(model.MinVersion.Next())
	src.Insert(model.TestingID(1), 11)
	src.Insert(model.TestingID(2), "garbage")
	src.Maintenance()

	b, err := Prepare(src, 0, nil)
	require.NoError(t, err)
	p := b.ExtractPatch(0, nil)

	target := New[int, model.Version](model.MinVersion, WithCodec(codec.JSON{}))
	err = Apply(p, target)
	require.Error(t, err)

	// Entries applied before the failure stay applied.
	v, ok := target.GetByID(model.TestingID(1))
	require.True(t, ok)
	assert.Equal(t, 11, *v)
	_, ok = target.GetByID(model.TestingID(2))
	assert.False(t, ok)
}

func TestPatchSharesBuilderBuffer(t *testing.T) {
	s := fourVersionStore(t)
	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)

	p1 := b.ExtractPatch(0, nil)
	p2 := b.ExtractPatch(model.MinVersion.Advance(2), nil)
	require.Greater(t, p1.Len(), 0)
	require.Greater(t, p2.Len(), 0)

	// Both patches slice the same backing buffer: no per-peer re-encode.
	_, _, payload1 := p1.Entry(p1.Len() - 1)
	_, _, payload2 := p2.Entry(0)
	assert.Equal(t, payload1, payload2)
}

func TestApplyRunsMaintenance(t *testing.T) {
	s := fourVersionStore(t)
	b, err := Prepare(s, 0, nil)
	require.NoError(t, err)

	// Replica already holds a larger id, so every patched id needs an
	// interior position and would be staged without the trailing
	// maintenance.
	replica := New[uint64, model.Version](model.MinVersion)
	replica.Insert(model.TestingID(100), 1)

	require.NoError(t, Apply(b.ExtractPatch(0, nil), replica))
	assert.Equal(t, 0, replica.PendingLen())
	assert.Equal(t, 4, replica.IndexLen())
}

func TestDecodeErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewDecodeError(model.TestingID(1), model.MinVersion, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "oid(1:")
}
