package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/go-zarr/store"
)

func u64(v uint64) *uint64 { return &v }

func TestMemoryStoreGetSetErase(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("hello world")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)

	sz, err := s.Size(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), sz)

	erased, err := s.Erase(ctx, "k")
	require.NoError(t, err)
	assert.True(t, erased)

	erased, err = s.Erase(ctx, "k")
	require.NoError(t, err)
	assert.False(t, erased)
}

func TestMemoryStoreGetPartialValues(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("0123456789")))

	out, err := s.GetPartialValues(ctx, "k", []store.Range{
		store.FromStart(0, u64(3)),
		store.FromEndRange(2, nil),
		store.FromStart(4, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("012"), out[0])
	assert.Equal(t, []byte("89"), out[1])
	assert.Equal(t, []byte("456789"), out[2])
}

func TestRangeResolveInvalid(t *testing.T) {
	_, _, err := store.FromStart(5, u64(10)).Resolve(8)
	assert.ErrorIs(t, err, store.ErrInvalidByteRange)
}
