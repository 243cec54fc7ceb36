package chain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *TimestampCache {
	t.Helper()
	c, err := OpenTimestampCache(filepath.Join(t.TempDir(), "tscache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTimestampCacheMiss(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimestampCachePutGet(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put(42, 1_700_000_000_000))

	ms, ok, err := c.Get(42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1_700_000_000_000), ms)
}

func TestTimestampCacheLoadBundled(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.LoadBundled(map[uint64]int64{
		1: 1000,
		2: 2000,
		3: 3000,
	}))

	for blockNumber, want := range map[uint64]int64{1: 1000, 2: 2000, 3: 3000} {
		got, ok, err := c.Get(blockNumber)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}
