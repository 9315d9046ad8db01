package chainclient

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBlock builds a minimal block at the given height
func testBlock(number uint64) *types.Block {
	header := &types.Header{Number: new(big.Int).SetUint64(number)}
	return types.NewBlockWithHeader(header)
}

// TestBlockCacheGetSet tests the basic cache round trip
func TestBlockCacheGetSet(t *testing.T) {
	cache := NewBlockCache(time.Minute, 10)

	_, ok := cache.Get(100)
	assert.False(t, ok, "empty cache should miss")

	cache.Set(100, testBlock(100))

	block, ok := cache.Get(100)
	require.True(t, ok)
	assert.Equal(t, uint64(100), block.NumberU64())
	assert.Equal(t, 1, cache.Len())
}

// TestBlockCacheTTLExpiry tests that stale entries are not served
func TestBlockCacheTTLExpiry(t *testing.T) {
	cache := NewBlockCache(30*time.Millisecond, 10)

	cache.Set(100, testBlock(100))
	_, ok := cache.Get(100)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = cache.Get(100)
	assert.False(t, ok, "entry past TTL should miss")
}

// TestBlockCacheBoundedSize tests that the cache never grows past its cap
func TestBlockCacheBoundedSize(t *testing.T) {
	cache := NewBlockCache(time.Minute, 5)

	for i := uint64(0); i < 20; i++ {
		cache.Set(i, testBlock(i))
	}

	assert.LessOrEqual(t, cache.Len(), 5)

	// the most recent entry must still be retrievable
	block, ok := cache.Get(19)
	require.True(t, ok)
	assert.Equal(t, uint64(19), block.NumberU64())
}

// TestBlockCacheClear tests that Clear drops everything
func TestBlockCacheClear(t *testing.T) {
	cache := NewBlockCache(time.Minute, 10)

	cache.Set(1, testBlock(1))
	cache.Set(2, testBlock(2))
	require.Equal(t, 2, cache.Len())

	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get(1)
	assert.False(t, ok)
}

// TestBlockCachePurgeKeepsFreshEntries tests that overflowing with fresh
// entries resets the cache but keeps accepting new blocks
func TestBlockCachePurgeKeepsFreshEntries(t *testing.T) {
	cache := NewBlockCache(20*time.Millisecond, 3)

	cache.Set(1, testBlock(1))
	cache.Set(2, testBlock(2))
	cache.Set(3, testBlock(3))

	// let the first generation expire, then overflow
	time.Sleep(40 * time.Millisecond)
	cache.Set(4, testBlock(4))

	_, ok := cache.Get(4)
	assert.True(t, ok)
	assert.LessOrEqual(t, cache.Len(), 3)
}
