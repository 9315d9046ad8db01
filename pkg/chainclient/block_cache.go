package chainclient

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// DefaultBlockCacheTTL keeps entries short-lived so a reorged block
	// is not served stale for longer than roughly one sweep.
	DefaultBlockCacheTTL = 30 * time.Second

	// DefaultBlockCacheSize bounds the cache to a few scan windows.
	DefaultBlockCacheSize = 4096
)

// BlockCache manages recently fetched blocks to avoid duplicate RPC
// calls when several intents scan overlapping block windows.
type BlockCache struct {
	mu         sync.RWMutex
	cache      map[uint64]*cachedBlock
	cacheTTL   time.Duration
	maxEntries int
}

// cachedBlock represents a cached block with timestamp
type cachedBlock struct {
	block     *types.Block
	timestamp time.Time
}

// NewBlockCache creates a new block cache
func NewBlockCache(cacheTTL time.Duration, maxEntries int) *BlockCache {
	return &BlockCache{
		cache:      make(map[uint64]*cachedBlock),
		cacheTTL:   cacheTTL,
		maxEntries: maxEntries,
	}
}

// Get retrieves a cached block if it's still valid
func (c *BlockCache) Get(number uint64) (*types.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[number]
	if !exists {
		return nil, false
	}

	// Check if cache is still valid
	if time.Since(cached.timestamp) > c.cacheTTL {
		return nil, false
	}

	return cached.block, true
}

// Set stores a block in the cache with current timestamp
func (c *BlockCache) Set(number uint64, block *types.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxEntries {
		c.purgeExpiredLocked()
	}
	// Still full after purging expired entries. Start over rather than
	// track recency; the next sweep repopulates what it needs.
	if len(c.cache) >= c.maxEntries {
		c.cache = make(map[uint64]*cachedBlock)
	}

	c.cache[number] = &cachedBlock{
		block:     block,
		timestamp: time.Now(),
	}
}

// Clear removes all cached entries
func (c *BlockCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[uint64]*cachedBlock)
}

// Len returns the number of cached entries, expired or not
func (c *BlockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache)
}

// purgeExpiredLocked drops entries past their TTL. Callers must hold mu.
func (c *BlockCache) purgeExpiredLocked() {
	for number, cached := range c.cache {
		if time.Since(cached.timestamp) > c.cacheTTL {
			delete(c.cache, number)
		}
	}
}
