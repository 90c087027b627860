package detection

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Cache is the process-local store of last known sensor values, sharded by
// installation id. Entries are transient: a restart resets every
// installation to the default baseline, which costs one no-prior-value
// comparison per installation.
type Cache struct {
	shards []cacheShard
}

type cacheShard struct {
	mu     sync.RWMutex
	states map[uuid.UUID]LastValues
}

// NewCache creates a cache with the given number of shards.
func NewCache(shardCount int) *Cache {
	if shardCount <= 0 {
		shardCount = 64
	}
	c := &Cache{shards: make([]cacheShard, shardCount)}
	for i := range c.shards {
		c.shards[i].states = make(map[uuid.UUID]LastValues)
	}
	return c
}

// Get returns the last known values for an installation, or the default
// baseline when none have been recorded.
func (c *Cache) Get(installationID uuid.UUID) LastValues {
	shard := c.shardFor(installationID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	if state, ok := shard.states[installationID]; ok {
		return state
	}
	return DefaultLastValues()
}

// Put stores the last known values for an installation.
func (c *Cache) Put(installationID uuid.UUID, values LastValues) {
	shard := c.shardFor(installationID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.states[installationID] = values
}

// Ensure initializes the entry for an installation if absent. Existing
// values are kept.
func (c *Cache) Ensure(installationID uuid.UUID) {
	shard := c.shardFor(installationID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, ok := shard.states[installationID]; !ok {
		shard.states[installationID] = DefaultLastValues()
	}
}

func (c *Cache) shardFor(id uuid.UUID) *cacheShard {
	h := fnv.New32a()
	h.Write(id[:])
	return &c.shards[h.Sum32()%uint32(len(c.shards))]
}
