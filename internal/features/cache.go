package features

import (
	"sync"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
)

// Cache maps external track ids to feature vectors for the process lifetime.
// Entries are never evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.AudioFeatures
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]domain.AudioFeatures)}
}

func (c *Cache) Get(trackID string) (domain.AudioFeatures, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.entries[trackID]
	return f, ok
}

func (c *Cache) Put(trackID string, f domain.AudioFeatures) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[trackID] = f
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
