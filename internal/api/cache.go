package api

import (
	"sync"

	"github.com/bizhealth/bizhealth/internal/ingestion"
)

// ReportCache is a thread-safe LRU cache for loaded reports. Reports are
// immutable once archived, so entries never go stale.
type ReportCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*ingestion.Report
	order   []string // oldest first
}

// NewReportCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 20.
func NewReportCache(maxSize int) *ReportCache {
	if maxSize <= 0 {
		maxSize = 20
	}
	return &ReportCache{
		maxSize: maxSize,
		entries: make(map[string]*ingestion.Report),
	}
}

// Get retrieves a report from the cache, or nil if not found.
func (c *ReportCache) Get(id string) *ingestion.Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep, ok := c.entries[id]
	if !ok {
		return nil
	}

	// Move to end (most recently used)
	c.moveToEnd(id)
	return rep
}

// Put adds a report to the cache, evicting the oldest if full.
func (c *ReportCache) Put(id string, rep *ingestion.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		c.entries[id] = rep
		c.moveToEnd(id)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[id] = rep
	c.order = append(c.order, id)
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReportCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
