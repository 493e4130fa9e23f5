package submission

import (
	"sync"
	"time"

	"github.com/pechabench/platform/pkg/common/logger"
)

// ProgressCache is the fast in-memory store for submission progress. It
// exists purely to keep status polling off the database: it is never the
// only place a terminal result is recorded, so evicting an entry (or
// losing the process) only costs a fallback read of the durable record.
type ProgressCache struct {
	mu      sync.RWMutex
	entries map[string]*ProgressEntry
}

type CacheStats struct {
	Total    int            `json:"total_entries"`
	ByStatus map[string]int `json:"by_status"`
	Active   int            `json:"active_submissions"`
}

func NewProgressCache() *ProgressCache {
	return &ProgressCache{entries: make(map[string]*ProgressEntry)}
}

// Set creates or updates an entry atomically. Progress clamps to [0,100];
// errDetail only overwrites when non-empty.
func (c *ProgressCache) Set(id string, status Status, message string, progress int, step, errDetail string) {
	now := time.Now().UTC()

	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		entry = &ProgressEntry{SubmissionID: id, StartedAt: now}
		c.entries[id] = entry
	}
	entry.Status = status
	entry.Message = message
	entry.Progress = clampProgress(progress)
	entry.Step = step
	if errDetail != "" {
		entry.ErrorDetails = errDetail
	}
	entry.UpdatedAt = now
	c.mu.Unlock()

	logger.Log.WithFields(map[string]interface{}{
		"submission_id": id,
		"status":        status,
		"progress":      progress,
	}).Debug("Progress cache updated")
}

// Get returns a copy of the entry so readers never observe a torn record.
func (c *ProgressCache) Get(id string) (ProgressEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return ProgressEntry{}, false
	}
	return *entry, true
}

func (c *ProgressCache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	return true
}

// AllActive returns copies of every non-terminal entry.
func (c *ProgressCache) AllActive() map[string]ProgressEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	active := make(map[string]ProgressEntry)
	for id, entry := range c.entries {
		if !entry.Status.Terminal() {
			active[id] = *entry
		}
	}
	return active
}

// CleanupOld evicts terminal entries whose last update is older than
// maxAge, returning how many were removed.
func (c *ProgressCache) CleanupOld(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	c.mu.Lock()
	removed := 0
	for id, entry := range c.entries {
		if entry.Status.Terminal() && entry.UpdatedAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		logger.Log.WithField("removed", removed).Info("Progress cache cleanup")
	}
	return removed
}

func (c *ProgressCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		Total:    len(c.entries),
		ByStatus: make(map[string]int),
	}
	for _, entry := range c.entries {
		stats.ByStatus[string(entry.Status)]++
		if !entry.Status.Terminal() {
			stats.Active++
		}
	}
	return stats
}

// StartJanitor runs periodic eviction of aged terminal entries until the
// returned stop function is called.
func (c *ProgressCache) StartJanitor(interval, retention time.Duration) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanupOld(retention)
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
