package service

import (
	"sync"
	"time"

	"github.com/set-night/watchearn/internal/domain"
)

type TaskCache struct {
	mu       sync.RWMutex
	tasks    []domain.Task
	cachedAt time.Time
	ttl      time.Duration
}

func NewTaskCache(ttl time.Duration) *TaskCache {
	return &TaskCache{ttl: ttl}
}

// Get returns the cached tasks, or nil when the cache is empty or stale.
func (c *TaskCache) Get() []domain.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.tasks == nil || time.Since(c.cachedAt) > c.ttl {
		return nil
	}
	return c.tasks
}

func (c *TaskCache) Set(tasks []domain.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tasks == nil {
		tasks = []domain.Task{}
	}
	c.tasks = tasks
	c.cachedAt = time.Now()
}

func (c *TaskCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = nil
}
