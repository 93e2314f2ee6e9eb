package utils

import (
	"sync"
	"time"
)

// Cooldown rate-limits an action per key.
type Cooldown struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewCooldown(window time.Duration, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{last: make(map[string]time.Time), window: window, now: now}
}

// Allow reports whether key is outside its window and, if so, starts a new one.
func (c *Cooldown) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if t, ok := c.last[key]; ok && now.Sub(t) < c.window {
		return false
	}
	c.last[key] = now
	// 顺手清理过期的条目
	for k, t := range c.last {
		if now.Sub(t) >= c.window {
			delete(c.last, k)
		}
	}
	return true
}

// Forget drops key's window, for an action that was allowed but then failed.
func (c *Cooldown) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, key)
}

// Remaining is how long key must still wait.
func (c *Cooldown) Remaining(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.last[key]
	if !ok {
		return 0
	}
	return max(c.window-c.now().Sub(t), 0)
}
