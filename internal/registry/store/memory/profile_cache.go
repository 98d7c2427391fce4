package memory

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	name    string
	expires time.Time
}

// ProfileCache is a process-local TTL map, used when no Redis is configured.
type ProfileCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *ProfileCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.name, true, nil
}

// Set stores name under key. A ttl of zero keeps it until the process exits.
func (c *ProfileCache) Set(_ context.Context, key, name string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.entries[key] = cacheEntry{name: name, expires: exp}
	return nil
}
