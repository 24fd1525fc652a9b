// Package cache provides the read-through cache used for session listings
// and runtime snapshots. Values are opaque byte slices; Remember handles the
// JSON encoding of typed results.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache stores encoded values under string keys.
type Cache interface {
	// Get returns the value stored under key. The boolean is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePrefix removes every key that starts with prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Memory is an in-process Cache bounded by entry count.
type Memory struct {
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	entries    map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory returns a Memory cache holding at most maxEntries values.
func NewMemory(maxEntries int, now func() time.Time) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneBytes(entry.value), true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	cloned := cloneBytes(value)
	expiry := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.cleanupLocked()
		if len(c.entries) >= c.maxEntries {
			c.evictOneLocked()
		}
	}
	c.entries[key] = memoryEntry{value: cloned, expiresAt: expiry}
	return nil
}

func (c *Memory) InvalidatePrefix(_ context.Context, prefix string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Memory) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked drops the entry closest to expiry.
func (c *Memory) evictOneLocked() {
	var (
		victim string
		oldest time.Time
		found  bool
	)
	for key, entry := range c.entries {
		if !found || entry.expiresAt.Before(oldest) {
			victim, oldest, found = key, entry.expiresAt, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

// Nop never stores anything. It backs the "none" cache mode.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Nop) InvalidatePrefix(context.Context, string) error { return nil }
