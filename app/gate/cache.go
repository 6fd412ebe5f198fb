package gate

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type cacheKey struct {
	channel string
	userID  int64
}

type cacheEntry struct {
	status  Status
	expires time.Time
}

// membershipCache is a bounded LRU of positive membership answers with per-entry expiry.
type membershipCache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

func newMembershipCache(size int, ttl time.Duration, now func() time.Time) *membershipCache {
	if size <= 0 {
		size = 4096
	}
	if now == nil {
		now = time.Now
	}
	return &membershipCache{lru: lru.New(size), ttl: ttl, now: now}
}

func (c *membershipCache) get(channel string, userID int64) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{channel: channel, userID: userID}
	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	e := v.(cacheEntry)
	if !c.now().Before(e.expires) {
		c.lru.Remove(key)
		return "", false
	}
	return e.status, true
}

func (c *membershipCache) put(channel string, userID int64, st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(cacheKey{channel: channel, userID: userID}, cacheEntry{status: st, expires: c.now().Add(c.ttl)})
}
