package responder

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResponseCache maps message fingerprints to generated replies with LRU
// eviction at a fixed capacity. A non-positive ttl disables expiry.
type ResponseCache struct {
	lru *expirable.LRU[string, string]
}

func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	if ttl < 0 {
		ttl = 0
	}
	return &ResponseCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *ResponseCache) Get(key string) (string, bool) { return c.lru.Get(key) }

func (c *ResponseCache) Add(key, reply string) { c.lru.Add(key, reply) }

func (c *ResponseCache) Len() int { return c.lru.Len() }

func (c *ResponseCache) Purge() { c.lru.Purge() }
