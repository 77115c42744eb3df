package genai

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// responseCache memoizes successful generation responses. Access is
// mutex-guarded; entries expire after ttl and the least recently used entry
// is evicted when capacity is reached.
type responseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List
	nowFn    func() time.Time
}

type cacheEntry struct {
	key      string
	response string
	storedAt time.Time
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	if capacity < 1 {
		capacity = 1
	}
	return &responseCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// cacheKey hashes the request fields that determine the response identity.
func cacheKey(message, systemInstruction string, jsonMode bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%t", message, systemInstruction, jsonMode)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *responseCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}

	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && c.nowFn().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		return "", false
	}

	c.order.MoveToFront(elem)
	return entry.response, true
}

func (c *responseCache) put(key, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.response = response
		entry.storedAt = c.nowFn()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{
		key:      key,
		response: response,
		storedAt: c.nowFn(),
	})
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
