package provider

import (
	"container/list"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/agentllm/agentllm/agent"
)

// ============================================================================
// WRAPPER CACHE
// ============================================================================

// DefaultCacheSize bounds the wrapper cache when no limit is configured.
const DefaultCacheSize = 1024

// cacheKey identifies one wrapper. Two requests share a wrapper only
// when every component matches; an unset temperature is a distinct
// component from an explicit zero.
func cacheKey(agentType, userID, sessionID string, params agent.Params) string {
	temperature := "default"
	if params.Temperature != nil {
		temperature = strconv.FormatFloat(*params.Temperature, 'g', -1, 64)
	}
	return strings.Join([]string{
		agentType,
		userID,
		sessionID,
		temperature,
		strconv.Itoa(params.MaxTokens),
	}, "|")
}

type cacheEntry struct {
	key     string
	wrapper *agent.Wrapper
}

// wrapperCache is an LRU over agent wrappers. A negative maxEntries
// disables eviction; zero applies the default bound.
type wrapperCache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
}

func newWrapperCache(maxEntries int) *wrapperCache {
	if maxEntries == 0 {
		maxEntries = DefaultCacheSize
	}
	if maxEntries < 0 {
		maxEntries = 0 // unbounded
	}
	return &wrapperCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// getOrCreate returns the cached wrapper for key, constructing and
// caching one via build on a miss. Construction failures are not cached.
func (c *wrapperCache) getOrCreate(key string, build func() (*agent.Wrapper, error)) (*agent.Wrapper, error) {
	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		wrapper := elem.Value.(*cacheEntry).wrapper
		c.mu.Unlock()
		return wrapper, nil
	}
	c.mu.Unlock()

	// Build outside the lock; wrapper construction may touch the
	// environment and the registry.
	wrapper, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have raced us; keep the first one in.
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).wrapper, nil
	}

	elem := c.order.PushFront(&cacheEntry{key: key, wrapper: wrapper})
	c.entries[key] = elem

	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
	return wrapper, nil
}

// len reports the number of cached wrappers.
func (c *wrapperCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// String describes the cache for logs.
func (c *wrapperCache) String() string {
	return fmt.Sprintf("wrapperCache(entries=%d, max=%d)", c.len(), c.maxEntries)
}
