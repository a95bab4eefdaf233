package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedResult is a translation together with its encoded form
type cachedResult struct {
	res  *Result
	json []byte
}

type Cache struct {
	cache *lru.TwoQueueCache[string, cachedResult]
}

// init initializes the cache, a zero size leaves it disabled
func (c *Cache) init(size int) (err error) {
	if size <= 0 {
		return nil
	}
	c.cache, err = lru.New2Q[string, cachedResult](size)
	return
}

// Get returns the value from the cache
func (c Cache) Get(key string) (val cachedResult, fromCache bool) {
	if c.cache == nil {
		return cachedResult{}, false
	}
	return c.cache.Get(key)
}

// Set sets the value in the cache
func (c Cache) Set(key string, val cachedResult) {
	if c.cache != nil {
		c.cache.Add(key, val)
	}
}

// Purge removes every entry
func (c Cache) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Len returns the number of cached entries
func (c Cache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
