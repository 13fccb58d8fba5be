package memcache

import (
	"context"
	"time"

	"github.com/coocood/freecache"
)

// Cache is the in-process fallback used when no Redis is configured.
type Cache struct {
	c *freecache.Cache
}

func New(sizeMB int) *Cache {
	if sizeMB <= 0 {
		sizeMB = 16
	}
	return &Cache{c: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (m *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := m.c.Get([]byte(key))
	if err == freecache.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (m *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	secs := int(ttl.Seconds())
	if secs < 1 {
		secs = 1
	}
	return m.c.Set([]byte(key), value, secs)
}
