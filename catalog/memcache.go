package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/nci/gomemcache/memcache"

	"github.com/nci/swathgrid/granule"
)

// Cached fronts a catalog with memcache for existence checks. Only
// positive answers are cached since entries are never removed.
type Cached struct {
	Catalog
	mc *memcache.Client
}

// NewCached wraps c with the memcache servers at addrs. Connections are
// lazy; an unreachable memcache falls through to c.
func NewCached(c Catalog, addrs ...string) *Cached {
	return &Cached{Catalog: c, mc: memcache.New(addrs...)}
}

func cacheKey(key granule.Key) string {
	buff := md5.Sum([]byte("swathgrid/" + key.String()))
	return hex.EncodeToString(buff[:])
}

func (c *Cached) Exists(ctx context.Context, key granule.Key) (bool, error) {
	hash := cacheKey(key)
	if _, err := c.mc.Get(hash); err == nil {
		return true, nil
	}
	ok, err := c.Catalog.Exists(ctx, key)
	if err == nil && ok {
		// memcache may not retain this anyway
		c.mc.Set(&memcache.Item{Key: hash, Value: []byte{1}})
	}
	return ok, err
}

func (c *Cached) Insert(ctx context.Context, e *Entry) error {
	if err := c.Catalog.Insert(ctx, e); err != nil {
		return err
	}
	c.mc.Set(&memcache.Item{Key: cacheKey(e.Key), Value: []byte{1}})
	return nil
}
