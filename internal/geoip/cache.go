package geoip

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/netxfw/netxmap/internal/utils/iputil"
)

type cacheEntry struct {
	loc   Location
	found bool
}

// CachedResolver skips non routable addresses and remembers answers of the wrapped resolver.
// Both hits and ErrNotFound are cached; other errors are not.
// CachedResolver 跳过不可路由地址并缓存被包装解析器的结果。
// 命中和 ErrNotFound 都会缓存，其他错误不缓存。
type CachedResolver struct {
	next  Resolver
	cache *expirable.LRU[netip.Addr, cacheEntry]
}

// NewCachedResolver wraps next. A size of zero or less disables the cache but keeps the address filter.
// NewCachedResolver 包装 next。size 小于等于 0 时禁用缓存，但保留地址过滤。
func NewCachedResolver(next Resolver, size int, ttl time.Duration) *CachedResolver {
	c := &CachedResolver{next: next}
	if size > 0 {
		c.cache = expirable.NewLRU[netip.Addr, cacheEntry](size, nil, ttl)
	}
	return c
}

// Resolve implements Resolver.
func (c *CachedResolver) Resolve(ctx context.Context, addr netip.Addr) (Location, error) {
	addr = addr.Unmap()
	if !iputil.IsPublic(addr) {
		return Location{}, ErrNotFound
	}

	if c.cache != nil {
		if e, ok := c.cache.Get(addr); ok {
			if !e.found {
				return Location{}, ErrNotFound
			}
			return e.loc, nil
		}
	}

	loc, err := c.next.Resolve(ctx, addr)
	switch {
	case err == nil:
		c.add(addr, cacheEntry{loc: loc, found: true})
	case errors.Is(err, ErrNotFound):
		c.add(addr, cacheEntry{})
	}
	return loc, err
}

func (c *CachedResolver) add(addr netip.Addr, e cacheEntry) {
	if c.cache != nil {
		c.cache.Add(addr, e)
	}
}

// Len returns the number of cached addresses.
func (c *CachedResolver) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

// Purge drops every cached answer.
// Purge 清空所有缓存结果。
func (c *CachedResolver) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Close closes the wrapped resolver.
func (c *CachedResolver) Close() error {
	return Close(c.next)
}
