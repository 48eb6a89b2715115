// Package geoip maps IP addresses to approximate geographic locations.
// Package geoip 将 IP 地址映射为大致的地理位置。
package geoip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"
)

// ErrNotFound means the address has no known location (private, reserved or simply unmapped).
// ErrNotFound 表示该地址没有已知位置（私有、保留或未收录）。
var ErrNotFound = errors.New("geoip: location not found")

// Location is an approximate position. Nil fields are unknown.
// Location 是大致位置，nil 字段表示未知。
type Location struct {
	Latitude  *float64 `json:"latitude" yaml:"latitude"`
	Longitude *float64 `json:"longitude" yaml:"longitude"`
	Country   *string  `json:"country" yaml:"country"`
}

// IsZero reports whether no field of the location is known.
func (l Location) IsZero() bool {
	return l.Latitude == nil && l.Longitude == nil && l.Country == nil
}

// Resolver looks up the location of an address.
// Implementations return ErrNotFound for addresses they cannot map and must be safe for concurrent use.
// Resolver 查询地址的位置。无法映射时返回 ErrNotFound，实现必须并发安全。
type Resolver interface {
	Resolve(ctx context.Context, addr netip.Addr) (Location, error)
}

// NopResolver never finds anything; it is used when no location source is configured.
// NopResolver 不返回任何位置，在未配置位置数据源时使用。
type NopResolver struct{}

// Resolve implements Resolver.
func (NopResolver) Resolve(context.Context, netip.Addr) (Location, error) {
	return Location{}, ErrNotFound
}

// Options selects and tunes the resolver built by Open.
// Options 选择并调整 Open 构建的解析器。
type Options struct {
	DatabasePath string
	StaticPath   string
	Locale       string
	CacheSize    int
	CacheTTL     time.Duration
}

// Open builds the resolver described by opts: a MaxMind database when DatabasePath is set,
// otherwise a static table when StaticPath is set, otherwise NopResolver. The result is
// always wrapped in a CachedResolver.
// Open 根据 opts 构建解析器：优先 MaxMind 数据库，其次静态表，否则为 NopResolver。
// 结果总是包装在 CachedResolver 中。
func Open(opts Options) (*CachedResolver, error) {
	var base Resolver = NopResolver{}
	switch {
	case opts.DatabasePath != "":
		mm, err := OpenMaxMind(opts.DatabasePath, opts.Locale)
		if err != nil {
			return nil, err
		}
		base = mm
	case opts.StaticPath != "":
		st, err := LoadStatic(opts.StaticPath)
		if err != nil {
			return nil, err
		}
		base = st
	}
	return NewCachedResolver(base, opts.CacheSize, opts.CacheTTL), nil
}

// Describe returns a short human readable name of the resolver chain.
// Describe 返回解析器链的简短描述。
func Describe(r Resolver) string {
	switch v := r.(type) {
	case *CachedResolver:
		return fmt.Sprintf("cached(%s)", Describe(v.next))
	case *MaxMindResolver:
		return "maxmind:" + v.path
	case *StaticResolver:
		return fmt.Sprintf("static(%d entries)", v.Len())
	case NopResolver:
		return "none"
	default:
		return fmt.Sprintf("%T", r)
	}
}

// Close releases the resolver if it holds resources.
// Close 在解析器持有资源时释放它们。
func Close(r Resolver) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
