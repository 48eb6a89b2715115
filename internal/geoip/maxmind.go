package geoip

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindResolver resolves addresses against a MaxMind City database (.mmdb).
// MaxMindResolver 使用 MaxMind City 数据库 (.mmdb) 解析地址。
type MaxMindResolver struct {
	db     *geoip2.Reader
	path   string
	locale string
}

// OpenMaxMind opens the database at path. Country names use locale, falling back to English.
// OpenMaxMind 打开 path 处的数据库，国家名称使用 locale，缺失时回退到英文。
func OpenMaxMind(path, locale string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	if locale == "" {
		locale = "en"
	}
	return &MaxMindResolver{db: db, path: path, locale: locale}, nil
}

// Resolve implements Resolver.
func (m *MaxMindResolver) Resolve(ctx context.Context, addr netip.Addr) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	rec, err := m.db.City(net.IP(addr.AsSlice()))
	if err != nil {
		return Location{}, fmt.Errorf("lookup %s: %w", addr, err)
	}

	var loc Location
	// The reader returns an empty record for unknown networks.
	if rec.Location.Latitude != 0 || rec.Location.Longitude != 0 {
		lat, lon := rec.Location.Latitude, rec.Location.Longitude
		loc.Latitude, loc.Longitude = &lat, &lon
	}
	if name := countryName(rec.Country.Names, m.locale, rec.Country.IsoCode); name != "" {
		loc.Country = &name
	}
	if loc.IsZero() {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

func countryName(names map[string]string, locale, iso string) string {
	if n := names[locale]; n != "" {
		return n
	}
	if n := names["en"]; n != "" {
		return n
	}
	return iso
}

// Close closes the underlying database.
func (m *MaxMindResolver) Close() error {
	return m.db.Close()
}
