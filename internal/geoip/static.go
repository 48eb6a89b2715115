package geoip

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"

	"github.com/netxfw/netxmap/internal/utils/iputil"
	"gopkg.in/yaml.v3"
)

// StaticEntry maps a network (CIDR or single IP) to a location.
// StaticEntry 将网段（CIDR 或单个 IP）映射到位置。
type StaticEntry struct {
	Network  string `yaml:"network"`
	Location `yaml:",inline"`
}

type staticFile struct {
	Locations []StaticEntry `yaml:"locations"`
}

type staticNet struct {
	prefix netip.Prefix
	loc    Location
}

// StaticResolver answers from a fixed table using longest prefix match.
// StaticResolver 使用最长前缀匹配从固定表中查询。
type StaticResolver struct {
	nets []staticNet
}

// NewStaticResolver builds a resolver from entries.
// NewStaticResolver 根据条目构建解析器。
func NewStaticResolver(entries []StaticEntry) (*StaticResolver, error) {
	nets := make([]staticNet, 0, len(entries))
	for i, e := range entries {
		p, err := iputil.ParsePrefix(e.Network)
		if err != nil {
			return nil, fmt.Errorf("entry #%d: %w", i, err)
		}
		nets = append(nets, staticNet{prefix: p, loc: e.Location})
	}
	sort.SliceStable(nets, func(i, j int) bool {
		return nets[i].prefix.Bits() > nets[j].prefix.Bits()
	})
	return &StaticResolver{nets: nets}, nil
}

// LoadStatic reads a YAML table of the form:
//
//	locations:
//	  - network: 8.8.8.0/24
//	    latitude: 37.751
//	    longitude: -97.822
//	    country: United States
func LoadStatic(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read static locations: %w", err)
	}
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse static locations %s: %w", path, err)
	}
	r, err := NewStaticResolver(f.Locations)
	if err != nil {
		return nil, fmt.Errorf("static locations %s: %w", path, err)
	}
	return r, nil
}

// Resolve implements Resolver.
func (s *StaticResolver) Resolve(ctx context.Context, addr netip.Addr) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	addr = addr.Unmap()
	for _, n := range s.nets {
		if n.prefix.Contains(addr) {
			return n.loc, nil
		}
	}
	return Location{}, ErrNotFound
}

// Len returns the number of networks in the table.
func (s *StaticResolver) Len() int {
	return len(s.nets)
}
