package iputil

import (
	"fmt"
	"net/netip"
	"strings"
)

// nonPublicPrefixes lists special-purpose ranges that never appear in a GeoIP database.
// nonPublicPrefixes 列出永远不会出现在 GeoIP 数据库中的特殊用途网段。
var nonPublicPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // CGNAT
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"), // TEST-NET-1
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"), // TEST-NET-2
	netip.MustParsePrefix("203.0.113.0/24"),  // TEST-NET-3
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("64:ff9b:1::/48"),
}

// ParseAddr parses an IPv4/IPv6 address string. IPv4-mapped IPv6 addresses are unmapped.
// ParseAddr 解析 IPv4/IPv6 地址字符串，IPv4 映射的 IPv6 地址会被还原为 IPv4。
func ParseAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, fmt.Errorf("empty IP address")
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// IsPublic reports whether addr is a globally routable unicast address.
// Private, loopback, link-local, multicast, unspecified and reserved ranges are not public.
// IsPublic 判断 addr 是否为全局可路由的单播地址。
// 私有、环回、链路本地、组播、未指定和保留地址均不是公网地址。
func IsPublic(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return false
	}
	if addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
		return false
	}
	for _, p := range nonPublicPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// ParsePrefix parses a CIDR string or a single IP.
// If single IP, returns the corresponding /32 or /128 prefix.
// ParsePrefix 解析 CIDR 字符串或单个 IP。如果是单个 IP，则返回相应的 /32 或 /128 前缀。
func ParsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Masked(), nil
	}
	addr, err := ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR or IP: %q", s)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// IsValidIP checks if the string is a valid IP address.
// IsValidIP 检查字符串是否为有效的 IP 地址。
func IsValidIP(s string) bool {
	_, err := ParseAddr(s)
	return err == nil
}

// IsValidCIDR checks if the string is a valid CIDR or single IP.
// IsValidCIDR 检查字符串是否为有效的 CIDR 或单个 IP。
func IsValidCIDR(s string) bool {
	_, err := ParsePrefix(s)
	return err == nil
}
