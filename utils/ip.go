package utils

import (
	"net"
	"net/netip"
	"strings"
)

// ParseAddr parses a bare IP literal as it appears in configuration. Ports,
// brackets and zones are rejected and IPv4-mapped IPv6 addresses are
// unmapped.
func ParseAddr(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// ParseRemoteAddr parses the caller address of a request. Unlike ParseAddr
// it accepts a "host:port" pair and reduces it to its host.
func ParseRemoteAddr(raw string) (netip.Addr, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		if ap.Addr().Zone() != "" {
			return netip.Addr{}, false
		}
		return ap.Addr().Unmap(), true
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return ParseAddr(strings.Trim(s, "[]"))
}

// ParsePrefix parses a CIDR block. The prefix is masked so that
// "10.0.0.7/24" describes the same network as "10.0.0.0/24".
func ParsePrefix(raw string) (netip.Prefix, bool) {
	p, err := netip.ParsePrefix(strings.TrimSpace(raw))
	if err != nil {
		return netip.Prefix{}, false
	}
	if p.Addr().Is4In6() {
		bits := p.Bits() - 96
		if bits < 0 {
			return netip.Prefix{}, false
		}
		p = netip.PrefixFrom(p.Addr().Unmap(), bits)
	}
	return p.Masked(), true
}

// AddrSet is an immutable set of IP literals.
type AddrSet struct {
	addrs map[netip.Addr]struct{}
}

// NewAddrSet parses literals and returns the set together with the entries
// that could not be parsed.
func NewAddrSet(literals []string) (AddrSet, []string) {
	set := AddrSet{addrs: make(map[netip.Addr]struct{}, len(literals))}
	var bad []string
	for _, l := range literals {
		a, ok := ParseAddr(l)
		if !ok {
			bad = append(bad, l)
			continue
		}
		set.addrs[a] = struct{}{}
	}
	return set, bad
}

func (s AddrSet) Contains(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	_, ok := s.addrs[a.Unmap()]
	return ok
}

func (s AddrSet) Len() int { return len(s.addrs) }
