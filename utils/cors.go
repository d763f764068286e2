package utils

import (
	"net/netip"
	"net/url"
	"strings"
)

// IsAllowedOrigin reports whether a browser Origin belongs to the local
// network: localhost, .local names, single-label hosts, and loopback,
// private or link-local addresses. Public origins are refused.
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "localhost", strings.HasSuffix(host, ".local"):
		return true
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
	}
	// LAN hostnames carry no dots
	return !strings.Contains(host, ".")
}
