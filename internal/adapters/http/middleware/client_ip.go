package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver derives the identity key of a request. Forwarding headers
// are honored only when the direct peer is a trusted proxy; otherwise any
// client could name its own identity.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

func NewClientIPResolver(trusted []netip.Prefix) *ClientIPResolver {
	return &ClientIPResolver{trusted: trusted}
}

// Resolve returns the peer address, or the nearest untrusted hop in
// X-Forwarded-For (then X-Real-IP) when the peer is a trusted proxy.
// A nil resolver trusts no proxy.
func (c *ClientIPResolver) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !c.isTrusted(peer) {
		return peer
	}

	if values := r.Header.Values("X-Forwarded-For"); len(values) > 0 {
		hops := strings.Split(strings.Join(values, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !c.isTrusted(hop) {
				return hop
			}
		}
	}

	if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" {
		return xRealIP
	}
	return peer
}

func (c *ClientIPResolver) isTrusted(ip string) bool {
	if c == nil || len(c.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
