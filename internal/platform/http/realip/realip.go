// Package realip resolves the client address of a request behind trusted proxies.
package realip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies decides whether forwarding headers may be believed.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies builds a TrustedProxies from CIDR strings or bare IPs.
// Entries that parse as neither are skipped.
func NewTrustedProxies(entries []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			tp.prefixes = append(tp.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return tp
}

// IsTrusted reports whether addr falls inside a trusted range.
func (tp *TrustedProxies) IsTrusted(addr netip.Addr) bool {
	if tp == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientAddr returns the client address for r.
//
// The peer address is used unless it is a trusted proxy. For trusted peers the
// X-Forwarded-For chain is walked right to left and the first hop that is not
// itself trusted wins; X-Real-IP is consulted when no chain is present.
func (tp *TrustedProxies) ClientAddr(r *http.Request) netip.Addr {
	peer := parseRemoteAddr(r.RemoteAddr)
	if !peer.IsValid() || !tp.IsTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			hop = hop.Unmap()
			if !tp.IsTrusted(hop) {
				return hop
			}
			peer = hop
		}
		return peer
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap()
		}
	}
	return peer
}

// GetClientIPString returns the client address as a string, "unknown" if unresolvable.
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	addr := tp.ClientAddr(r)
	if !addr.IsValid() {
		return "unknown"
	}
	return addr.String()
}

// parseRemoteAddr accepts "ip:port", "[ip6]:port" or a bare IP.
func parseRemoteAddr(remote string) netip.Addr {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}
