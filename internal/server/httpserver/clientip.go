package httpserver

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// ipMatcher matches addresses against a list of IPs and CIDRs.
type ipMatcher struct {
	networks  []*net.IPNet
	singleIPs []net.IP
}

// newIPMatcher parses entries. Invalid entries are logged under what and
// skipped.
func newIPMatcher(entries []string, what string, log *slog.Logger) *ipMatcher {
	m := &ipMatcher{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				log.Warn("invalid CIDR in "+what, "entry", entry, "error", err)
				continue
			}
			m.networks = append(m.networks, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			log.Warn("invalid IP in "+what, "entry", entry)
			continue
		}
		m.singleIPs = append(m.singleIPs, ip)
	}
	return m
}

func (m *ipMatcher) empty() bool {
	return m == nil || len(m.networks)+len(m.singleIPs) == 0
}

// contains reports whether addr is a listed IP or inside a listed CIDR.
func (m *ipMatcher) contains(addr string) bool {
	if m.empty() {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, allowed := range m.singleIPs {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, network := range m.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIPResolver determines the client address of a request.
//
// X-Forwarded-For and X-Real-IP are only honoured when the TCP peer is a
// trusted proxy. Otherwise the peer address is the client, whatever the
// headers say.
type ClientIPResolver struct {
	trusted *ipMatcher
}

// NewClientIPResolver creates a resolver trusting the given proxies (IPs or
// CIDRs). With no proxies, forwarding headers are ignored.
func NewClientIPResolver(trustedProxies []string, log *slog.Logger) *ClientIPResolver {
	if log == nil {
		log = slog.Default()
	}
	return &ClientIPResolver{trusted: newIPMatcher(trustedProxies, "trusted proxies", log)}
}

// ClientIP returns the client IP of r. A nil resolver trusts no proxy.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if c == nil || !c.trusted.contains(peer) {
		return peer
	}

	// Walk right to left: each hop was appended by the proxy before it, so
	// the first address that is not one of ours is the client.
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !c.trusted.contains(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// remoteHost returns the host part of r.RemoteAddr.
func remoteHost(r *http.Request) string {
	// net.SplitHostPort handles IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
