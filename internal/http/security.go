package http

import (
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync/atomic"
)

// securityMetrics counts requests the middleware refused or flagged.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// Loopback and RFC 1918 peers may set X-Forwarded-For and X-Real-IP.
var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

func fromTrustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	return slices.ContainsFunc(trustedProxies, func(p netip.Prefix) bool { return p.Contains(addr) })
}

// extractClientIP resolves the caller. Forwarding headers only count when the
// TCP peer is a trusted proxy, and only if they carry a parseable address.
func extractClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}

	addr, err := netip.ParseAddr(peer)
	if err != nil || !fromTrustedProxy(addr) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{strings.TrimSpace(first), strings.TrimSpace(r.Header.Get("X-Real-IP"))} {
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
	}
	return peer
}

const maxURLLength = 2048

type probeRule func(r *http.Request, target, agent string) bool

func containsAny(s string, needles ...string) bool {
	return slices.ContainsFunc(needles, func(n string) bool { return strings.Contains(s, n) })
}

var probeRules = []probeRule{
	// path traversal, dotfiles and well-known admin panels
	func(_ *http.Request, target, _ string) bool {
		return containsAny(target, "../", "..\\", ".env", ".git", ".ssh", "etc/passwd", "cmd.exe",
			"wp-admin", "phpmyadmin", "admin.php", "config.php")
	},
	// injection payloads
	func(_ *http.Request, target, _ string) bool {
		return containsAny(target, "eval(", "javascript:", "<script", "union select")
	},
	// scanner user agents
	func(_ *http.Request, _, agent string) bool {
		return containsAny(agent, "sqlmap", "nmap", "nikto", "gobuster", "dirb", "scanner")
	},
	func(r *http.Request, _, _ string) bool {
		switch r.Method {
		case "TRACE", "TRACK", "DEBUG", http.MethodConnect:
			return true
		}
		return false
	},
	func(r *http.Request, _, _ string) bool { return len(r.URL.String()) > maxURLLength },
}

// detectSuspiciousRequest reports whether r looks like a probe. It never
// blocks anything; the caller logs and the counter goes up.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	agent := strings.ToLower(r.UserAgent())

	for _, rule := range probeRules {
		if rule(r, target, agent) {
			if metrics != nil {
				atomic.AddInt64(&metrics.suspiciousRequests, 1)
			}
			return true
		}
	}
	return false
}
