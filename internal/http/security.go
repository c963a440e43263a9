package http

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Route groups used to bucket request counters.
const (
	routeItems  = "items"
	routeLabels = "labels"
	routeView   = "view"
	routeHealth = "health"
	routeOther  = "other"
)

var routeGroups = []string{routeItems, routeLabels, routeView, routeHealth, routeOther}

// apiMetrics counts traffic per route group and response class, plus the
// limiter and detection events.
type apiMetrics struct {
	requests           atomic.Int64
	byRoute            map[string]*atomic.Int64
	clientErrors       atomic.Int64
	serverErrors       atomic.Int64
	rateLimitHits      atomic.Int64
	suspiciousRequests atomic.Int64
}

func newAPIMetrics() *apiMetrics {
	m := &apiMetrics{byRoute: make(map[string]*atomic.Int64, len(routeGroups))}
	for _, g := range routeGroups {
		m.byRoute[g] = new(atomic.Int64)
	}
	return m
}

// record counts one finished request.
func (m *apiMetrics) record(path string, status int) {
	m.requests.Add(1)
	m.byRoute[routeGroup(path)].Add(1)
	switch {
	case status >= 500:
		m.serverErrors.Add(1)
	case status >= 400:
		m.clientErrors.Add(1)
	}
}

func routeGroup(path string) string {
	switch {
	case path == "/api/items" || strings.HasPrefix(path, "/api/items/"):
		return routeItems
	case path == "/api/labels" || strings.HasPrefix(path, "/api/labels/"):
		return routeLabels
	case path == "/api/view" || strings.HasPrefix(path, "/api/view/"):
		return routeView
	case path == "/healthz" || path == "/readyz" || path == "/metrics":
		return routeHealth
	}
	return routeOther
}

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

func isTrustedProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// extractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !isTrustedProxy(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return host
}

// Scanner targets and injection markers never valid anywhere on this API.
var suspiciousPatterns = []string{
	"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
	".php", "etc/passwd", "cmd.exe",
	"<script", "javascript:", "union select", "' or '1'='1", "sleep(",
}

var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab", "scanner",
}

// detectSuspiciousRequest returns a short reason when r looks like a scan or
// an injection attempt against the JSON API, or "" otherwise. Detection only
// feeds logs and metrics; the request is still served.
func detectSuspiciousRequest(r *http.Request, metrics *apiMetrics) string {
	reason := suspicionReason(r)
	if reason != "" && metrics != nil {
		metrics.suspiciousRequests.Add(1)
	}
	return reason
}

func suspicionReason(r *http.Request) string {
	if len(r.URL.String()) > 2048 {
		return "oversized url"
	}
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT", "PROPFIND":
		return "unusual method"
	}

	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	if unescaped, err := url.QueryUnescape(target); err == nil {
		target = unescaped
	}
	for _, p := range suspiciousPatterns {
		if strings.Contains(target, p) {
			return "suspicious pattern " + p
		}
	}

	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return "scanner user agent"
		}
	}

	// Bodies are JSON only; form and multipart posts come from scripts
	// aimed at some other application.
	if isMutating(r.Method) && strings.HasPrefix(r.URL.Path, "/api/") {
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			return "non-json body"
		}
	}

	// Session ids are issued as UUIDs; anything else was made up.
	if id := r.Header.Get(sessionHeader); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return "forged session id"
		}
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "long forwarding chain"
	}
	return ""
}
