package mcp

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/glide-the/RAGFlowMCP/internal/protocol"
)

// ipRateLimiter keeps one token bucket per client IP. A nil limiter, or one
// with a zero rate or burst, allows everything.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	trusted  []*net.IPNet
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(rps float64, burst int, trustedProxies []string) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		trusted:  parseTrustedProxies(trustedProxies),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	if l == nil || l.rps <= 0 || l.burst <= 0 {
		return true
	}

	clientIP := normalizeRateLimitIP(ip)
	if clientIP == "" || isLoopbackClientIP(clientIP) {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[clientIP]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[clientIP] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (l *ipRateLimiter) cleanup(maxAge time.Duration) {
	if l == nil || maxAge <= 0 {
		return
	}

	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, entry := range l.limiters {
		if entry == nil || now.Sub(entry.lastSeen) > maxAge {
			delete(l.limiters, ip)
		}
	}
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientIP(r)) {
			writeJSONRPCError(w, http.StatusTooManyRequests, protocol.JSONRPCRateLimited, "rate limited", protocol.ErrorCodeRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses the first X-Forwarded-For entry only when the direct peer is
// a trusted proxy.
func (l *ipRateLimiter) clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	peer := remoteHost(r.RemoteAddr)
	if l != nil && l.isTrusted(peer) {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	return peer
}

func (l *ipRateLimiter) isTrusted(ip string) bool {
	parsed := net.ParseIP(normalizeRateLimitIP(ip))
	if parsed == nil {
		return false
	}
	for _, network := range l.trusted {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseTrustedProxies(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if !strings.Contains(value, "/") {
			if ip := net.ParseIP(value); ip != nil {
				bits := 128
				if ip.To4() != nil {
					bits = 32
					ip = ip.To4()
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
			continue
		}
		if _, network, err := net.ParseCIDR(value); err == nil {
			out = append(out, network)
		}
	}
	return out
}

func remoteHost(remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}

func normalizeRateLimitIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	if strings.EqualFold(ip, "localhost") {
		return "localhost"
	}

	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	ip = strings.Trim(ip, "[]")
	if zoneIndex := strings.Index(ip, "%"); zoneIndex >= 0 {
		ip = ip[:zoneIndex]
	}

	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}

	return strings.ToLower(ip)
}

func isLoopbackClientIP(ip string) bool {
	if strings.EqualFold(strings.TrimSpace(ip), "localhost") {
		return true
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	return parsed != nil && parsed.IsLoopback()
}

type jsonRPCError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// writeJSONRPCError answers with a JSON-RPC error envelope and a null id.
func writeJSONRPCError(w http.ResponseWriter, status, code int, message, errorCode string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := struct {
		JSONRPC string       `json:"jsonrpc"`
		ID      any          `json:"id"`
		Error   jsonRPCError `json:"error"`
	}{
		JSONRPC: "2.0",
		Error:   jsonRPCError{Code: code, Message: message},
	}
	if errorCode != "" {
		body.Error.Data = map[string]any{"code": errorCode}
	}
	_ = json.NewEncoder(w).Encode(body)
}
