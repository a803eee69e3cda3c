package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"appraisal/internal/transport/http/api"
)

// peekLimit bounds how much of a JSON body is read to find a rate key.
const peekLimit = 64 << 10

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*limiter)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *limiter) {
		if fn != nil {
			l.key = fn
		}
	}
}

// RateLimit applies a fixed window counter to every request, keyed by the
// authenticated user or the client address.
func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(l)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// SensitiveMutationRateLimit throttles only the routes that move review
// state or authenticate. Login gets a quarter of baseLimit per address and per
// email; workflow mutations get half of it per actor.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	loginByIP := newLimiter(max(baseLimit/4, 1), window, clientIPKey)
	loginByEmail := newLimiter(max(baseLimit/4, 1), window, AuthEmailOrIPKey("email"))
	workflowByActor := newLimiter(max(baseLimit/2, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !loginByIP.allow(w, r) || !loginByEmail.allow(w, r) {
					return
				}
			case sensitiveScopeActor:
				if !workflowByActor.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey keys on a lower-cased JSON body field, falling back to
// the client address when the body has none.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		if value := peekJSONString(r, field); value != "" {
			return "email:" + strings.ToLower(value)
		}
		return clientIPKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return clientIPKey(r)
}

// clientIPKey prefers the address RequestID already resolved.
func clientIPKey(r *http.Request) string {
	if ip := GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

type counter struct {
	count int
	reset time.Time
}

type limiter struct {
	mu        sync.Mutex
	limit     int
	period    time.Duration
	key       RateLimitKeyFunc
	windows   map[string]*counter
	nextSweep time.Time
}

func newLimiter(limit int, period time.Duration, key RateLimitKeyFunc) *limiter {
	if key == nil {
		key = actorOrIPKey
	}
	return &limiter{
		limit:   limit,
		period:  period,
		key:     key,
		windows: map[string]*counter{},
	}
}

// hit counts one request for key and reports the window state after it.
// Expired windows are swept at most once per period so idle keys do not
// accumulate.
func (l *limiter) hit(key string, now time.Time) (count int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, w := range l.windows {
			if now.After(w.reset) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.period)
	}

	w, ok := l.windows[key]
	if !ok || now.After(w.reset) {
		w = &counter{reset: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++
	return w.count, w.reset
}

// allow writes the rate headers and, when over the limit, a 429 envelope.
func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := l.key(r)
	if key == "" {
		key = clientIPKey(r)
	}

	now := time.Now()
	count, reset := l.hit(key, now)
	resetIn := ceilSeconds(reset.Sub(now))

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(l.limit-count, 0)))
	h.Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if count <= l.limit {
		return true
	}

	h.Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded",
		"key", key,
		"path", r.URL.Path,
		"method", r.Method,
		"limit", l.limit,
		"windowSec", int(l.period.Seconds()),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// peekJSONString reads a top-level string field from a JSON body and puts
// the body back for the handler.
func peekJSONString(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(payload[field], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

// sensitiveRoute matches an API path, without the /api/v1 prefix, by its
// first segment and final segment.
type sensitiveRoute struct {
	prefix string
	suffix string
	scope  sensitiveScope
}

var sensitiveRoutes = []sensitiveRoute{
	{prefix: "/auth/login", scope: sensitiveScopeAuth},
	{prefix: "/imports/bonus", scope: sensitiveScopeActor},
	{prefix: "/tasks/", suffix: "/begin", scope: sensitiveScopeActor},
	{prefix: "/tasks/", suffix: "/start", scope: sensitiveScopeActor},
	{prefix: "/tasks/", suffix: "/confirm", scope: sensitiveScopeActor},
	{prefix: "/tasks/", suffix: "/revise", scope: sensitiveScopeActor},
	{prefix: "/documents/", suffix: "/stages/next", scope: sensitiveScopeActor},
}

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil {
		return sensitiveScopeNone
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1"), "/")
	for _, route := range sensitiveRoutes {
		if route.suffix == "" {
			if path == route.prefix {
				return route.scope
			}
			continue
		}
		if strings.HasPrefix(path, route.prefix) && strings.HasSuffix(path, route.suffix) {
			return route.scope
		}
	}
	return sensitiveScopeNone
}
