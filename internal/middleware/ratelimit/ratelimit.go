// Package ratelimit counts requests per client IP in one-minute windows
// anchored at each client's first request.
package ratelimit

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	windowLength = time.Minute
	idleAfter    = 10 * time.Minute
)

// Limiter holds one window per client. It has no goroutine of its own;
// idle clients are dropped by CleanExpired, which a cache.Manager sweeps.
type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*clientWindow
	limit    int
	methods  []string
	rejected atomic.Int64
	now      func() time.Time
}

type clientWindow struct {
	start time.Time
	last  time.Time
	count int
}

// Config holds rate limiter configuration. An empty Methods limits every
// method.
type Config struct {
	RequestsPerMinute int
	Methods           []string
}

// DefaultConfig limits POST requests to 60 per minute.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Methods:           []string{http.MethodPost},
	}
}

func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	return &Limiter{
		clients: make(map[string]*clientWindow),
		limit:   config.RequestsPerMinute,
		methods: config.Methods,
		now:     time.Now,
	}
}

// Allow counts a request from clientIP and reports whether it fits in the
// client's current window.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[clientIP]
	if !ok || now.Sub(w.start) >= windowLength {
		l.clients[clientIP] = &clientWindow{start: now, last: now, count: 1}
		return true
	}

	w.count++
	w.last = now
	if w.count > l.limit {
		l.rejected.Add(1)
		return false
	}
	return true
}

// Applies reports whether requests with this method are counted.
func (l *Limiter) Applies(method string) bool {
	return len(l.methods) == 0 || slices.Contains(l.methods, method)
}

// CleanExpired drops clients idle for more than ten minutes.
func (l *Limiter) CleanExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleAfter)
	removed := 0
	for ip, w := range l.clients {
		if w.last.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Rejected is the number of requests refused since start.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

// Middleware rejects over-limit requests of the limited methods. onLimit
// writes the rejection; Retry-After is already set when it runs.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(windowLength / time.Second))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Applies(r.Method) || l.Allow(extractIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", retryAfter)
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
