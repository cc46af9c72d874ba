package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttleConfig tunes the per-client throttle. Zero values fall back to
// the defaults in newThrottle.
type throttleConfig struct {
	refill     rate.Limit    // tokens added per second
	burst      int           // bucket capacity, also the initial allowance
	stale      time.Duration // idle time after which a bucket is dropped
	sweepEvery time.Duration // minimum interval between sweeps
}

// throttle tracks one token bucket per client key. Stale buckets are
// swept opportunistically while the lock is already held, so no
// background goroutine is needed.
type throttle struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	cfg       throttleConfig
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newThrottle(cfg throttleConfig) *throttle {
	if cfg.refill <= 0 {
		cfg.refill = 1
	}
	if cfg.burst <= 0 {
		cfg.burst = 60
	}
	if cfg.stale <= 0 {
		cfg.stale = 10 * time.Minute
	}
	if cfg.sweepEvery <= 0 {
		cfg.sweepEvery = 5 * time.Minute
	}
	return &throttle{
		buckets:   make(map[string]*bucket),
		cfg:       cfg,
		lastSweep: time.Now(),
	}
}

// allow takes one token from the key's bucket, creating the bucket on
// first sight. A fresh bucket starts full, so the first request always
// passes.
func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.lastSweep) > t.cfg.sweepEvery {
		t.sweep(now)
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.cfg.refill, t.cfg.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// sweep drops buckets idle past the stale threshold. Callers must hold mu.
func (t *throttle) sweep(now time.Time) {
	for key, b := range t.buckets {
		if now.Sub(b.lastSeen) > t.cfg.stale {
			delete(t.buckets, key)
		}
	}
	t.lastSweep = now
}

// throttleMiddleware rejects requests from clients that have drained
// their bucket with 429 and a Retry-After hint derived from the refill
// rate.
func throttleMiddleware(t *throttle, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := "1"
	if t.cfg.refill < 1 {
		retryAfter = strconv.Itoa(int(1 / t.cfg.refill))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !t.allow(ip) {
				logger.Warn("throttling client",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP to key the throttle on.
//
// With trustProxy set, X-Real-IP wins over the first X-Forwarded-For hop;
// both are validated with net.ParseIP so arbitrary header values cannot
// become throttle keys. Without it, only RemoteAddr is used.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
