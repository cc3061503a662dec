package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zoobzio/clockz"
	"golang.org/x/time/rate"

	apperrors "github.com/c50bossio/6fb-booking-sub001/pkg/errors"
	"github.com/c50bossio/6fb-booking-sub001/pkg/httputil"
)

// KeyFunc derives the rate limit bucket for a request.
type KeyFunc func(r *http.Request) string

// ByClientIP buckets requests by client address.
func ByClientIP(r *http.Request) string {
	return clientIP(r)
}

// ByURLParam buckets requests by a chi route parameter, such as the gateway
// of a webhook route. Requests without the parameter share one bucket.
func ByURLParam(name string) KeyFunc {
	return func(r *http.Request) string {
		return chi.URLParam(r, name)
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one token bucket per key. Idle buckets are swept on
// access once per ttl.
type limiterStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	clock     clockz.Clock
}

func newLimiterStore(rps float64, burst int, ttl time.Duration, clock clockz.Clock) *limiterStore {
	return &limiterStore{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(rps),
		burst:     burst,
		ttl:       ttl,
		lastSweep: clock.Now(),
		clock:     clock,
	}
}

func (s *limiterStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > s.ttl {
				delete(s.buckets, k)
			}
		}
		s.lastSweep = now
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RateLimitOption configures RateLimit.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	key   KeyFunc
	clock clockz.Clock
	ttl   time.Duration
}

// WithKey sets how requests are bucketed. Defaults to ByClientIP.
func WithKey(fn KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) { c.key = fn }
}

// WithRateLimitClock sets the clock used for token refill.
func WithRateLimitClock(clock clockz.Clock) RateLimitOption {
	return func(c *rateLimitConfig) { c.clock = clock }
}

// RateLimit enforces a token bucket of rps requests per second with the given
// burst per key and answers 429 when a bucket is empty.
func RateLimit(rps float64, burst int, l *slog.Logger, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := rateLimitConfig{key: ByClientIP, clock: clockz.RealClock, ttl: 3 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	store := newLimiterStore(rps, burst, cfg.ttl, cfg.clock)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.key(r)
			if !store.allow(key) {
				l.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("key", key),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many requests"), l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
