package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops buckets not used for this long.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		IdleTTL:           10 * time.Minute,
	}
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (b *tokenBucket) retryAfter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return 1
	}
	return int((1-b.tokens)/b.refillRate) + 1
}

func (b *tokenBucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastRefill)
}

type rateLimiterStore struct {
	buckets   map[string]*tokenBucket
	mu        sync.Mutex
	config    RateLimitConfig
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		buckets:   make(map[string]*tokenBucket),
		config:    cfg,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *rateLimiterStore) getBucket(key string) *tokenBucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	bucket, ok := s.buckets[key]
	if !ok {
		bucket = newTokenBucket(s.config.RequestsPerSecond, s.config.BurstSize, now)
		s.buckets[key] = bucket
	}
	return bucket
}

// sweepLocked removes idle buckets, at most once per IdleTTL.
func (s *rateLimiterStore) sweepLocked(now time.Time) {
	if s.config.IdleTTL <= 0 || now.Sub(s.lastSweep) < s.config.IdleTTL {
		return
	}
	for key, b := range s.buckets {
		if b.idleSince(now) > s.config.IdleTTL {
			delete(s.buckets, key)
		}
	}
	s.lastSweep = now
}

// RateLimit limits requests per caller: the authenticated user when known,
// the client IP otherwise.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				key = "user:" + uid
			}

			bucket := store.getBucket(key)
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if !bucket.allow(store.now()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(bucket.retryAfter()))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
