package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/metrics"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// limitRule binds an endpoint pattern to its limit. Rules are matched in
// order, first prefix match wins, so overlapping patterns stay deterministic.
type limitRule struct {
	pattern string
	limit   RateLimit
}

// RateLimiter implements sliding window rate limiting over Redis. The
// pre-auth surface is limited per IP; the authenticated surface per profile,
// which requires the auth middleware to have run first.
type RateLimiter struct {
	client *redis.Client
	public []limitRule
	authed []limitRule
	logger zerolog.Logger
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		public: []limitRule{
			{"POST /auth/register", RateLimit{10, time.Hour, ipKey}},
			{"POST /auth/login", RateLimit{20, 15 * time.Minute, ipKey}},
		},
		authed: []limitRule{
			{"POST /classroom/messages", RateLimit{30, time.Minute, userKey}},
			{"GET /classroom/messages", RateLimit{120, time.Minute, userKey}},
			{"POST /dm/", RateLimit{60, time.Minute, userKey}},
			{"GET /dm/", RateLimit{120, time.Minute, userKey}},
			// The trailing-slash rule must precede the bare one so group
			// message posts do not fall under the group-create limit.
			{"POST /groups/", RateLimit{30, time.Minute, userKey}},
			{"POST /groups", RateLimit{10, time.Hour, userKey}},
			{"POST /media", RateLimit{20, time.Hour, userKey}},
			{"GET /find", RateLimit{30, time.Minute, userKey}},
		},
	}
}

// ipKey returns a rate limit key based on client IP.
func ipKey(r *http.Request) string {
	return "ratelimit:ip:" + RealIP(r)
}

// userKey returns a rate limit key based on the authenticated profile,
// falling back to IP when no profile is in the context.
func userKey(r *http.Request) string {
	if p := GetProfileFromContext(r.Context()); p != nil {
		return "ratelimit:user:" + p.ID.String()
	}
	return "ratelimit:ip:" + RealIP(r)
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CheckAndIncrement checks the rate limit and increments the counter.
// Returns (allowed, remaining, resetAt).
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time) {
	now := time.Now()
	windowStart := now.Add(-window)

	// Fixed window key based on the current time bucket
	windowKey := fmt.Sprintf("%s:%d", key, now.Unix()/int64(window.Seconds()))

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, windowKey, window*2)
	_, _ = pipe.Exec(ctx)

	count := countCmd.Val()
	remaining := limit - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(window)
	allowed := count < int64(limit)

	return allowed, remaining, resetAt
}

// Middleware rate limits the pre-auth surface, keyed by client IP. Mounted
// globally.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.limit(rl.public, next)
}

// Authenticated rate limits the signed-in surface per profile. It must run
// after the auth middleware so the profile is in the request context;
// otherwise every limit degrades to a shared per-IP bucket.
func (rl *RateLimiter) Authenticated(next http.Handler) http.Handler {
	return rl.limit(rl.authed, next)
}

func (rl *RateLimiter) limit(rules []limitRule, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := findLimit(rules, r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := limit.KeyFunc(r)
		allowed, remaining, resetAt := rl.CheckAndIncrement(r.Context(), key, limit.Requests, limit.Window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
			metrics.RateLimitHits.WithLabelValues(r.URL.Path).Inc()

			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", RealIP(r)).
				Str("endpoint", r.URL.Path).
				Str("key", key).
				Msg("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit returns the first rule whose pattern prefixes the request.
func findLimit(rules []limitRule, r *http.Request) *RateLimit {
	key := r.Method + " " + r.URL.Path

	for i := range rules {
		if strings.HasPrefix(key, rules[i].pattern) {
			return &rules[i].limit
		}
	}
	return nil
}
