package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiter tracks request counts per key over fixed windows.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string]*rateLimitEntry
	cleanup  *time.Ticker
	done     chan bool
	log      *zap.Logger
}

type rateLimitEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimitConfig defines rate limit parameters.
type RateLimitConfig struct {
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Time window for rate limiting
}

// Per-route limits.
var (
	// WebSocket upgrade: 20 per minute per IP
	WebSocketUpgradeLimit = RateLimitConfig{MaxRequests: 20, Window: time.Minute}

	// Guest session minting: 10 per hour per IP
	GuestSessionLimit = RateLimitConfig{MaxRequests: 10, Window: time.Hour}

	// Leaderboard reads: 60 per minute per IP
	LeaderboardLimit = RateLimitConfig{MaxRequests: 60, Window: time.Minute}
)

// NewRateLimiter creates a rate limiter with automatic cleanup of expired
// windows.
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*rateLimitEntry),
		cleanup:  time.NewTicker(5 * time.Minute),
		done:     make(chan bool),
		log:      logger.Named("ratelimit"),
	}

	go func() {
		for {
			select {
			case <-rl.cleanup.C:
				rl.cleanupExpired()
			case <-rl.done:
				return
			}
		}
	}()

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.cleanup.Stop()
	close(rl.done)
}

func (rl *RateLimiter) cleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, entry := range rl.requests {
		if now.After(entry.windowEnd) {
			delete(rl.requests, key)
		}
	}
}

// Allow checks whether a request fits the limit.
// Returns (allowed, remaining, resetTime).
func (rl *RateLimiter) Allow(key string, config RateLimitConfig) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.requests[key]

	if !exists || now.After(entry.windowEnd) {
		rl.requests[key] = &rateLimitEntry{
			count:     1,
			windowEnd: now.Add(config.Window),
		}
		return true, config.MaxRequests - 1, now.Add(config.Window)
	}

	if entry.count >= config.MaxRequests {
		return false, 0, entry.windowEnd
	}

	entry.count++
	return true, config.MaxRequests - entry.count, entry.windowEnd
}

// GetClientIP extracts the real client IP from the request, honoring the
// proxy headers set by the hosting layer.
func GetClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		if ip, _, err := net.SplitHostPort(xff); err == nil {
			return ip
		}
		if net.ParseIP(xff) != nil {
			return xff
		}
		// May carry a chain; take the first hop.
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				firstIP := xff[:i]
				if net.ParseIP(firstIP) != nil {
					return firstIP
				}
				break
			}
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// RateLimitMiddleware applies a limit keyed by keyFunc.
func (rl *RateLimiter) RateLimitMiddleware(config RateLimitConfig, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			allowed, remaining, resetTime := rl.Allow(key, config)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", resetTime.Format(time.RFC3339))

			if !allowed {
				retryAfter := int(time.Until(resetTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				rl.log.Warn("rate limit exceeded",
					zap.String("key", key),
					zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "Rate limit exceeded",
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimitMiddleware applies a limit keyed by client IP.
func (rl *RateLimiter) IPRateLimitMiddleware(config RateLimitConfig) func(http.Handler) http.Handler {
	return rl.RateLimitMiddleware(config, GetClientIP)
}
