package middlewares

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// LimitStore decides whether one more hit for key fits the budget. When it
// does not, retryAfter tells the caller how long to wait.
type LimitStore interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type RateLimiter struct {
	store LimitStore
}

func NewRateLimiter(store LimitStore) *RateLimiter {
	return &RateLimiter{store: store}
}

// RateLimiterMiddleware enforces the limit for a derived key. Store errors
// fail open and are logged.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		key = c.FullPath() + "|" + key

		allowed, retryAfter, err := rl.store.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Default().WarnContext(c.Request.Context(), "rate limit store failed",
				"key", key,
				"err", err,
			)
			c.Next()
			return
		}

		if !allowed {
			secs := int(retryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}

			c.Header("Retry-After", strconv.Itoa(secs))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":      "rate_limited",
					"message":   "Too many requests. Please try again shortly.",
					"requestId": c.GetString(CtxRequestID),
				},
			})

			return
		}

		c.Next()
	}
}

// MemoryLimitStore keeps one token bucket per key in process memory.
type MemoryLimitStore struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	clients map[string]*bucket
	hits    int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimitStore allows limit hits per window, refilling evenly.
func NewMemoryLimitStore(limit int, window time.Duration) *MemoryLimitStore {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &MemoryLimitStore{
		limit:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		idleTTL: 2 * window,
		now:     time.Now,
		clients: make(map[string]*bucket),
	}
}

func (s *MemoryLimitStore) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits++
	if s.hits%1024 == 0 {
		s.prune(now)
	}

	b, ok := s.clients[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second, nil
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}

	return true, 0, nil
}

func (s *MemoryLimitStore) prune(now time.Time) {
	for k, b := range s.clients {
		if now.Sub(b.lastSeen) > s.idleTTL {
			delete(s.clients, k)
		}
	}
}

// RedisLimitStore is a fixed window counter shared by every API replica.
type RedisLimitStore struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
}

func NewRedisLimitStore(rdb redis.Cmdable, limit int, window time.Duration) *RedisLimitStore {
	return &RedisLimitStore{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
		prefix: "libraryhub:ratelimit:",
	}
}

func (s *RedisLimitStore) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := s.prefix + key

	n, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}

	if n == 1 {
		if err := s.rdb.Expire(ctx, k, s.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if n <= s.limit {
		return true, 0, nil
	}

	ttl, err := s.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// key lost its expiry; put it back so the window can close
		_ = s.rdb.Expire(ctx, k, s.window).Err()
		ttl = s.window
	}

	return false, ttl, nil
}

// KeyByIP is for unauthenticated endpoints.
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// KeyByUserOrIP prefers the authenticated user id.
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
