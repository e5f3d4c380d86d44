package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"lucy-support-gateway/internal/config"
	"lucy-support-gateway/utils"
)

// RateLimiter throttles the public widget endpoints per client key. With
// Redis it uses a fixed window (INCR + first-hit EXPIRE, fail-open when
// Redis is down); without Redis it falls back to in-process token buckets,
// which is what the single-node deployment always had.
type RateLimiter struct {
	rdb *redis.Client
	cfg *config.Config

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewRateLimiter(rdb *redis.Client, cfg *config.Config) *RateLimiter {
	return &RateLimiter{
		rdb:     rdb,
		cfg:     cfg,
		buckets: make(map[string]*rate.Limiter),
	}
}

// ClientKey pulls the widget key off a request: header first, query second,
// falling back to the caller IP so keyless probes still get limited.
func ClientKey(c *gin.Context, demoKey string) (string, bool) {
	key := c.GetHeader("X-API-KEY")
	if key == "" {
		key = c.Query("key")
	}
	if key == demoKey {
		return key, true
	}
	if key == "" {
		key = c.ClientIP()
	}
	return key, false
}

// Limit is the gin middleware. The console's demo key bypasses limiting.
func (r *RateLimiter) Limit(demoKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, demo := ClientKey(c, demoKey)
		if demo {
			c.Next()
			return
		}

		if !r.allow(c.Request.Context(), key) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(r.cfg.RateLimitReqs))
			c.Header("X-RateLimit-Remaining", "0")
			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": r.cfg.RateLimitWindow,
					"limit":       r.cfg.RateLimitReqs,
				})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) allow(ctx context.Context, key string) bool {
	if r.rdb == nil {
		return r.bucket(key).Allow()
	}

	redisKey := "ratelimit:" + key
	count, err := r.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		// Fail open - don't block widget traffic if Redis is down.
		return true
	}
	if count == 1 {
		r.rdb.Expire(ctx, redisKey, time.Duration(r.cfg.RateLimitWindow)*time.Second)
	}
	return count <= int64(r.cfg.RateLimitReqs)
}

func (r *RateLimiter) bucket(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.buckets[key]; ok {
		return l
	}
	window := time.Duration(r.cfg.RateLimitWindow) * time.Second
	l := rate.NewLimiter(rate.Every(window/time.Duration(r.cfg.RateLimitReqs)), r.cfg.RateLimitReqs)
	r.buckets[key] = l
	return l
}
