package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"coinflip_escrow/internal/logger"
)

var redisClient *redis.Client

// InitRedisRateLimiter initializes a shared Redis client used by the middleware.
// Provide addr (host:port), password and db index. If connection fails, redisClient remains nil
// and RateLimit falls back to the in-process limiter.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		return
	}
	redisClient = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process rate limiter", "addr", addr, "error", err)
		redisClient = nil
	}
}

// RedisPing reports Redis health for readiness checks; nil when Redis is not in use.
func RedisPing(ctx context.Context) error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Ping(ctx).Err()
}

// RedisRateLimit implements a simple fixed-window rate limiter using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<identifier>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			// fallback to allowing requests if Redis not configured
			c.Next()
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + rateLimitIdent(c)
		ctx := c.Request.Context()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			// on Redis error, fail-open (allow) but set header
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"code":        "rate_limited",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
