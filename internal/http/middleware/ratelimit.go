package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	last  time.Time
	count int
}

// SimpleRateLimit blocks clients that send more than maxRequests per window. It is the
// in-process fallback when Redis is not configured.
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*clientInfo)

	return func(c *gin.Context) {
		ident := rateLimitIdent(c)
		now := time.Now()

		mu.Lock()
		ci, ok := clients[ident]
		if !ok || now.Sub(ci.last) > window {
			clients[ident] = &clientInfo{last: now, count: 1}
			mu.Unlock()
			RLRequests.WithLabelValues(c.FullPath()).Inc()
			c.Next()
			return
		}
		ci.count++
		count := ci.count
		mu.Unlock()

		if count > maxRequests {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "rate_limited"})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// RateLimit picks the Redis limiter when a client is configured.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient != nil {
		return RedisRateLimit(maxRequests, window)
	}
	return SimpleRateLimit(maxRequests, window)
}

// rateLimitIdent keys limits by caller account when JWT ran, else by client IP.
func rateLimitIdent(c *gin.Context) string {
	if a, ok := AccountFrom(c); ok {
		return "acct:" + a.String()
	}
	return "ip:" + c.ClientIP()
}
