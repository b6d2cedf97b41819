package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/utils"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter in redis, per user when a
// session is present and per client IP otherwise.
type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration
}

// client is called per request since redis may connect after the router is built.
func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if username, ok := utils.GetUsernameFromContext(c.Request.Context()); ok && username != "" {
		return "RateLimit:user:" + username
	}
	return "RateLimit:ip:" + c.ClientIP()
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.client()
		if client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := rl.key(c)

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
				_ = c.Error(err)
			}
		}

		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
