package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per client per window. A nil client
// falls back to echo's in-memory store.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// DisplayRateLimit throttles display boards polling the queue state.
func (r *RateLimiter) DisplayRateLimit() echo.MiddlewareFunc {
	var store middleware.RateLimiterStore
	if r.redis != nil {
		store = newRedisStore(r.redis, "display", r.limit, r.window)
	} else {
		store = middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      float64(r.limit) / r.window.Seconds(),
			Burst:     r.limit,
			ExpiresIn: 3 * r.window,
		})
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error": "Unable to identify client.",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// redisStore is a fixed-window counter shared by every server instance.
type redisStore struct {
	redis  *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func newRedisStore(client *redis.Client, prefix string, limit int, window time.Duration) *redisStore {
	return &redisStore{redis: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (s *redisStore) key(identifier string) string {
	bucket := s.now().Truncate(s.window).Unix()
	return fmt.Sprintf("ratelimit:%s:%s:%d", s.prefix, identifier, bucket)
}

// Allow fails open when Redis is unavailable: display polling is not worth
// an outage.
func (s *redisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key := s.key(identifier)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("Rate limit store unavailable", "error", err)
		return true, nil
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.window)
	}
	return count <= int64(s.limit), nil
}
