package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitMax    = 100
	rateLimitWindow = 15 * time.Minute
	rateLimitPrefix = "airbridge:ratelimit:"
)

// slidingWindowScript implements atomic sliding-window rate limiting over a
// Redis sorted set. Uses an INCR counter to generate unique member values.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local expire_seconds = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', key .. ':counter', expire_seconds)
		return {1, limit - current - 1, 0}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local reset_at = 0
		if oldest and #oldest >= 2 then
			reset_at = tonumber(oldest[2]) + window_ms
		end
		return {0, 0, reset_at}
	end
`)

// rateLimiter throttles HTTP requests per client IP using Redis.
type rateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger types.Logger

	// Test seam; production value is set by newRateLimiter.
	check func(ctx context.Context, key string) (*rateLimitResult, error)
}

func newRateLimiter(client *redis.Client, logger types.Logger) *rateLimiter {
	r := &rateLimiter{
		client: client,
		limit:  rateLimitMax,
		window: rateLimitWindow,
		logger: logger,
	}
	r.check = r.allow
	return r
}

type rateLimitResult struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

func (r *rateLimiter) allow(ctx context.Context, key string) (*rateLimitResult, error) {
	now := time.Now()
	windowStart := now.Add(-r.window)
	redisKey := rateLimitPrefix + key

	result, err := slidingWindowScript.Run(
		ctx, r.client, []string{redisKey},
		now.UnixMilli(), windowStart.UnixMilli(), r.limit, r.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(result))
	}

	resetAt := now.Add(r.window)
	if result[2] > 0 {
		resetAt = time.UnixMilli(result[2])
	}
	return &rateLimitResult{
		allowed:   result[0] == 1,
		remaining: int(result[1]),
		resetAt:   resetAt,
	}, nil
}

// middleware returns a Fiber handler enforcing the limit per client IP.
// Redis failures fail open so an outage never takes down the service.
func (r *rateLimiter) middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := r.check(c.Context(), c.IP())
		if err != nil {
			r.logger.Warn("Rate limit check failed, allowing request", "error", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(r.limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.resetAt.Unix(), 10))

		if !result.allowed {
			retryAfter := int(time.Until(result.resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		}
		return c.Next()
	}
}
