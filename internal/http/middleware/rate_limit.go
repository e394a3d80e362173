package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oguzk/shortkit/internal/app/service"
)

// RateLimit guards a route group with the shared rate limiter under the given
// endpoint class. Client identity is the request IP. The redirect class is not
// enforced here; the resolution service owns it.
func RateLimit(limiter *service.RateLimiter, class service.EndpointClass) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := limiter.Admit(c.Context(), c.IP(), class)
		if !decision.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		return c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
