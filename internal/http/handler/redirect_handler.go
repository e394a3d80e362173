package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oguzk/shortkit/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handler.
type RedirectDeps struct {
	Logger *zap.Logger
	URLs   service.URLService
}

// RedirectHandler serves the redirect hot path.
type RedirectHandler struct {
	logger *zap.Logger
	urls   service.URLService
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger: logger,
		urls:   deps.URLs,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "shortkit",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code. Rate limiting and click recording happen inside
// the resolution service; the response is issued as soon as the target URL is
// known.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing short code",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	meta := service.ClientMeta{
		IP:        c.IP(),
		UserAgent: c.Get("User-Agent"),
		Referer:   c.Get("Referer"),
	}

	target, err := h.urls.ResolveAndRecordClick(ctx, code, c.IP(), meta)
	if err != nil {
		return h.resolveError(c, code, err)
	}

	return c.Redirect(target, fiber.StatusFound)
}

func (h *RedirectHandler) resolveError(c *fiber.Ctx, code string, err error) error {
	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((limited.RetryAfter+time.Second-1)/time.Second)))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "rate limit exceeded",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short url not found",
		})
	case errors.Is(err, service.ErrExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "short url expired",
		})
	case errors.Is(err, service.ErrInactive):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "short url is disabled",
		})
	default:
		h.logger.Error("failed to resolve short url", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}
