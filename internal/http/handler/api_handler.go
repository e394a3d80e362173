package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oguzk/shortkit/internal/app/model"
	"github.com/oguzk/shortkit/internal/app/service"
	"github.com/oguzk/shortkit/internal/http/middleware"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by the management API handlers.
type APIDeps struct {
	Logger  *zap.Logger
	URLs    service.URLService
	Limiter *service.RateLimiter
	BaseURL string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger  *zap.Logger
	urls    service.URLService
	limiter *service.RateLimiter
	baseURL string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:  logger,
		urls:    deps.URLs,
		limiter: deps.Limiter,
		baseURL: deps.BaseURL,
	}
}

// Register wires API routes onto the provided router, guarding each route
// group with its endpoint class budget.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		urls := api.Group("/urls")
		{
			urls.Post("/", middleware.RateLimit(h.limiter, service.ClassShorten), h.Shorten)
			urls.Get("/", middleware.RateLimit(h.limiter, service.ClassAdmin), h.List)
			urls.Get("/:code", middleware.RateLimit(h.limiter, service.ClassAdmin), h.Get)
			urls.Patch("/:code", middleware.RateLimit(h.limiter, service.ClassAdmin), h.Update)
			urls.Delete("/:code", middleware.RateLimit(h.limiter, service.ClassAdmin), h.Deactivate)
			urls.Get("/:code/stats", middleware.RateLimit(h.limiter, service.ClassAnalytics), h.Stats)
		}
	}
}

// ShortenRequest represents the request body for creating a short URL.
type ShortenRequest struct {
	TargetURL     string `json:"target_url"`
	CustomCode    string `json:"custom_code,omitempty"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
}

// ShortURLResponse represents a short URL record in API responses.
type ShortURLResponse struct {
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	TargetURL   string     `json:"target_url"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	ClickCount  int64      `json:"click_count"`
	IsActive    bool       `json:"is_active"`
	IsCustom    bool       `json:"is_custom"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UpdateRequest represents the request body for updating a short URL.
type UpdateRequest struct {
	TargetURL   *string    `json:"target_url,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Shorten handles POST /api/urls
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.TargetURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "target_url is required",
		})
	}

	record, err := h.urls.Shorten(h.ctx(c), service.ShortenInput{
		TargetURL:        req.TargetURL,
		CustomCode:       req.CustomCode,
		ExpiresInDays:    req.ExpiresInDays,
		Title:            req.Title,
		Description:      req.Description,
		CreatorIP:        c.IP(),
		CreatorUserAgent: c.Get("User-Agent"),
	})
	if err != nil {
		return h.shortenError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.toResponse(record))
}

// List handles GET /api/urls
func (h *APIHandler) List(c *fiber.Ctx) error {
	limit := 20
	offset := 0

	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}

	records, err := h.urls.List(h.ctx(c), limit, offset)
	if err != nil {
		h.logger.Error("failed to list short urls", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list short urls",
		})
	}

	response := make([]ShortURLResponse, len(records))
	for i, record := range records {
		response[i] = h.toResponse(&record)
	}

	return c.JSON(fiber.Map{
		"urls":   response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// Get handles GET /api/urls/:code
func (h *APIHandler) Get(c *fiber.Ctx) error {
	code := c.Params("code")

	record, err := h.urls.Get(h.ctx(c), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short url not found",
			})
		}
		h.logger.Error("failed to get short url", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(h.toResponse(record))
}

// Update handles PATCH /api/urls/:code
func (h *APIHandler) Update(c *fiber.Ctx) error {
	code := c.Params("code")

	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	record, err := h.urls.Update(h.ctx(c), code, service.UpdateURLInput{
		TargetURL:   req.TargetURL,
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short url not found",
			})
		case errors.Is(err, service.ErrInvalidURL):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			h.logger.Error("failed to update short url", zap.String("code", code), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
	}

	return c.JSON(h.toResponse(record))
}

// Deactivate handles DELETE /api/urls/:code. Records are logically deleted;
// the code stays reserved.
func (h *APIHandler) Deactivate(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.urls.Deactivate(h.ctx(c), code); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short url not found",
			})
		}
		h.logger.Error("failed to deactivate short url", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Stats handles GET /api/urls/:code/stats
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	code := c.Params("code")

	stats, err := h.urls.Stats(h.ctx(c), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short url not found",
			})
		}
		h.logger.Error("failed to load stats", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"url":            h.toResponse(stats.URL),
		"durable_clicks": stats.DurableClicks,
		"recent_clicks":  stats.RecentClicks,
	})
}

func (h *APIHandler) shortenError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrInvalidCode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrCodeConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "short code already in use",
		})
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		h.logger.Error("short code space exhausted", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to allocate short code",
		})
	default:
		h.logger.Error("failed to shorten url", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}

func (h *APIHandler) toResponse(record *model.ShortURL) ShortURLResponse {
	return ShortURLResponse{
		Code:        record.Code,
		ShortURL:    h.baseURL + "/" + record.Code,
		TargetURL:   record.TargetURL,
		Title:       record.Title,
		Description: record.Description,
		ClickCount:  record.ClickCount,
		IsActive:    record.IsActive,
		IsCustom:    record.IsCustom,
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CreatedAt,
	}
}

func (h *APIHandler) ctx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
