package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oguzk/shortkit/internal/app/model"
	"github.com/oguzk/shortkit/internal/app/repository"
	"go.uber.org/zap"
)

// URLService orchestrates code generation, persistence, caching, rate limiting
// and click recording for the two user-facing operations plus management.
type URLService interface {
	Shorten(ctx context.Context, input ShortenInput) (*model.ShortURL, error)
	Get(ctx context.Context, code string) (*model.ShortURL, error)
	List(ctx context.Context, limit, offset int) ([]model.ShortURL, error)
	Update(ctx context.Context, code string, input UpdateURLInput) (*model.ShortURL, error)
	Deactivate(ctx context.Context, code string) error
	ResolveAndRecordClick(ctx context.Context, code, client string, meta ClientMeta) (string, error)
	Stats(ctx context.Context, code string) (*URLStats, error)
}

// ShortenInput captures data required to create a short URL.
type ShortenInput struct {
	TargetURL        string
	CustomCode       string
	ExpiresInDays    *int
	Title            string
	Description      string
	CreatorIP        string
	CreatorUserAgent string
}

// UpdateURLInput captures fields that can be changed on an existing record.
// The code itself is immutable.
type UpdateURLInput struct {
	TargetURL   *string
	Title       *string
	Description *string
	IsActive    *bool
	ExpiresAt   *time.Time
}

// URLStats bundles the record with durable analytics.
type URLStats struct {
	URL           *model.ShortURL
	DurableClicks int64
	RecentClicks  []model.ClickEvent
}

// URLServiceConfig tunes validation and generation behaviour.
type URLServiceConfig struct {
	MaxURLLength      int
	DefaultExpiryDays int
	MaxAttempts       int
}

type urlService struct {
	urls     repository.URLRepository
	clicks   repository.ClickEventRepository
	gen      *CodeGenerator
	cache    *URLCache
	limiter  *RateLimiter
	recorder *ClickRecorder
	logger   *zap.Logger

	maxURLLength      int
	defaultExpiryDays int
	maxAttempts       int
}

// NewURLService returns the resolution service wired to its collaborators.
func NewURLService(
	urls repository.URLRepository,
	clicks repository.ClickEventRepository,
	gen *CodeGenerator,
	cache *URLCache,
	limiter *RateLimiter,
	recorder *ClickRecorder,
	cfg URLServiceConfig,
	logger *zap.Logger,
) URLService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = 2048
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	return &urlService{
		urls:              urls,
		clicks:            clicks,
		gen:               gen,
		cache:             cache,
		limiter:           limiter,
		recorder:          recorder,
		logger:            logger,
		maxURLLength:      cfg.MaxURLLength,
		defaultExpiryDays: cfg.DefaultExpiryDays,
		maxAttempts:       cfg.MaxAttempts,
	}
}

func (s *urlService) Shorten(ctx context.Context, input ShortenInput) (*model.ShortURL, error) {
	target, err := s.validateTargetURL(input.TargetURL)
	if err != nil {
		return nil, err
	}

	record := &model.ShortURL{
		TargetURL:        target,
		Title:            input.Title,
		Description:      input.Description,
		IsActive:         true,
		CreatorIP:        MaskIP(input.CreatorIP),
		CreatorUserAgent: input.CreatorUserAgent,
		ExpiresAt:        s.expiryFor(input.ExpiresInDays),
	}

	if input.CustomCode != "" {
		if err := s.gen.ValidateCustom(input.CustomCode); err != nil {
			return nil, err
		}
		record.Code = input.CustomCode
		record.IsCustom = true

		// Uniqueness is enforced at insertion; concurrent requests for the
		// same custom code get exactly one winner.
		if err := s.urls.Create(ctx, record); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				return nil, ErrCodeConflict
			}
			return nil, fmt.Errorf("create short url: %w", err)
		}
	} else {
		if err := s.allocateRandom(ctx, record); err != nil {
			return nil, err
		}
	}

	s.gen.MarkIssued(record.Code)
	s.cache.Populate(ctx, record)
	return record, nil
}

// allocateRandom draws fresh codes until an insert succeeds or the attempt
// budget runs out. Exhaustion signals the configured code length must grow.
func (s *urlService) allocateRandom(ctx context.Context, record *model.ShortURL) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.gen.Generate()
		if err != nil {
			return fmt.Errorf("draw short code: %w", err)
		}

		if s.gen.MaybeIssued(code) {
			exists, err := s.urls.Exists(ctx, code)
			if err != nil {
				return fmt.Errorf("check short code: %w", err)
			}
			if exists {
				continue
			}
		}

		record.Code = code
		err = s.urls.Create(ctx, record)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrDuplicateCode) {
			continue
		}
		return fmt.Errorf("create short url: %w", err)
	}

	s.logger.Error("short code space exhausted, increase code length",
		zap.Int("attempts", s.maxAttempts))
	return ErrCodeSpaceExhausted
}

func (s *urlService) Get(ctx context.Context, code string) (*model.ShortURL, error) {
	record, err := s.urls.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get short url: %w", err)
	}
	return record, nil
}

func (s *urlService) List(ctx context.Context, limit, offset int) ([]model.ShortURL, error) {
	records, err := s.urls.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list short urls: %w", err)
	}
	return records, nil
}

func (s *urlService) Update(ctx context.Context, code string, input UpdateURLInput) (*model.ShortURL, error) {
	record, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if input.TargetURL != nil {
		target, err := s.validateTargetURL(*input.TargetURL)
		if err != nil {
			return nil, err
		}
		record.TargetURL = target
	}
	if input.Title != nil {
		record.Title = *input.Title
	}
	if input.Description != nil {
		record.Description = *input.Description
	}
	if input.IsActive != nil {
		record.IsActive = *input.IsActive
	}
	if input.ExpiresAt != nil {
		record.ExpiresAt = input.ExpiresAt
	}

	if err := s.urls.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("update short url: %w", err)
	}

	// Invalidate before acknowledging so any resolve issued after this call
	// returns sees post-mutation state.
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.logger.Warn("failed to invalidate updated code", zap.String("code", code), zap.Error(err))
	}
	return record, nil
}

func (s *urlService) Deactivate(ctx context.Context, code string) error {
	if err := s.urls.Deactivate(ctx, code); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deactivate short url: %w", err)
	}

	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.logger.Warn("failed to invalidate deactivated code", zap.String("code", code), zap.Error(err))
	}
	return nil
}

// ResolveAndRecordClick is the redirect hot path: admit, resolve, hand the
// click to the recorder and return. Recording is fire-and-forget and never
// delays or fails the redirect.
func (s *urlService) ResolveAndRecordClick(ctx context.Context, code, client string, meta ClientMeta) (string, error) {
	decision := s.limiter.Admit(ctx, client, ClassRedirect)
	if !decision.Allowed {
		return "", &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	target, err := s.cache.Resolve(ctx, code)
	if err != nil {
		return "", err
	}

	s.recorder.Record(code, meta)
	return target, nil
}

func (s *urlService) Stats(ctx context.Context, code string) (*URLStats, error) {
	record, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	count, err := s.clicks.CountByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}

	recent, err := s.clicks.RecentByCode(ctx, code, 100)
	if err != nil {
		return nil, fmt.Errorf("load recent clicks: %w", err)
	}

	return &URLStats{URL: record, DurableClicks: count, RecentClicks: recent}, nil
}

func (s *urlService) validateTargetURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if len(raw) > s.maxURLLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidURL, s.maxURLLength)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: only http and https schemes are allowed", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return parsed.String(), nil
}

func (s *urlService) expiryFor(days *int) *time.Time {
	switch {
	case days != nil:
		expires := time.Now().UTC().AddDate(0, 0, *days)
		return &expires
	case s.defaultExpiryDays > 0:
		expires := time.Now().UTC().AddDate(0, 0, s.defaultExpiryDays)
		return &expires
	default:
		return nil
	}
}
