package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oguzk/shortkit/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrURLNotFound signals that the requested short URL does not exist.
	ErrURLNotFound = errors.New("short url not found")

	// ErrDuplicateCode signals that the code is already issued, now or ever.
	ErrDuplicateCode = errors.New("short code already issued")
)

// URLRepository defines the data access contract for short URL records.
type URLRepository interface {
	Create(ctx context.Context, url *model.ShortURL) error
	GetByCode(ctx context.Context, code string) (*model.ShortURL, error)
	Exists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]model.ShortURL, error)
	Update(ctx context.Context, url *model.ShortURL) error
	Deactivate(ctx context.Context, code string) error
	IncrementClicks(ctx context.Context, code string, delta int64) error
	ReconcileClickCounts(ctx context.Context) (int64, error)
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
	AllCodes(ctx context.Context) ([]string, error)
}

type urlRepository struct {
	db *gorm.DB
}

// NewURLRepository returns a GORM-backed URLRepository.
func NewURLRepository(db *gorm.DB) URLRepository {
	return &urlRepository{db: db}
}

func (r *urlRepository) Create(ctx context.Context, url *model.ShortURL) error {
	if err := r.db.WithContext(ctx).Create(url).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *urlRepository) GetByCode(ctx context.Context, code string) (*model.ShortURL, error) {
	var url model.ShortURL
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&url).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}
	return &url, nil
}

func (r *urlRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.ShortURL{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *urlRepository) List(ctx context.Context, limit, offset int) ([]model.ShortURL, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.ShortURL
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *urlRepository) Update(ctx context.Context, url *model.ShortURL) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShortURL{}).
		Where("code = ?", url.Code).
		Updates(map[string]interface{}{
			"target_url":  url.TargetURL,
			"title":       url.Title,
			"description": url.Description,
			"is_active":   url.IsActive,
			"expires_at":  url.ExpiresAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrURLNotFound
	}

	return r.db.WithContext(ctx).Where("code = ?", url.Code).First(url).Error
}

func (r *urlRepository) Deactivate(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShortURL{}).
		Where("code = ?", code).
		Update("is_active", false)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrURLNotFound
	}
	return nil
}

// IncrementClicks bumps the aggregate counter with a single atomic UPDATE so
// concurrent batches never lose updates to read-modify-write races.
func (r *urlRepository) IncrementClicks(ctx context.Context, code string, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&model.ShortURL{}).
		Where("code = ?", code).
		Update("click_count", gorm.Expr("click_count + ?", delta)).Error
}

// ReconcileClickCounts recomputes click_count from the click_events table for
// every drifted row and returns how many rows were corrected.
func (r *urlRepository) ReconcileClickCounts(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE short_urls
		SET click_count = sub.actual
		FROM (
			SELECT s.code, COALESCE(c.cnt, 0) AS actual
			FROM short_urls s
			LEFT JOIN (
				SELECT code, COUNT(*) AS cnt FROM click_events GROUP BY code
			) c ON c.code = s.code
		) sub
		WHERE short_urls.code = sub.code
		  AND short_urls.click_count <> sub.actual`)
	return result.RowsAffected, result.Error
}

// SweepExpired deactivates every active record whose expiry has passed and
// returns the affected codes so the caller can invalidate cache entries.
func (r *urlRepository) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	var swept []model.ShortURL
	result := r.db.WithContext(ctx).
		Model(&swept).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "code"}}}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Update("is_active", false)
	if result.Error != nil {
		return nil, result.Error
	}

	codes := make([]string, 0, len(swept))
	for _, u := range swept {
		codes = append(codes, u.Code)
	}
	return codes, nil
}

func (r *urlRepository) AllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.ShortURL{}).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
