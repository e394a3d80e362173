package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oguzk/shortkit/internal/app/model"
)

// ClickEventRepository defines the data access contract for click events.
// Events are append-only; there is no update or delete path.
type ClickEventRepository interface {
	CreateBatch(ctx context.Context, events []model.ClickEvent) error
	CountByCode(ctx context.Context, code string) (int64, error)
	RecentByCode(ctx context.Context, code string, limit int) ([]model.ClickEvent, error)
}

type clickEventRepository struct {
	pool *pgxpool.Pool
}

// NewClickEventRepository returns a pgx-backed ClickEventRepository. The hot
// path is CreateBatch, which uses COPY so a full batch costs one round trip.
func NewClickEventRepository(pool *pgxpool.Pool) ClickEventRepository {
	return &clickEventRepository{pool: pool}
}

func (r *clickEventRepository) CreateBatch(ctx context.Context, events []model.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"click_events"},
		[]string{"id", "code", "timestamp", "masked_ip", "user_agent", "referer", "country"},
		pgx.CopyFromSlice(len(events), func(i int) ([]interface{}, error) {
			e := events[i]
			return []interface{}{e.ID, e.Code, e.Timestamp, e.MaskedIP, e.UserAgent, e.Referer, e.Country}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy click events: %w", err)
	}
	return nil
}

func (r *clickEventRepository) CountByCode(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM click_events WHERE code = $1", code).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count click events: %w", err)
	}
	return count, nil
}

func (r *clickEventRepository) RecentByCode(ctx context.Context, code string, limit int) ([]model.ClickEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, code, timestamp, masked_ip, user_agent, referer, country
		FROM click_events
		WHERE code = $1
		ORDER BY timestamp DESC
		LIMIT $2`, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query click events: %w", err)
	}
	defer rows.Close()

	var events []model.ClickEvent
	for rows.Next() {
		var e model.ClickEvent
		if err := rows.Scan(&e.ID, &e.Code, &e.Timestamp, &e.MaskedIP, &e.UserAgent, &e.Referer, &e.Country); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
