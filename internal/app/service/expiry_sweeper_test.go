package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oguzk/shortkit/internal/app/model"
)

func TestExpirySweeper_SweepInvalidatesCache(t *testing.T) {
	repo := newMemURLRepo()
	store := newMemStore()
	cache := NewURLCache(store, repo, URLCacheConfig{}, nil)

	ctx := context.Background()
	expired := time.Now().UTC().Add(-time.Hour)
	record := &model.ShortURL{
		Code:      "old123",
		TargetURL: "https://example.com",
		IsActive:  true,
		ExpiresAt: &expired,
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	cache.Populate(ctx, record)

	sweeper := NewExpirySweeper(nil, repo, cache, time.Minute)
	sweeper.Sweep(ctx)

	swept, err := repo.GetByCode(ctx, "old123")
	if err != nil {
		t.Fatalf("GetByCode returned error: %v", err)
	}
	if swept.IsActive {
		t.Fatal("expired record must be deactivated")
	}
	if _, ok := store.get("url:old123"); ok {
		t.Fatal("swept code must be invalidated in the cache")
	}

	// After the sweep a resolve reports the record as inactive, not expired by
	// a stale cache entry.
	if _, err := cache.Resolve(ctx, "old123"); !errors.Is(err, ErrInactive) && !errors.Is(err, ErrExpired) {
		t.Fatalf("expected inactive or expired, got %v", err)
	}
}

func TestExpirySweeper_NothingToSweep(t *testing.T) {
	repo := newMemURLRepo()
	store := newMemStore()
	cache := NewURLCache(store, repo, URLCacheConfig{}, nil)

	sweeper := NewExpirySweeper(nil, repo, cache, time.Minute)
	sweeper.Sweep(context.Background())
}
