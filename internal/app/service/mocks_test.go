package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oguzk/shortkit/internal/app/model"
	"github.com/oguzk/shortkit/internal/app/repository"
)

type mockURLRepository struct {
	createFn     func(ctx context.Context, url *model.ShortURL) error
	getFn        func(ctx context.Context, code string) (*model.ShortURL, error)
	existsFn     func(ctx context.Context, code string) (bool, error)
	listFn       func(ctx context.Context, limit, offset int) ([]model.ShortURL, error)
	updateFn     func(ctx context.Context, url *model.ShortURL) error
	deactivateFn func(ctx context.Context, code string) error
	incrementFn  func(ctx context.Context, code string, delta int64) error
	reconcileFn  func(ctx context.Context) (int64, error)
	sweepFn      func(ctx context.Context, now time.Time) ([]string, error)
	allCodesFn   func(ctx context.Context) ([]string, error)
}

func (m *mockURLRepository) Create(ctx context.Context, url *model.ShortURL) error {
	if m.createFn != nil {
		return m.createFn(ctx, url)
	}
	return nil
}

func (m *mockURLRepository) GetByCode(ctx context.Context, code string) (*model.ShortURL, error) {
	if m.getFn != nil {
		return m.getFn(ctx, code)
	}
	return nil, repository.ErrURLNotFound
}

func (m *mockURLRepository) Exists(ctx context.Context, code string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, code)
	}
	return false, nil
}

func (m *mockURLRepository) List(ctx context.Context, limit, offset int) ([]model.ShortURL, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockURLRepository) Update(ctx context.Context, url *model.ShortURL) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, url)
	}
	return nil
}

func (m *mockURLRepository) Deactivate(ctx context.Context, code string) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, code)
	}
	return nil
}

func (m *mockURLRepository) IncrementClicks(ctx context.Context, code string, delta int64) error {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, code, delta)
	}
	return nil
}

func (m *mockURLRepository) ReconcileClickCounts(ctx context.Context) (int64, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx)
	}
	return 0, nil
}

func (m *mockURLRepository) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	if m.sweepFn != nil {
		return m.sweepFn(ctx, now)
	}
	return nil, nil
}

func (m *mockURLRepository) AllCodes(ctx context.Context) ([]string, error) {
	if m.allCodesFn != nil {
		return m.allCodesFn(ctx)
	}
	return nil, nil
}

type mockClickRepository struct {
	createBatchFn func(ctx context.Context, events []model.ClickEvent) error
	countFn       func(ctx context.Context, code string) (int64, error)
	recentFn      func(ctx context.Context, code string, limit int) ([]model.ClickEvent, error)
}

func (m *mockClickRepository) CreateBatch(ctx context.Context, events []model.ClickEvent) error {
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, events)
	}
	return nil
}

func (m *mockClickRepository) CountByCode(ctx context.Context, code string) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, code)
	}
	return 0, nil
}

func (m *mockClickRepository) RecentByCode(ctx context.Context, code string, limit int) ([]model.ClickEvent, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, code, limit)
	}
	return nil, nil
}

// memURLRepo is a stateful in-memory URLRepository for round-trip and
// concurrency tests. It enforces code uniqueness like the real store.
type memURLRepo struct {
	mu   sync.Mutex
	urls map[string]model.ShortURL
}

func newMemURLRepo() *memURLRepo {
	return &memURLRepo{urls: make(map[string]model.ShortURL)}
}

func (r *memURLRepo) Create(_ context.Context, url *model.ShortURL) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.urls[url.Code]; ok {
		return repository.ErrDuplicateCode
	}
	url.CreatedAt = time.Now().UTC()
	r.urls[url.Code] = *url
	return nil
}

func (r *memURLRepo) GetByCode(_ context.Context, code string) (*model.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.urls[code]
	if !ok {
		return nil, repository.ErrURLNotFound
	}
	return &url, nil
}

func (r *memURLRepo) Exists(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.urls[code]
	return ok, nil
}

func (r *memURLRepo) List(_ context.Context, limit, offset int) ([]model.ShortURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]model.ShortURL, 0, len(r.urls))
	for _, url := range r.urls {
		result = append(result, url)
	}
	return result, nil
}

func (r *memURLRepo) Update(_ context.Context, url *model.ShortURL) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.urls[url.Code]; !ok {
		return repository.ErrURLNotFound
	}
	r.urls[url.Code] = *url
	return nil
}

func (r *memURLRepo) Deactivate(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.urls[code]
	if !ok {
		return repository.ErrURLNotFound
	}
	url.IsActive = false
	r.urls[code] = url
	return nil
}

func (r *memURLRepo) IncrementClicks(_ context.Context, code string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.urls[code]
	if !ok {
		return repository.ErrURLNotFound
	}
	url.ClickCount += delta
	r.urls[code] = url
	return nil
}

func (r *memURLRepo) ReconcileClickCounts(context.Context) (int64, error) { return 0, nil }

func (r *memURLRepo) SweepExpired(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []string
	for code, url := range r.urls {
		if url.IsActive && url.Expired(now) {
			url.IsActive = false
			r.urls[code] = url
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (r *memURLRepo) AllCodes(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.urls))
	for code := range r.urls {
		codes = append(codes, code)
	}
	return codes, nil
}

func (r *memURLRepo) clickCount(code string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.urls[code].ClickCount
}

// memStore is an in-memory CacheStore. TTLs are ignored; failure flags let
// tests simulate an unreachable backend.
type memStore struct {
	mu      sync.Mutex
	entries map[string]string
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]string)}
}

var errStoreDown = errors.New("store down")

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", false, errStoreDown
	}
	value, ok := s.entries[key]
	return value, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	s.entries[key] = value
	return nil
}

func (s *memStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errStoreDown
	}
	delete(s.entries, key)
	return nil
}

func (s *memStore) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	return value, ok
}

func (s *memStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// memCounterStore is an in-memory CounterStore with fixed-window semantics.
type memCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counts: make(map[string]int64)}
}

func (s *memCounterStore) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, 0, s.err
	}
	s.counts[key]++
	return s.counts[key], window / 2, nil
}
