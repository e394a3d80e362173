package service

import (
	"context"
	"testing"
	"time"
)

func TestClickReconciler_Reconcile(t *testing.T) {
	calls := 0
	repo := &mockURLRepository{
		reconcileFn: func(ctx context.Context) (int64, error) {
			calls++
			return 3, nil
		},
	}

	reconciler := NewClickReconciler(nil, repo, time.Minute)
	reconciler.Reconcile(context.Background())

	if calls != 1 {
		t.Fatalf("expected one reconcile pass, got %d", calls)
	}
}

func TestClickReconciler_ReconcileError(t *testing.T) {
	repo := &mockURLRepository{
		reconcileFn: func(ctx context.Context) (int64, error) {
			return 0, errStoreDown
		},
	}

	// A failing pass must not panic; the next tick retries.
	reconciler := NewClickReconciler(nil, repo, time.Minute)
	reconciler.Reconcile(context.Background())
}
