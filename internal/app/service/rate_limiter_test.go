package service

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	counter := newMemCounterStore()
	limiter := NewRateLimiter(counter, map[EndpointClass]ClassLimit{
		ClassRedirect: {Limit: 3, Window: time.Minute},
	}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision := limiter.Admit(ctx, "1.2.3.4", ClassRedirect)
		if !decision.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}

	decision := limiter.Admit(ctx, "1.2.3.4", ClassRedirect)
	if decision.Allowed {
		t.Fatal("request over the limit should be rejected")
	}
	if decision.RetryAfter <= 0 {
		t.Fatalf("rejection must carry a positive RetryAfter, got %s", decision.RetryAfter)
	}
}

func TestRateLimiter_RetryAfterFromWindow(t *testing.T) {
	counter := newMemCounterStore()
	limiter := NewRateLimiter(counter, map[EndpointClass]ClassLimit{
		ClassShorten: {Limit: 1, Window: time.Minute},
	}, nil)

	ctx := context.Background()
	limiter.Admit(ctx, "client", ClassShorten)

	decision := limiter.Admit(ctx, "client", ClassShorten)
	if decision.Allowed {
		t.Fatal("second request should be rejected")
	}
	// memCounterStore reports half the window as remaining.
	if decision.RetryAfter != 30*time.Second {
		t.Fatalf("expected RetryAfter from remaining window, got %s", decision.RetryAfter)
	}
}

func TestRateLimiter_ClientsIsolated(t *testing.T) {
	counter := newMemCounterStore()
	limiter := NewRateLimiter(counter, map[EndpointClass]ClassLimit{
		ClassRedirect: {Limit: 1, Window: time.Minute},
	}, nil)

	ctx := context.Background()
	limiter.Admit(ctx, "1.2.3.4", ClassRedirect)

	if decision := limiter.Admit(ctx, "5.6.7.8", ClassRedirect); !decision.Allowed {
		t.Fatal("a different client must have its own budget")
	}
}

func TestRateLimiter_ClassesIsolated(t *testing.T) {
	counter := newMemCounterStore()
	limiter := NewRateLimiter(counter, map[EndpointClass]ClassLimit{
		ClassRedirect: {Limit: 1, Window: time.Minute},
		ClassShorten:  {Limit: 1, Window: time.Minute},
	}, nil)

	ctx := context.Background()
	limiter.Admit(ctx, "client", ClassRedirect)

	if decision := limiter.Admit(ctx, "client", ClassShorten); !decision.Allowed {
		t.Fatal("a different endpoint class must have its own budget")
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	counter := newMemCounterStore()
	counter.err = errStoreDown
	limiter := NewRateLimiter(counter, map[EndpointClass]ClassLimit{
		ClassRedirect: {Limit: 1, Window: time.Minute},
	}, nil)

	for i := 0; i < 5; i++ {
		if decision := limiter.Admit(context.Background(), "client", ClassRedirect); !decision.Allowed {
			t.Fatal("requests must be admitted while the counter store is down")
		}
	}
}

func TestRateLimiter_UnknownClassAdmitted(t *testing.T) {
	limiter := NewRateLimiter(newMemCounterStore(), map[EndpointClass]ClassLimit{}, nil)

	if decision := limiter.Admit(context.Background(), "client", ClassAnalytics); !decision.Allowed {
		t.Fatal("classes without a configured budget must be admitted")
	}
}
