package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-formrelay/core"
)

func testSettings() core.RateLimitSettings {
	return core.RateLimitSettings{Requests: 3, WindowMinutes: 1}
}

func TestFixedWindowLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryWindowStore())
	now := time.Unix(1_700_000_000, 0).UTC()
	limiter.Now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, err := limiter.TryAcquire(context.Background(), "contact", testSettings())
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("acquire %d: expected allow within limit", i)
		}
	}

	allowed, err := limiter.TryAcquire(context.Background(), "contact", testSettings())
	if err != nil {
		t.Fatalf("acquire over limit: %v", err)
	}
	if allowed {
		t.Fatalf("expected deny once limit is reached")
	}
}

func TestFixedWindowLimiter_WindowResets(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryWindowStore())
	now := time.Unix(1_700_000_000, 0).UTC()
	limiter.Now = func() time.Time { return now }

	settings := core.RateLimitSettings{Requests: 1, WindowMinutes: 1}
	if allowed, _ := limiter.TryAcquire(context.Background(), "contact", settings); !allowed {
		t.Fatalf("first acquisition must be allowed")
	}
	if allowed, _ := limiter.TryAcquire(context.Background(), "contact", settings); allowed {
		t.Fatalf("second acquisition inside the window must be denied")
	}

	now = now.Add(61 * time.Second)
	if allowed, _ := limiter.TryAcquire(context.Background(), "contact", settings); !allowed {
		t.Fatalf("acquisition after the window elapsed must be allowed")
	}
}

func TestFixedWindowLimiter_FormsAreIsolated(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryWindowStore())
	settings := core.RateLimitSettings{Requests: 1, WindowMinutes: 5}

	if allowed, _ := limiter.TryAcquire(context.Background(), "contact", settings); !allowed {
		t.Fatalf("contact: expected allow")
	}
	if allowed, _ := limiter.TryAcquire(context.Background(), "newsletter", settings); !allowed {
		t.Fatalf("newsletter must have its own window")
	}
	if allowed, _ := limiter.TryAcquire(context.Background(), "CONTACT", settings); allowed {
		t.Fatalf("form ids must be case-insensitive")
	}
}

func TestFixedWindowLimiter_InvalidSettings(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryWindowStore())

	if _, err := limiter.TryAcquire(context.Background(), "contact", core.RateLimitSettings{Requests: 0, WindowMinutes: 1}); err == nil {
		t.Fatalf("expected error for zero requests")
	}
	if _, err := limiter.TryAcquire(context.Background(), "contact", core.RateLimitSettings{Requests: 1, WindowMinutes: 0}); err == nil {
		t.Fatalf("expected error for zero window")
	}
	if _, err := limiter.TryAcquire(context.Background(), "   ", testSettings()); err == nil {
		t.Fatalf("expected error for empty form id")
	}
}

func TestFixedWindowLimiter_NoStoreAllowsEverything(t *testing.T) {
	limiter := &FixedWindowLimiter{}
	allowed, err := limiter.TryAcquire(context.Background(), "contact", testSettings())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !allowed {
		t.Fatalf("limiter without a store must allow")
	}
}

func TestFixedWindowLimiter_RetryAfter(t *testing.T) {
	limiter := NewFixedWindowLimiter(NewMemoryWindowStore())
	now := time.Unix(1_700_000_000, 0).UTC()
	limiter.Now = func() time.Time { return now }

	settings := core.RateLimitSettings{Requests: 1, WindowMinutes: 1}
	if _, err := limiter.TryAcquire(context.Background(), "contact", settings); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	now = now.Add(20 * time.Second)
	retryAfter, err := limiter.RetryAfter(context.Background(), "contact", settings)
	if err != nil {
		t.Fatalf("retry after: %v", err)
	}
	if retryAfter != 40*time.Second {
		t.Fatalf("expected 40s, got %s", retryAfter)
	}

	retryAfter, err = limiter.RetryAfter(context.Background(), "unknown", settings)
	if err != nil {
		t.Fatalf("retry after unknown form: %v", err)
	}
	if retryAfter != 0 {
		t.Fatalf("expected zero for unknown form, got %s", retryAfter)
	}
}

func TestMemoryWindowStore_Reset(t *testing.T) {
	store := NewMemoryWindowStore()
	now := time.Unix(1_700_000_000, 0).UTC()

	if allowed, err := store.Acquire(context.Background(), "contact", 1, time.Minute, now); err != nil || !allowed {
		t.Fatalf("acquire: allowed=%v err=%v", allowed, err)
	}
	if err := store.Reset(context.Background(), "contact"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := store.Get(context.Background(), "contact"); err != ErrWindowNotFound {
		t.Fatalf("expected ErrWindowNotFound after reset, got %v", err)
	}
}

func TestLimitExceededError_ToServiceError(t *testing.T) {
	serviceErr := LimitExceededError{
		FormID:     "contact",
		Limit:      3,
		RetryAfter: 40 * time.Second,
	}.ToServiceError()

	if serviceErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", serviceErr.Code)
	}
	if serviceErr.TextCode != core.FormsErrorRateLimited {
		t.Fatalf("expected %s, got %s", core.FormsErrorRateLimited, serviceErr.TextCode)
	}
	if serviceErr.Metadata["retry_after_ms"] != int64(40000) {
		t.Fatalf("expected retry_after_ms metadata, got %v", serviceErr.Metadata["retry_after_ms"])
	}
}
