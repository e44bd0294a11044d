package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-formrelay/core"
)

var ErrWindowNotFound = errors.New("ratelimit: window not found")

// Window is the mutable counter for one form inside one fixed window. The
// window starts at the first acquisition and resets once it elapses.
type Window struct {
	FormID    string
	Count     int
	StartedAt time.Time
	UpdatedAt time.Time
}

// WindowStore persists window counters. Acquire must atomically increment
// and report whether the increment stayed within the limit; resetAt tells
// the store when the current window may be discarded.
type WindowStore interface {
	Get(ctx context.Context, formID string) (Window, error)
	Acquire(ctx context.Context, formID string, limit int, window time.Duration, now time.Time) (bool, error)
	Reset(ctx context.Context, formID string) error
}

type LimitExceededError struct {
	FormID     string
	Limit      int
	RetryAfter time.Duration
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf(
		"ratelimit: form %q exceeded %d requests, retry in %s",
		strings.TrimSpace(e.FormID),
		e.Limit,
		e.RetryAfter,
	)
}

func (e LimitExceededError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"form_id": strings.TrimSpace(e.FormID),
		"limit":   e.Limit,
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.FormsErrorRateLimited).
		WithMetadata(metadata)
}

// FixedWindowLimiter counts submissions per form inside a fixed window that
// opens on the first request. It only ever answers allow or deny; mapping a
// deny to an error stays with the caller.
type FixedWindowLimiter struct {
	Store WindowStore
	Now   func() time.Time
}

func NewFixedWindowLimiter(store WindowStore) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		Store: store,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// TryAcquire consumes one slot for the form. A limiter without a store
// allows everything, matching forms that carry no rate limit at all.
func (l *FixedWindowLimiter) TryAcquire(ctx context.Context, formID string, settings core.RateLimitSettings) (bool, error) {
	if l == nil || l.Store == nil {
		return true, nil
	}
	if err := settings.Validate(); err != nil {
		return false, err
	}
	trimmed := strings.TrimSpace(formID)
	if trimmed == "" {
		return false, fmt.Errorf("ratelimit: form id is required")
	}
	return l.Store.Acquire(ctx, normalizeFormID(trimmed), settings.Requests, settings.Window(), l.now())
}

// RetryAfter reports how long until the current window resets; zero when no
// window is open.
func (l *FixedWindowLimiter) RetryAfter(ctx context.Context, formID string, settings core.RateLimitSettings) (time.Duration, error) {
	if l == nil || l.Store == nil {
		return 0, nil
	}
	window, err := l.Store.Get(ctx, normalizeFormID(formID))
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return 0, nil
		}
		return 0, err
	}
	resetAt := window.StartedAt.Add(settings.Window())
	now := l.now()
	if resetAt.After(now) {
		return resetAt.Sub(now), nil
	}
	return 0, nil
}

func (l *FixedWindowLimiter) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeFormID(formID string) string {
	return strings.ToLower(strings.TrimSpace(formID))
}

// MemoryWindowStore keeps counters in process memory. Counters for elapsed
// windows are replaced lazily on the next acquisition.
type MemoryWindowStore struct {
	mu    sync.Mutex
	items map[string]Window
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{items: map[string]Window{}}
}

func (s *MemoryWindowStore) Get(_ context.Context, formID string) (Window, error) {
	if s == nil {
		return Window{}, fmt.Errorf("ratelimit: window store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	window, ok := s.items[normalizeFormID(formID)]
	if !ok {
		return Window{}, ErrWindowNotFound
	}
	return window, nil
}

func (s *MemoryWindowStore) Acquire(_ context.Context, formID string, limit int, window time.Duration, now time.Time) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("ratelimit: window store is nil")
	}
	if limit <= 0 {
		return false, fmt.Errorf("ratelimit: limit must be positive")
	}
	key := normalizeFormID(formID)

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[key]
	if !ok || now.Sub(current.StartedAt) >= window {
		s.items[key] = Window{FormID: key, Count: 1, StartedAt: now, UpdatedAt: now}
		return true, nil
	}
	if current.Count >= limit {
		return false, nil
	}
	current.Count++
	current.UpdatedAt = now
	s.items[key] = current
	return true, nil
}

func (s *MemoryWindowStore) Reset(_ context.Context, formID string) error {
	if s == nil {
		return fmt.Errorf("ratelimit: window store is nil")
	}
	s.mu.Lock()
	delete(s.items, normalizeFormID(formID))
	s.mu.Unlock()
	return nil
}

var (
	_ core.RateLimiter = (*FixedWindowLimiter)(nil)
	_ WindowStore      = (*MemoryWindowStore)(nil)
)
