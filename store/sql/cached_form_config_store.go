package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-formrelay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const formConfigCacheKeyPrefix = "go-formrelay::form_config::v1"

// CachedFormConfigStore keeps resolved configurations in a cache so the
// store resolver does not hit the database on every submission. Writes go
// through to the base store and invalidate the cached entry.
type CachedFormConfigStore struct {
	base  core.FormConfigStore
	cache repositorycache.CacheService
}

func NewCachedFormConfigStore(
	base core.FormConfigStore,
	cacheService repositorycache.CacheService,
) (*CachedFormConfigStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base form config store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: form config cache service is required")
	}
	return &CachedFormConfigStore{base: base, cache: cacheService}, nil
}

// FormConfigCacheKey returns the deterministic cache key for a form:
// go-formrelay::form_config::v1::<form_id> with the form id URL-path
// escaped after normalization.
func FormConfigCacheKey(formID string) (string, error) {
	normalized := normalizeFormID(formID)
	if normalized == "" {
		return "", fmt.Errorf("sqlstore: form id is required for cache key")
	}
	return strings.Join([]string{formConfigCacheKeyPrefix, url.PathEscape(normalized)}, "::"), nil
}

func (s *CachedFormConfigStore) FindByFormID(ctx context.Context, formID string) (core.FormConfiguration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.FormConfiguration{}, fmt.Errorf("sqlstore: cached form config store is not configured")
	}
	cacheKey, err := FormConfigCacheKey(formID)
	if err != nil {
		return core.FormConfiguration{}, err
	}
	config, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.FormConfiguration, error) {
		return s.base.FindByFormID(ctx, normalizeFormID(formID))
	})
	if err != nil {
		return core.FormConfiguration{}, err
	}
	return config, nil
}

func (s *CachedFormConfigStore) Upsert(ctx context.Context, config core.FormConfiguration) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached form config store is not configured")
	}
	if err := s.base.Upsert(ctx, config); err != nil {
		return err
	}
	return s.invalidate(ctx, config.FormID)
}

func (s *CachedFormConfigStore) Delete(ctx context.Context, formID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached form config store is not configured")
	}
	if err := s.base.Delete(ctx, formID); err != nil {
		return err
	}
	return s.invalidate(ctx, formID)
}

func (s *CachedFormConfigStore) invalidate(ctx context.Context, formID string) error {
	cacheKey, err := FormConfigCacheKey(formID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.FormConfigStore = (*CachedFormConfigStore)(nil)
