package core

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
)

// StaticResolver serves a snapshot of form configurations loaded at startup.
// The snapshot is never refreshed for the process lifetime.
type StaticResolver struct {
	mu      sync.RWMutex
	configs map[string]FormConfiguration
}

func NewStaticResolver(configs []FormConfiguration) (*StaticResolver, error) {
	resolver := &StaticResolver{configs: make(map[string]FormConfiguration, len(configs))}
	for _, config := range configs {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		formID := normalizeFormID(config.FormID)
		if _, exists := resolver.configs[formID]; exists {
			return nil, fmt.Errorf("core: duplicate form configuration: %s", formID)
		}
		resolver.configs[formID] = config
	}
	return resolver, nil
}

func (r *StaticResolver) Resolve(_ context.Context, formID string) (FormConfiguration, error) {
	if r == nil {
		return FormConfiguration{}, fmt.Errorf("core: static resolver is not configured")
	}
	r.mu.RLock()
	config, ok := r.configs[normalizeFormID(formID)]
	r.mu.RUnlock()
	if !ok {
		return FormConfiguration{}, fmt.Errorf("%w: %s", ErrFormNotFound, strings.TrimSpace(formID))
	}
	return config, nil
}

// StoreResolver reads the configuration store on every resolve, so
// management updates are visible without a restart.
type StoreResolver struct {
	store FormConfigStore
}

func NewStoreResolver(store FormConfigStore) (*StoreResolver, error) {
	if store == nil {
		return nil, fmt.Errorf("core: form config store is required")
	}
	return &StoreResolver{store: store}, nil
}

func (r *StoreResolver) Resolve(ctx context.Context, formID string) (FormConfiguration, error) {
	if r == nil || r.store == nil {
		return FormConfiguration{}, fmt.Errorf("core: store resolver is not configured")
	}
	trimmed := strings.TrimSpace(formID)
	if trimmed == "" {
		return FormConfiguration{}, fmt.Errorf("%w: empty form id", ErrFormNotFound)
	}
	return r.store.FindByFormID(ctx, trimmed)
}

// NewResolverFromConfig is the single selection point for the resolver
// backend; callers only ever see the ConfigResolver contract.
func NewResolverFromConfig(cfg ResolverConfig, store FormConfigStore, snapshot []FormConfiguration) (ConfigResolver, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ResolverProviderStatic:
		return NewStaticResolver(snapshot)
	case ResolverProviderStore:
		return NewStoreResolver(store)
	default:
		return nil, fmt.Errorf("%w: %s", ErrResolverUnsupported, provider)
	}
}

// IsDomainAllowed reports whether the request origin may submit to the
// form. An empty allow-list admits every origin; otherwise the origin host
// must match one entry case-insensitively, and an absent or unparseable
// origin is denied.
func IsDomainAllowed(config FormConfiguration, origin string) bool {
	if len(config.AllowedDomains) == 0 {
		return true
	}
	host := originHost(origin)
	if host == "" {
		return false
	}
	for _, domain := range config.AllowedDomains {
		if strings.EqualFold(strings.TrimSpace(domain), host) {
			return true
		}
	}
	return false
}

func originHost(origin string) string {
	trimmed := strings.TrimSpace(origin)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return ""
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return ""
		}
		return strings.ToLower(parsed.Hostname())
	}
	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(trimmed)
}

func normalizeFormID(formID string) string {
	return strings.ToLower(strings.TrimSpace(formID))
}

var (
	_ ConfigResolver = (*StaticResolver)(nil)
	_ ConfigResolver = (*StoreResolver)(nil)
)
