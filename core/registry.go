package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ConnectorRegistry maps connector type tags to factories. It is populated
// at startup and read-only afterwards, but guards with a lock anyway so late
// registration from tests stays safe.
type ConnectorRegistry struct {
	mu        sync.RWMutex
	factories map[string]ConnectorFactory
}

func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{factories: make(map[string]ConnectorFactory)}
}

func (r *ConnectorRegistry) Register(connectorType string, factory ConnectorFactory) error {
	if factory == nil {
		return fmt.Errorf("core: connector factory is nil")
	}
	tag := normalizeConnectorType(connectorType)
	if tag == "" {
		return fmt.Errorf("core: connector type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("core: connector type already registered: %s", tag)
	}
	r.factories[tag] = factory
	return nil
}

// Create builds a connector for the tag, failing fast for unknown types so
// configuration errors surface before anything reaches the queue.
func (r *ConnectorRegistry) Create(connectorType string, settings map[string]any) (Connector, error) {
	tag := normalizeConnectorType(connectorType)
	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnector, tag)
	}
	connector, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("core: connector %s: %w", tag, err)
	}
	if connector == nil {
		return nil, fmt.Errorf("core: connector factory %s returned nil", tag)
	}
	return connector, nil
}

func (r *ConnectorRegistry) Supports(connectorType string) bool {
	tag := normalizeConnectorType(connectorType)
	r.mu.RLock()
	_, ok := r.factories[tag]
	r.mu.RUnlock()
	return ok
}

func (r *ConnectorRegistry) Types() []string {
	r.mu.RLock()
	types := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		types = append(types, tag)
	}
	r.mu.RUnlock()
	sort.Strings(types)
	return types
}

// ValidateConfiguration checks every connector in a form configuration
// against the registry, so unsupported tags fail at configuration time
// rather than at dispatch time.
func (r *ConnectorRegistry) ValidateConfiguration(config FormConfiguration) error {
	for _, connector := range config.Connectors {
		if !r.Supports(connector.Type) {
			return fmt.Errorf("%w: %s (form %q, connector %q)",
				ErrUnknownConnector, connector.Type, config.FormID, connector.Name)
		}
	}
	return nil
}

func normalizeConnectorType(connectorType string) string {
	return strings.ToLower(strings.TrimSpace(connectorType))
}

var _ Registry = (*ConnectorRegistry)(nil)
