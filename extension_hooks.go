package formrelay

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formrelay/core"
)

// ConnectorPack groups named connector factories a downstream module ships
// as one unit.
type ConnectorPack struct {
	Name      string
	Factories map[string]core.ConnectorFactory
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks lets downstream modules contribute connector packs and
// command/query bundles without reaching into runtime internals.
type ExtensionHooks struct {
	mu sync.RWMutex

	connectorPacks map[string]ConnectorPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		connectorPacks: map[string]ConnectorPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterConnectorPack(pack ConnectorPack) error {
	if h == nil {
		return fmt.Errorf("formrelay: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("formrelay: connector pack name is required")
	}
	if len(pack.Factories) == 0 {
		return fmt.Errorf("formrelay: connector pack %q has no factories", name)
	}

	normalized := ConnectorPack{
		Name:      name,
		Factories: make(map[string]core.ConnectorFactory, len(pack.Factories)),
	}
	for connectorType, factory := range pack.Factories {
		connectorType = strings.TrimSpace(strings.ToLower(connectorType))
		if connectorType == "" {
			return fmt.Errorf("formrelay: connector pack %q has an unnamed connector type", name)
		}
		if factory == nil {
			return fmt.Errorf("formrelay: connector pack %q factory %q is nil", name, connectorType)
		}
		normalized.Factories[connectorType] = factory
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.connectorPacks[name]; exists {
		return fmt.Errorf("formrelay: connector pack %q already registered", name)
	}
	h.connectorPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("formrelay: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("formrelay: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("formrelay: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("formrelay: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyConnectorPacks registers every pack's factories on the registry in
// deterministic pack order.
func (h *ExtensionHooks) ApplyConnectorPacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("formrelay: registry is required")
	}

	for _, pack := range h.ConnectorPacks() {
		types := make([]string, 0, len(pack.Factories))
		for connectorType := range pack.Factories {
			types = append(types, connectorType)
		}
		sort.Strings(types)
		for _, connectorType := range types {
			if err := registry.Register(connectorType, pack.Factories[connectorType]); err != nil {
				return fmt.Errorf("formrelay: connector pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("formrelay: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ConnectorPacks() []ConnectorPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.connectorPacks))
	for name := range h.connectorPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ConnectorPack, 0, len(names))
	for _, name := range names {
		pack := h.connectorPacks[name]
		factories := make(map[string]core.ConnectorFactory, len(pack.Factories))
		for connectorType, factory := range pack.Factories {
			factories[connectorType] = factory
		}
		out = append(out, ConnectorPack{Name: pack.Name, Factories: factories})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
