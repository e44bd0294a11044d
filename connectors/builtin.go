package connectors

import (
	"fmt"

	"github.com/goliatone/go-formrelay/core"
)

// RegisterBuiltins wires the webhook and email connectors into a registry.
// Connectors are stateless across deliveries, so a single instance serves
// every work item of its type.
func RegisterBuiltins(registry *core.ConnectorRegistry) error {
	if registry == nil {
		return fmt.Errorf("connectors: registry is required")
	}

	webhook := NewWebhookConnector()
	if err := registry.Register(core.ConnectorTypeWebhook, func(map[string]any) (core.Connector, error) {
		return webhook, nil
	}); err != nil {
		return err
	}

	email := NewEmailConnector()
	if err := registry.Register(core.ConnectorTypeEmail, func(map[string]any) (core.Connector, error) {
		return email, nil
	}); err != nil {
		return err
	}
	return nil
}
