package formrelay

import (
	"github.com/goliatone/go-formrelay/connectors"
	"github.com/goliatone/go-formrelay/core"
)

func WebhookConnector() core.Connector {
	return connectors.NewWebhookConnector()
}

func EmailConnector() core.Connector {
	return connectors.NewEmailConnector()
}

// BuiltinConnectorPack exposes the stock connectors as an extension pack so
// they register alongside downstream packs.
func BuiltinConnectorPack() ConnectorPack {
	return ConnectorPack{
		Name: "builtin",
		Factories: map[string]core.ConnectorFactory{
			core.ConnectorTypeWebhook: func(map[string]any) (core.Connector, error) {
				return connectors.NewWebhookConnector(), nil
			},
			core.ConnectorTypeEmail: func(map[string]any) (core.Connector, error) {
				return connectors.NewEmailConnector(), nil
			},
		},
	}
}

// RegisterBuiltinConnectors registers the webhook and email connectors on a
// registry built by the caller.
func RegisterBuiltinConnectors(registry *core.ConnectorRegistry) error {
	return connectors.RegisterBuiltins(registry)
}
