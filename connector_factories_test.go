package formrelay

import (
	"testing"

	"github.com/goliatone/go-formrelay/core"
)

func TestBuiltinConnectorConstructors(t *testing.T) {
	if got := WebhookConnector().Type(); got != core.ConnectorTypeWebhook {
		t.Fatalf("expected webhook connector, got %q", got)
	}
	if got := EmailConnector().Type(); got != core.ConnectorTypeEmail {
		t.Fatalf("expected email connector, got %q", got)
	}
}

func TestRegisterBuiltinConnectors(t *testing.T) {
	registry := core.NewConnectorRegistry()
	if err := RegisterBuiltinConnectors(registry); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	for _, connectorType := range []string{core.ConnectorTypeWebhook, core.ConnectorTypeEmail} {
		if !registry.Supports(connectorType) {
			t.Fatalf("expected %s connector support", connectorType)
		}
	}

	pack := BuiltinConnectorPack()
	if pack.Name != "builtin" || len(pack.Factories) != 2 {
		t.Fatalf("unexpected builtin pack: %#v", pack)
	}
}
