package connectors

import (
	"context"
	"fmt"
	"net/smtp"
	"net/textproto"
	"strings"
	"testing"

	"github.com/goliatone/go-formrelay/core"
)

func emailSettings() map[string]any {
	return map[string]any{
		"host": "mail.example.com",
		"port": "587",
		"from": "forms@example.com",
		"to":   []any{"owner@example.com"},
	}
}

func TestEmailConnector_DeliverSuccess(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	connector := NewEmailConnector()
	connector.SetSendFunc(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	})

	outcome := connector.Deliver(context.Background(), testSubmission(), emailSettings())
	if outcome.Kind != core.OutcomeSuccess {
		t.Fatalf("expected success, got %v (%s)", outcome.Kind, outcome.Reason)
	}
	if gotAddr != "mail.example.com:587" {
		t.Fatalf("unexpected server address %s", gotAddr)
	}
	if gotFrom != "forms@example.com" || len(gotTo) != 1 || gotTo[0] != "owner@example.com" {
		t.Fatalf("unexpected envelope: from=%s to=%v", gotFrom, gotTo)
	}

	message := string(gotMsg)
	if !strings.Contains(message, "Subject: New submission for contact") {
		t.Fatalf("default subject missing:\n%s", message)
	}
	if !strings.Contains(message, "message: hello") {
		t.Fatalf("payload field missing:\n%s", message)
	}
}

func TestEmailConnector_SubjectHeaderInjectionIsStripped(t *testing.T) {
	var gotMsg []byte
	connector := NewEmailConnector()
	connector.SetSendFunc(func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	})

	settings := emailSettings()
	settings["subject"] = "hi\r\nBcc: victim@example.com"
	outcome := connector.Deliver(context.Background(), testSubmission(), settings)
	if outcome.Kind != core.OutcomeSuccess {
		t.Fatalf("expected success, got %v", outcome.Kind)
	}
	if strings.Contains(string(gotMsg), "Bcc:") {
		t.Fatalf("injected header survived:\n%s", gotMsg)
	}
}

func TestEmailConnector_InvalidSettingsArePermanent(t *testing.T) {
	connector := NewEmailConnector()
	connector.SetSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("send must not be called for invalid settings")
		return nil
	})

	cases := map[string]map[string]any{
		"missing host": {
			"from": "forms@example.com", "to": "owner@example.com",
		},
		"missing from": {
			"host": "mail.example.com", "to": "owner@example.com",
		},
		"malformed from": {
			"host": "mail.example.com", "from": "not an address", "to": "owner@example.com",
		},
		"missing recipients": {
			"host": "mail.example.com", "from": "forms@example.com",
		},
		"malformed recipient": {
			"host": "mail.example.com", "from": "forms@example.com", "to": "nope nope",
		},
	}
	for name, settings := range cases {
		outcome := connector.Deliver(context.Background(), testSubmission(), settings)
		if outcome.Kind != core.OutcomePermanentFailure {
			t.Fatalf("%s: expected permanent failure, got %v (%s)", name, outcome.Kind, outcome.Reason)
		}
	}
}

func TestEmailConnector_DialFailureIsTransient(t *testing.T) {
	connector := NewEmailConnector()
	connector.SetSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
		return fmt.Errorf("dial tcp: connection refused")
	})

	outcome := connector.Deliver(context.Background(), testSubmission(), emailSettings())
	if outcome.Kind != core.OutcomeTransientFailure {
		t.Fatalf("expected transient failure, got %v", outcome.Kind)
	}
}

func TestEmailConnector_SMTPResponseClassification(t *testing.T) {
	cases := []struct {
		code int
		want core.OutcomeKind
	}{
		{421, core.OutcomeTransientFailure},
		{450, core.OutcomeTransientFailure},
		{452, core.OutcomeTransientFailure},
		{550, core.OutcomePermanentFailure},
		{554, core.OutcomePermanentFailure},
	}
	for _, tc := range cases {
		connector := NewEmailConnector()
		connector.SetSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
			return &textproto.Error{Code: tc.code, Msg: "server said no"}
		})
		outcome := connector.Deliver(context.Background(), testSubmission(), emailSettings())
		if outcome.Kind != tc.want {
			t.Fatalf("code %d: expected %v, got %v", tc.code, tc.want, outcome.Kind)
		}
	}
}

func TestEmailConnector_CommaSeparatedRecipients(t *testing.T) {
	var gotTo []string
	connector := NewEmailConnector()
	connector.SetSendFunc(func(_ string, _ smtp.Auth, _ string, to []string, _ []byte) error {
		gotTo = to
		return nil
	})

	settings := emailSettings()
	settings["to"] = "a@example.com, b@example.com"
	outcome := connector.Deliver(context.Background(), testSubmission(), settings)
	if outcome.Kind != core.OutcomeSuccess {
		t.Fatalf("expected success, got %v (%s)", outcome.Kind, outcome.Reason)
	}
	if len(gotTo) != 2 || gotTo[0] != "a@example.com" || gotTo[1] != "b@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	registry := core.NewConnectorRegistry()
	if err := RegisterBuiltins(registry); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	for _, tag := range []string{core.ConnectorTypeWebhook, core.ConnectorTypeEmail} {
		if !registry.Supports(tag) {
			t.Fatalf("expected %s to be registered", tag)
		}
		connector, err := registry.Create(tag, nil)
		if err != nil {
			t.Fatalf("create %s: %v", tag, err)
		}
		if connector.Type() != tag {
			t.Fatalf("expected type %s, got %s", tag, connector.Type())
		}
	}
	if err := RegisterBuiltins(registry); err == nil {
		t.Fatalf("second registration must fail on duplicates")
	}
}
