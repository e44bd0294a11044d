package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ConnectorTypeEmail   = "email"
	ConnectorTypeWebhook = "webhook"
)

const (
	ResolverProviderStatic = "static"
	ResolverProviderStore  = "store"
)

// FormSubmission is immutable once accepted; the dispatch subsystem only
// ever reads it.
type FormSubmission struct {
	ID          string
	FormID      string
	Payload     map[string]any
	ClientIP    string
	UserAgent   string
	Referer     string
	ContentType string
	SubmittedAt time.Time
}

func (s FormSubmission) Validate() error {
	if len(s.Payload) == 0 {
		return fmt.Errorf("core: submission payload is required")
	}
	return nil
}

type RateLimitSettings struct {
	Requests      int `koanf:"requests" mapstructure:"requests"`
	WindowMinutes int `koanf:"window_minutes" mapstructure:"window_minutes"`
}

func (s RateLimitSettings) Validate() error {
	if s.Requests <= 0 {
		return fmt.Errorf("core: rate limit requests must be positive")
	}
	if s.WindowMinutes <= 0 {
		return fmt.Errorf("core: rate limit window must be positive")
	}
	return nil
}

func (s RateLimitSettings) Window() time.Duration {
	return time.Duration(s.WindowMinutes) * time.Minute
}

// ConnectorConfiguration settings are a free-form scalar tree; each
// connector projects the fields it needs at deliver time.
type ConnectorConfiguration struct {
	Type     string
	Name     string
	Enabled  bool
	Settings map[string]any
}

func (c ConnectorConfiguration) Validate() error {
	if strings.TrimSpace(c.Type) == "" {
		return fmt.Errorf("core: connector type is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("core: connector name is required")
	}
	return nil
}

type FormConfiguration struct {
	FormID         string
	Enabled        bool
	Privacy        bool
	AllowedDomains []string
	RateLimit      *RateLimitSettings
	Connectors     []ConnectorConfiguration
}

func (c FormConfiguration) Validate() error {
	if strings.TrimSpace(c.FormID) == "" {
		return fmt.Errorf("core: form id is required")
	}
	if c.RateLimit != nil {
		if err := c.RateLimit.Validate(); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{}, len(c.Connectors))
	for _, connector := range c.Connectors {
		if err := connector.Validate(); err != nil {
			return err
		}
		name := strings.ToLower(strings.TrimSpace(connector.Name))
		if _, exists := seen[name]; exists {
			return fmt.Errorf("core: duplicate connector name %q for form %q", connector.Name, c.FormID)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// EnabledConnectors returns the connectors eligible for dispatch, in
// configuration order.
func (c FormConfiguration) EnabledConnectors() []ConnectorConfiguration {
	out := make([]ConnectorConfiguration, 0, len(c.Connectors))
	for _, connector := range c.Connectors {
		if connector.Enabled {
			out = append(out, connector)
		}
	}
	return out
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	Multiplier  float64       `koanf:"multiplier" mapstructure:"multiplier"`
	MaxDelay    time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
	Jitter      bool          `koanf:"jitter" mapstructure:"jitter"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
		MaxDelay:    5 * time.Minute,
		Jitter:      true,
	}
}

func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("core: retry max attempts must be at least 1")
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("core: retry base delay must be positive")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("core: retry multiplier must be at least 1")
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("core: retry max delay must not be below base delay")
	}
	return nil
}

// DispatchWorkItem is transient queue state; it is never persisted and is
// lost on process crash.
type DispatchWorkItem struct {
	Submission FormSubmission
	Connector  ConnectorConfiguration
	Attempt    int
	EnqueuedAt time.Time
}

type DeliveryStatus string

const (
	DeliverySucceeded DeliveryStatus = "succeeded"
	DeliveryRetrying  DeliveryStatus = "retrying"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryDropped   DeliveryStatus = "dropped"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTransientFailure
	OutcomePermanentFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// DeliveryOutcome is what a connector reports for a single attempt. Only
// transient failures consume a retry; permanent failures stop immediately.
type DeliveryOutcome struct {
	Kind   OutcomeKind
	Reason string
}

func Success() DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeSuccess}
}

func TransientFailure(reason string) DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeTransientFailure, Reason: strings.TrimSpace(reason)}
}

func PermanentFailure(reason string) DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomePermanentFailure, Reason: strings.TrimSpace(reason)}
}

// DeliveryRecord is the terminal outcome of a work item after all attempts.
type DeliveryRecord struct {
	SubmissionID  string
	FormID        string
	ConnectorType string
	ConnectorName string
	Status        DeliveryStatus
	Attempts      int
	LastError     string
	CompletedAt   time.Time
}
