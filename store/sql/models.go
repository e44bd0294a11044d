package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type formConfigurationRecord struct {
	bun.BaseModel `bun:"table:form_configurations,alias:fc"`

	ID             string              `bun:"id,pk"`
	FormID         string              `bun:"form_id,notnull"`
	Enabled        bool                `bun:"enabled,notnull"`
	Privacy        bool                `bun:"privacy,notnull"`
	AllowedDomains []string            `bun:"allowed_domains,type:jsonb,notnull"`
	RateLimit      *rateLimitDocument  `bun:"rate_limit,type:jsonb"`
	Connectors     []connectorDocument `bun:"connectors,type:jsonb,notnull"`
	CreatedAt      time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time           `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// rateLimitDocument and connectorDocument are the jsonb projections of the
// domain settings; they keep the table schema stable while connector
// settings stay free-form.
type rateLimitDocument struct {
	Requests      int `json:"requests"`
	WindowMinutes int `json:"window_minutes"`
}

type connectorDocument struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Enabled  bool           `json:"enabled"`
	Settings map[string]any `json:"settings,omitempty"`
}

type formSubmissionRecord struct {
	bun.BaseModel `bun:"table:form_submissions,alias:fs"`

	ID          string         `bun:"id,pk"`
	FormID      string         `bun:"form_id,notnull"`
	Payload     map[string]any `bun:"payload,type:jsonb,notnull"`
	ClientIP    string         `bun:"client_ip"`
	UserAgent   string         `bun:"user_agent"`
	Referer     string         `bun:"referer"`
	ContentType string         `bun:"content_type"`
	SubmittedAt time.Time      `bun:"submitted_at,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type formDeliveryRecord struct {
	bun.BaseModel `bun:"table:form_deliveries,alias:fd"`

	ID            string    `bun:"id,pk"`
	SubmissionID  string    `bun:"submission_id,notnull"`
	FormID        string    `bun:"form_id,notnull"`
	ConnectorType string    `bun:"connector_type,notnull"`
	ConnectorName string    `bun:"connector_name,notnull"`
	Status        string    `bun:"status,notnull"`
	Attempts      int       `bun:"attempts,notnull"`
	LastError     string    `bun:"last_error"`
	CompletedAt   time.Time `bun:"completed_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type formRateWindowRecord struct {
	bun.BaseModel `bun:"table:form_rate_windows,alias:frw"`

	ID        string    `bun:"id,pk"`
	FormID    string    `bun:"form_id,notnull"`
	Count     int       `bun:"count,notnull"`
	StartedAt time.Time `bun:"started_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
