package connectors

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-formrelay/core"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body when
	// the connector is configured with a secret.
	SignatureHeader = "X-Formrelay-Signature"

	signaturePrefix = "sha256="
)

// WebhookConnector POSTs the submission as a JSON envelope to the configured
// endpoint. HTTP 2xx is success; 408, 429, and 5xx are transient; every
// other 4xx is permanent because retrying the same request cannot change
// the answer.
type WebhookConnector struct {
	client *http.Client
	now    func() time.Time
}

type webhookEnvelope struct {
	SubmissionID string         `json:"submission_id"`
	FormID       string         `json:"form_id"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	Payload      map[string]any `json:"payload"`
	ClientIP     string         `json:"client_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Referer      string         `json:"referer,omitempty"`
}

func NewWebhookConnector() *WebhookConnector {
	return &WebhookConnector{
		client: &http.Client{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetHTTPClient overrides the transport, for proxies and tests.
func (c *WebhookConnector) SetHTTPClient(client *http.Client) {
	if c == nil || client == nil {
		return
	}
	c.client = client
}

func (c *WebhookConnector) Type() string {
	return core.ConnectorTypeWebhook
}

func (c *WebhookConnector) Deliver(ctx context.Context, submission core.FormSubmission, settings map[string]any) core.DeliveryOutcome {
	if c == nil || c.client == nil {
		return core.PermanentFailure("webhook connector is not configured")
	}

	endpoint := stringSetting(settings, "url")
	if endpoint == "" {
		return core.PermanentFailure("webhook url is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return core.PermanentFailure(fmt.Sprintf("webhook url is invalid: %s", endpoint))
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return core.PermanentFailure(fmt.Sprintf("webhook url scheme is not supported: %s", parsed.Scheme))
	}

	method := strings.ToUpper(stringSetting(settings, "method"))
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(webhookEnvelope{
		SubmissionID: submission.ID,
		FormID:       submission.FormID,
		SubmittedAt:  submission.SubmittedAt,
		Payload:      submission.Payload,
		ClientIP:     submission.ClientIP,
		UserAgent:    submission.UserAgent,
		Referer:      submission.Referer,
	})
	if err != nil {
		return core.PermanentFailure(fmt.Sprintf("encode webhook payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return core.PermanentFailure(fmt.Sprintf("build webhook request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "formrelay/1.0")
	for key, value := range stringMapSetting(settings, "headers") {
		if key == "" || value == "" {
			continue
		}
		req.Header.Set(key, value)
	}
	if secret := stringSetting(settings, "secret"); secret != "" {
		req.Header.Set(SignatureHeader, SignBody(secret, body))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return core.TransientFailure(fmt.Sprintf("webhook request timed out: %v", err))
		}
		return core.TransientFailure(fmt.Sprintf("webhook request failed: %v", err))
	}
	defer resp.Body.Close()
	// Drain so the transport can reuse the connection.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return classifyWebhookStatus(resp.StatusCode)
}

func classifyWebhookStatus(status int) core.DeliveryOutcome {
	switch {
	case status >= 200 && status < 300:
		return core.Success()
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return core.TransientFailure(fmt.Sprintf("webhook endpoint returned %d", status))
	case status >= 500:
		return core.TransientFailure(fmt.Sprintf("webhook endpoint returned %d", status))
	default:
		return core.PermanentFailure(fmt.Sprintf("webhook endpoint returned %d", status))
	}
}

// SignBody computes the signature header value for a request body.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature header against the body. It
// is exported for receiving ends that want to validate deliveries.
func VerifySignature(secret string, body []byte, header string) bool {
	signature := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), signaturePrefix))
	if signature == "" {
		return false
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

var _ core.Connector = (*WebhookConnector)(nil)
