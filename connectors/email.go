package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-formrelay/core"
)

// EmailConnector relays the submission over SMTP. Malformed addresses and
// missing settings are permanent; connection and 4xx server responses are
// transient; 5xx server responses are permanent per SMTP semantics.
type EmailConnector struct {
	send sendMailFunc
	now  func() time.Time
}

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

func NewEmailConnector() *EmailConnector {
	return &EmailConnector{
		send: smtp.SendMail,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetSendFunc replaces the SMTP transport, for tests.
func (c *EmailConnector) SetSendFunc(send sendMailFunc) {
	if c == nil || send == nil {
		return
	}
	c.send = send
}

func (c *EmailConnector) Type() string {
	return core.ConnectorTypeEmail
}

func (c *EmailConnector) Deliver(ctx context.Context, submission core.FormSubmission, settings map[string]any) core.DeliveryOutcome {
	if c == nil || c.send == nil {
		return core.PermanentFailure("email connector is not configured")
	}
	if err := ctx.Err(); err != nil {
		return core.TransientFailure(fmt.Sprintf("email delivery aborted: %v", err))
	}

	host := stringSetting(settings, "host")
	if host == "" {
		return core.PermanentFailure("email host is required")
	}
	port := stringSetting(settings, "port")
	if port == "" {
		port = "587"
	}

	from := stringSetting(settings, "from")
	if from == "" {
		return core.PermanentFailure("email from address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return core.PermanentFailure(fmt.Sprintf("email from address is invalid: %s", from))
	}

	recipients := stringSliceSetting(settings, "to")
	if len(recipients) == 0 {
		return core.PermanentFailure("email recipients are required")
	}
	for _, recipient := range recipients {
		if _, err := mail.ParseAddress(recipient); err != nil {
			return core.PermanentFailure(fmt.Sprintf("email recipient is invalid: %s", recipient))
		}
	}

	subject := stringSetting(settings, "subject")
	if subject == "" {
		subject = fmt.Sprintf("New submission for %s", submission.FormID)
	}

	var auth smtp.Auth
	if username := stringSetting(settings, "username"); username != "" {
		auth = smtp.PlainAuth("", username, stringSetting(settings, "password"), host)
	}

	message := buildEmailMessage(from, recipients, subject, submission, c.clock())
	if err := c.send(net.JoinHostPort(host, port), auth, from, recipients, message); err != nil {
		return classifySMTPError(err)
	}
	return core.Success()
}

func classifySMTPError(err error) core.DeliveryOutcome {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code >= 500 {
			return core.PermanentFailure(fmt.Sprintf("smtp server rejected message: %v", err))
		}
		return core.TransientFailure(fmt.Sprintf("smtp server deferred message: %v", err))
	}
	return core.TransientFailure(fmt.Sprintf("smtp delivery failed: %v", err))
}

func buildEmailMessage(from string, to []string, subject string, submission core.FormSubmission, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "Form: %s\r\n", submission.FormID)
	fmt.Fprintf(&b, "Submission: %s\r\n", submission.ID)
	fmt.Fprintf(&b, "Received: %s\r\n", submission.SubmittedAt.Format(time.RFC3339))
	b.WriteString("\r\n")

	keys := make([]string, 0, len(submission.Payload))
	for key := range submission.Payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %v\r\n", key, submission.Payload[key])
	}

	if submission.ClientIP != "" || submission.UserAgent != "" || submission.Referer != "" {
		b.WriteString("\r\n--\r\n")
		if submission.ClientIP != "" {
			fmt.Fprintf(&b, "Client IP: %s\r\n", submission.ClientIP)
		}
		if submission.UserAgent != "" {
			fmt.Fprintf(&b, "User Agent: %s\r\n", submission.UserAgent)
		}
		if submission.Referer != "" {
			fmt.Fprintf(&b, "Referer: %s\r\n", submission.Referer)
		}
	}
	return []byte(b.String())
}

// sanitizeHeader strips CR and LF so payload values can never inject extra
// headers.
func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func (c *EmailConnector) clock() time.Time {
	if c != nil && c.now != nil {
		return c.now().UTC()
	}
	return time.Now().UTC()
}

var _ core.Connector = (*EmailConnector)(nil)
