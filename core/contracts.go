package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Connector forwards a submission to one external system. Implementations
// validate their own settings at deliver time and report outcome kind
// rather than returning an error for delivery failures; errors are reserved
// for infrastructure problems and are treated as transient.
type Connector interface {
	Type() string
	Deliver(ctx context.Context, submission FormSubmission, settings map[string]any) DeliveryOutcome
}

// ConnectorFactory builds a connector for validated settings. Unknown or
// malformed settings should fail here, before anything is enqueued.
type ConnectorFactory func(settings map[string]any) (Connector, error)

type Registry interface {
	Register(connectorType string, factory ConnectorFactory) error
	Create(connectorType string, settings map[string]any) (Connector, error)
	Supports(connectorType string) bool
	Types() []string
}

// ConfigResolver is the single contract both resolver backends satisfy.
// Callers never branch on the backing strategy.
type ConfigResolver interface {
	Resolve(ctx context.Context, formID string) (FormConfiguration, error)
}

type SubmissionStore interface {
	Save(ctx context.Context, submission FormSubmission) (string, error)
	Get(ctx context.Context, id string) (FormSubmission, error)
}

type FormConfigStore interface {
	Upsert(ctx context.Context, config FormConfiguration) error
	FindByFormID(ctx context.Context, formID string) (FormConfiguration, error)
	Delete(ctx context.Context, formID string) error
}

// DeliveryStore records terminal dispatch outcomes. Per-attempt progress is
// not persisted; the queue is in-memory and best-effort.
type DeliveryStore interface {
	Record(ctx context.Context, record DeliveryRecord) error
	ListBySubmission(ctx context.Context, submissionID string) ([]DeliveryRecord, error)
}

// RateLimiter is consulted at the acceptance boundary, before a submission
// is stored or enqueued.
type RateLimiter interface {
	TryAcquire(ctx context.Context, formID string, settings RateLimitSettings) (bool, error)
}

// WorkQueue decouples submission acceptance from connector dispatch.
// Enqueue must complete in bounded time (backpressure aside); Dequeue blocks
// until an item is available or the queue is closed and drained.
type WorkQueue interface {
	Enqueue(ctx context.Context, item DispatchWorkItem) error
	Dequeue(ctx context.Context) (DispatchWorkItem, bool)
	Close()
	Len() int
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// DispatchWorkItemMessage is the queue-agnostic wire shape used when work
// items cross into an external broker (see adapters/gojob).
type DispatchWorkItemMessage struct {
	SubmissionID  string
	FormID        string
	ConnectorType string
	ConnectorName string
	Settings      map[string]any
	Attempt       int
	EnqueuedAt    time.Time
}

type WorkItemEnqueuer interface {
	Enqueue(ctx context.Context, msg *DispatchWorkItemMessage) error
}

type WorkItemNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type WorkItemDelivery interface {
	Message() *DispatchWorkItemMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts WorkItemNackOptions) error
}

type WorkItemDequeuer interface {
	Dequeue(ctx context.Context) (WorkItemDelivery, error)
}

type DispatchHook interface {
	OnStart(ctx context.Context, event DispatchEvent)
	OnSuccess(ctx context.Context, event DispatchEvent)
	OnFailure(ctx context.Context, event DispatchEvent)
	OnRetry(ctx context.Context, event DispatchEvent)
}

type DispatchEvent struct {
	Item      *DispatchWorkItemMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
