package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formrelay/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// JobIDDispatch identifies relay dispatch work items on an external broker.
const JobIDDispatch = "formrelay.dispatch"

const (
	paramSubmissionID  = "submission_id"
	paramFormID        = "form_id"
	paramConnectorType = "connector_type"
	paramConnectorName = "connector_name"
	paramSettings      = "settings"
	paramAttempt       = "attempt"
	paramEnqueuedAt    = "enqueued_at"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.WorkItemNackOptions, attempt int) core.WorkItemNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a dispatch work item to the go-job wire shape. The
// idempotency key dedupes redeliveries of the same attempt.
func ToExecutionMessage(msg *core.DispatchWorkItemMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID: JobIDDispatch,
		Parameters: map[string]any{
			paramSubmissionID:  strings.TrimSpace(msg.SubmissionID),
			paramFormID:        strings.TrimSpace(msg.FormID),
			paramConnectorType: strings.TrimSpace(msg.ConnectorType),
			paramConnectorName: strings.TrimSpace(msg.ConnectorName),
			paramSettings:      copyAnyMap(msg.Settings),
			paramAttempt:       msg.Attempt,
			paramEnqueuedAt:    msg.EnqueuedAt,
		},
		IdempotencyKey: dispatchIdempotencyKey(msg),
		DedupPolicy:    job.DedupPolicyIgnore,
	}
}

// FromExecutionMessage maps a go-job message back into a dispatch work item.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.DispatchWorkItemMessage {
	if msg == nil {
		return nil
	}
	params := msg.Parameters
	return &core.DispatchWorkItemMessage{
		SubmissionID:  stringParam(params, paramSubmissionID),
		FormID:        stringParam(params, paramFormID),
		ConnectorType: stringParam(params, paramConnectorType),
		ConnectorName: stringParam(params, paramConnectorName),
		Settings:      mapParam(params, paramSettings),
		Attempt:       intParam(params, paramAttempt),
		EnqueuedAt:    timeParam(params, paramEnqueuedAt),
	}
}

// ToNackOptions maps relay nack options to go-job.
func ToNackOptions(opts core.WorkItemNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// FromNackOptions maps go-job nack options into the relay contract.
func FromNackOptions(opts queue.NackOptions) core.WorkItemNackOptions {
	return core.WorkItemNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.DispatchWorkItemMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: work item message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.DispatchWorkItemMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.WorkItemNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.WorkItemNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.WorkItemDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

type WorkerHookAdapter struct {
	hook core.DispatchHook
}

func NewWorkerHookAdapter(hook core.DispatchHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.DispatchEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.DispatchEvent{
		Item:      FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func dispatchIdempotencyKey(msg *core.DispatchWorkItemMessage) string {
	return fmt.Sprintf(
		"%s::%s::%d",
		strings.TrimSpace(msg.SubmissionID),
		strings.ToLower(strings.TrimSpace(msg.ConnectorName)),
		msg.Attempt,
	)
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

func intParam(params map[string]any, key string) int {
	switch value := params[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return 0
}

func timeParam(params map[string]any, key string) time.Time {
	value, _ := params[key].(time.Time)
	return value
}

func mapParam(params map[string]any, key string) map[string]any {
	value, _ := params[key].(map[string]any)
	return copyAnyMap(value)
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.WorkItemEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.WorkItemDelivery = (*DeliveryAdapter)(nil)
	_ core.WorkItemDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook           = (*WorkerHookAdapter)(nil)
	_ core.DispatchHook     = (*capturingDispatchHook)(nil)
)

// capturingDispatchHook only exists to assert local compile-time compatibility.
type capturingDispatchHook struct{}

func (capturingDispatchHook) OnStart(context.Context, core.DispatchEvent)   {}
func (capturingDispatchHook) OnSuccess(context.Context, core.DispatchEvent) {}
func (capturingDispatchHook) OnFailure(context.Context, core.DispatchEvent) {}
func (capturingDispatchHook) OnRetry(context.Context, core.DispatchEvent)   {}
