package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-formrelay/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestWorkItemMappingRoundTrip(t *testing.T) {
	enqueuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	original := &core.DispatchWorkItemMessage{
		SubmissionID:  "sub_1",
		FormID:        "contact",
		ConnectorType: "webhook",
		ConnectorName: "crm",
		Settings:      map[string]any{"url": "https://crm.example.com/hooks"},
		Attempt:       2,
		EnqueuedAt:    enqueuedAt,
	}

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	if converted.JobID != JobIDDispatch {
		t.Fatalf("expected dispatch job id, got %q", converted.JobID)
	}
	if converted.IdempotencyKey != "sub_1::crm::2" {
		t.Fatalf("unexpected idempotency key %q", converted.IdempotencyKey)
	}

	roundTrip := FromExecutionMessage(converted)
	if roundTrip.SubmissionID != original.SubmissionID {
		t.Fatalf("expected submission id %q, got %q", original.SubmissionID, roundTrip.SubmissionID)
	}
	if roundTrip.FormID != original.FormID || roundTrip.ConnectorName != original.ConnectorName {
		t.Fatalf("unexpected round trip: %#v", roundTrip)
	}
	if roundTrip.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", roundTrip.Attempt)
	}
	if !roundTrip.EnqueuedAt.Equal(enqueuedAt) {
		t.Fatalf("expected enqueued_at to survive mapping, got %s", roundTrip.EnqueuedAt)
	}
	if roundTrip.Settings["url"] != "https://crm.example.com/hooks" {
		t.Fatalf("expected settings to survive mapping")
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := &core.DispatchWorkItemMessage{
		SubmissionID:  "sub_2",
		FormID:        "newsletter",
		ConnectorType: "email",
		ConnectorName: "owner",
		Attempt:       0,
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDDispatch {
		t.Fatalf("expected mapped go-job message")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.SubmissionID != "sub_2" || got.ConnectorName != "owner" {
		t.Fatalf("expected mapped work item, got %#v", got)
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{JobID: JobIDDispatch},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, core.WorkItemNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if err := adapter.NackForAttempt(ctx, core.WorkItemNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Message: ToExecutionMessage(&core.DispatchWorkItemMessage{
			SubmissionID:  "sub_3",
			FormID:        "contact",
			ConnectorType: "webhook",
			ConnectorName: "crm",
			Attempt:       2,
		}),
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if coreHook.last.Item == nil {
		t.Fatalf("expected work item mapping")
	}
	if coreHook.last.Item.SubmissionID != "sub_3" {
		t.Fatalf("expected submission mapping, got %q", coreHook.last.Item.SubmissionID)
	}
	if coreHook.last.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", coreHook.last.Attempt)
	}
	if coreHook.last.Delay != 5*time.Second {
		t.Fatalf("expected delay 5s, got %s", coreHook.last.Delay)
	}
	if coreHook.last.Duration != 250*time.Millisecond {
		t.Fatalf("expected duration mapping")
	}
	if coreHook.last.StartedAt.IsZero() {
		t.Fatalf("expected started_at mapping")
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last core.DispatchEvent
}

func (h *capturingHook) OnStart(context.Context, core.DispatchEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.DispatchEvent) {}
func (h *capturingHook) OnFailure(context.Context, core.DispatchEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event core.DispatchEvent) {
	h.last = event
}
