package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// scriptedConnector replays a fixed sequence of outcomes, one per attempt.
type scriptedConnector struct {
	mu       sync.Mutex
	outcomes []DeliveryOutcome
	calls    int
	block    time.Duration
}

func (c *scriptedConnector) Type() string { return "scripted" }

func (c *scriptedConnector) Deliver(ctx context.Context, _ FormSubmission, _ map[string]any) DeliveryOutcome {
	c.mu.Lock()
	index := c.calls
	c.calls++
	block := c.block
	c.mu.Unlock()

	if block > 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < len(c.outcomes) {
		return c.outcomes[index]
	}
	return Success()
}

func (c *scriptedConnector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func scriptedRegistry(t *testing.T, connector *scriptedConnector) *ConnectorRegistry {
	t.Helper()
	registry := NewConnectorRegistry()
	if err := registry.Register("scripted", func(map[string]any) (Connector, error) {
		return connector, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return registry
}

func fastRetry(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   2 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    20 * time.Millisecond,
	}
}

func testWorkItem(id string) DispatchWorkItem {
	return DispatchWorkItem{
		Submission: FormSubmission{
			ID:      id,
			FormID:  "contact",
			Payload: map[string]any{"email": "a@example.com"},
		},
		Connector: ConnectorConfiguration{Type: "scripted", Name: "primary", Enabled: true},
		Attempt:   1,
	}
}

func waitForRecords(t *testing.T, store *MemoryDeliveryStore, submissionID string, count int) []DeliveryRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		records, err := store.ListBySubmission(context.Background(), submissionID)
		if err != nil {
			t.Fatalf("list deliveries: %v", err)
		}
		if len(records) >= count {
			return records
		}
		time.Sleep(2 * time.Millisecond)
	}
	records, _ := store.ListBySubmission(context.Background(), submissionID)
	t.Fatalf("timed out waiting for %d records for %s, have %d", count, submissionID, len(records))
	return nil
}

func startWorker(t *testing.T, queue WorkQueue, registry Registry, store DeliveryStore, config DispatchWorkerConfig) *DispatchWorker {
	t.Helper()
	worker, err := NewDispatchWorker(queue, registry, store, config)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	return worker
}

func TestDispatchWorker_TransientFailuresThenSuccess(t *testing.T) {
	connector := &scriptedConnector{outcomes: []DeliveryOutcome{
		TransientFailure("timeout"),
		TransientFailure("timeout"),
		Success(),
	}}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		Retry: fastRetry(3),
	})
	defer worker.Stop()

	if err := queue.Enqueue(context.Background(), testWorkItem("sub-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	records := waitForRecords(t, store, "sub-1", 1)
	if records[0].Status != DeliverySucceeded {
		t.Fatalf("expected success, got %s (%s)", records[0].Status, records[0].LastError)
	}
	if records[0].Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", records[0].Attempts)
	}
	if got := connector.callCount(); got != 3 {
		t.Fatalf("expected connector invoked 3 times, got %d", got)
	}
}

func TestDispatchWorker_RetriesExhausted(t *testing.T) {
	connector := &scriptedConnector{outcomes: []DeliveryOutcome{
		TransientFailure("503"),
		TransientFailure("503"),
		TransientFailure("503"),
	}}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		Retry: fastRetry(3),
	})
	defer worker.Stop()

	if err := queue.Enqueue(context.Background(), testWorkItem("sub-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	records := waitForRecords(t, store, "sub-2", 1)
	if records[0].Status != DeliveryFailed {
		t.Fatalf("expected failed, got %s", records[0].Status)
	}
	if records[0].Attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", records[0].Attempts)
	}

	// No fourth attempt ever happens.
	time.Sleep(50 * time.Millisecond)
	if got := connector.callCount(); got != 3 {
		t.Fatalf("expected connector invoked exactly 3 times, got %d", got)
	}
}

func TestDispatchWorker_PermanentFailureNeverRetries(t *testing.T) {
	connector := &scriptedConnector{outcomes: []DeliveryOutcome{
		PermanentFailure("422 unprocessable"),
	}}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		Retry: fastRetry(5),
	})
	defer worker.Stop()

	if err := queue.Enqueue(context.Background(), testWorkItem("sub-3")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	records := waitForRecords(t, store, "sub-3", 1)
	if records[0].Status != DeliveryFailed {
		t.Fatalf("expected failed, got %s", records[0].Status)
	}
	if records[0].Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", records[0].Attempts)
	}

	time.Sleep(30 * time.Millisecond)
	if got := connector.callCount(); got != 1 {
		t.Fatalf("expected connector invoked once, got %d", got)
	}
}

func TestDispatchWorker_UnknownConnectorDropsItemAndContinues(t *testing.T) {
	connector := &scriptedConnector{}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		Retry: fastRetry(3),
	})
	defer worker.Stop()

	unknown := testWorkItem("sub-4")
	unknown.Connector.Type = "sms"
	if err := queue.Enqueue(context.Background(), unknown); err != nil {
		t.Fatalf("enqueue unknown: %v", err)
	}
	if err := queue.Enqueue(context.Background(), testWorkItem("sub-5")); err != nil {
		t.Fatalf("enqueue known: %v", err)
	}

	dropped := waitForRecords(t, store, "sub-4", 1)
	if dropped[0].Status != DeliveryDropped {
		t.Fatalf("expected dropped, got %s", dropped[0].Status)
	}
	if dropped[0].Attempts != 0 {
		t.Fatalf("dropped item must record zero attempts, got %d", dropped[0].Attempts)
	}

	delivered := waitForRecords(t, store, "sub-5", 1)
	if delivered[0].Status != DeliverySucceeded {
		t.Fatalf("worker must keep processing after a drop, got %s", delivered[0].Status)
	}
	if got := connector.callCount(); got != 1 {
		t.Fatalf("unknown type must never reach a connector, calls=%d", got)
	}
}

func TestDispatchWorker_EveryItemGetsATerminalOutcome(t *testing.T) {
	connector := &scriptedConnector{outcomes: []DeliveryOutcome{
		TransientFailure("flaky"),
	}}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		Workers: 2,
		Retry:   fastRetry(2),
	})
	defer worker.Stop()

	const total = 8
	for i := 0; i < total; i++ {
		if err := queue.Enqueue(context.Background(), testWorkItem(fmt.Sprintf("bulk-%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	for i := 0; i < total; i++ {
		records := waitForRecords(t, store, fmt.Sprintf("bulk-%d", i), 1)
		if len(records) != 1 {
			t.Fatalf("item %d: expected one terminal record, got %d", i, len(records))
		}
		status := records[0].Status
		if status != DeliverySucceeded && status != DeliveryFailed {
			t.Fatalf("item %d: unexpected terminal status %s", i, status)
		}
	}
}

func TestDispatchWorker_DeliverTimeoutCountsAsTransient(t *testing.T) {
	connector := &scriptedConnector{
		block: time.Second,
		outcomes: []DeliveryOutcome{
			Success(),
			Success(),
		},
	}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		DeliverTimeout: 10 * time.Millisecond,
		Retry:          fastRetry(1),
	})
	defer worker.Stop()

	if err := queue.Enqueue(context.Background(), testWorkItem("sub-slow")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	records := waitForRecords(t, store, "sub-slow", 1)
	if records[0].Status != DeliveryFailed {
		t.Fatalf("expected failed after timeout with no retries, got %s", records[0].Status)
	}
	if records[0].LastError != ErrDeliveryTimeout.Error() {
		t.Fatalf("expected timeout reason, got %q", records[0].LastError)
	}
}

func TestDispatchWorker_PanicIsContained(t *testing.T) {
	registry := NewConnectorRegistry()
	if err := registry.Register("scripted", func(map[string]any) (Connector, error) {
		return panicConnector{}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, registry, store, DispatchWorkerConfig{
		Retry: fastRetry(1),
	})
	defer worker.Stop()

	if err := queue.Enqueue(context.Background(), testWorkItem("sub-panic")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	records := waitForRecords(t, store, "sub-panic", 1)
	if records[0].Status != DeliveryFailed {
		t.Fatalf("expected contained failure, got %s", records[0].Status)
	}
}

type panicConnector struct{}

func (panicConnector) Type() string { return "scripted" }

func (panicConnector) Deliver(context.Context, FormSubmission, map[string]any) DeliveryOutcome {
	panic("connector blew up")
}

func TestDispatchWorker_StopDrainsQueuedItems(t *testing.T) {
	connector := &scriptedConnector{}
	queue := NewDispatchQueue()
	store := NewMemoryDeliveryStore()
	worker := startWorker(t, queue, scriptedRegistry(t, connector), store, DispatchWorkerConfig{
		Retry: fastRetry(1),
	})

	for i := 0; i < 4; i++ {
		if err := queue.Enqueue(context.Background(), testWorkItem(fmt.Sprintf("drain-%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	worker.Stop()

	for i := 0; i < 4; i++ {
		records, err := store.ListBySubmission(context.Background(), fmt.Sprintf("drain-%d", i))
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(records) != 1 || records[0].Status != DeliverySucceeded {
			t.Fatalf("item %d not drained before shutdown: %+v", i, records)
		}
	}
}
