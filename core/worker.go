package core

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type DispatchWorkerConfig struct {
	Workers        int
	DeliverTimeout time.Duration
	Retry          RetryConfig
}

func DefaultDispatchWorkerConfig() DispatchWorkerConfig {
	return DispatchWorkerConfig{
		Workers:        1,
		DeliverTimeout: 30 * time.Second,
		Retry:          DefaultRetryConfig(),
	}
}

// DispatchWorker drains the queue and runs connector deliveries. Connector
// I/O is bounded by DeliverTimeout; a failure never crashes the worker, it
// is contained at the item boundary and converted into an outcome.
type DispatchWorker struct {
	queue      WorkQueue
	registry   Registry
	deliveries DeliveryStore
	config     DispatchWorkerConfig
	logger     Logger
	metrics    MetricsRecorder
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	wg       sync.WaitGroup
	timersMu sync.Mutex
	timers   map[*time.Timer]struct{}
	started  bool
}

func NewDispatchWorker(
	queue WorkQueue,
	registry Registry,
	deliveries DeliveryStore,
	config DispatchWorkerConfig,
) (*DispatchWorker, error) {
	if queue == nil {
		return nil, fmt.Errorf("core: dispatch queue is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("core: connector registry is required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("core: delivery store is required")
	}
	defaults := DefaultDispatchWorkerConfig()
	if config.Workers < 1 {
		config.Workers = defaults.Workers
	}
	if config.DeliverTimeout <= 0 {
		config.DeliverTimeout = defaults.DeliverTimeout
	}
	if config.Retry.MaxAttempts < 1 {
		config.Retry = defaults.Retry
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	return &DispatchWorker{
		queue:      queue,
		registry:   registry,
		deliveries: deliveries,
		config:     config,
		metrics:    NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
		timers: make(map[*time.Timer]struct{}),
	}, nil
}

func (w *DispatchWorker) SetLogger(logger Logger) {
	if w == nil {
		return
	}
	w.logger = logger
}

func (w *DispatchWorker) SetMetricsRecorder(recorder MetricsRecorder) {
	if w == nil || recorder == nil {
		return
	}
	w.metrics = recorder
}

// SetRandSource pins the jitter source so retry schedules are reproducible
// in tests.
func (w *DispatchWorker) SetRandSource(rng *rand.Rand) {
	if w == nil {
		return
	}
	w.rngMu.Lock()
	w.rng = rng
	w.rngMu.Unlock()
}

// Start spawns the consumer goroutines. They exit once the queue is closed
// and drained, or the context ends.
func (w *DispatchWorker) Start(ctx context.Context) error {
	if w == nil || w.queue == nil {
		return fmt.Errorf("core: dispatch worker is not configured")
	}
	if w.started {
		return fmt.Errorf("core: dispatch worker already started")
	}
	w.started = true
	for i := 0; i < w.config.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx)
		}()
	}
	return nil
}

// Stop closes the queue, lets in-flight deliveries finish, and abandons
// pending retry timers. Outcomes for abandoned retries are never recorded.
func (w *DispatchWorker) Stop() {
	if w == nil {
		return
	}
	w.queue.Close()
	w.wg.Wait()
	w.timersMu.Lock()
	for timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[*time.Timer]struct{})
	w.timersMu.Unlock()
}

func (w *DispatchWorker) runLoop(ctx context.Context) {
	for {
		item, ok := w.queue.Dequeue(ctx)
		if !ok {
			return
		}
		w.process(ctx, item)
	}
}

func (w *DispatchWorker) process(ctx context.Context, item DispatchWorkItem) {
	attempt := item.Attempt
	if attempt < 1 {
		attempt = 1
	}
	item.Attempt = attempt

	// Defensive re-check: configuration may have gone stale between enqueue
	// and dispatch. Unknown types drop the item, not the worker.
	connector, err := w.registry.Create(item.Connector.Type, item.Connector.Settings)
	if err != nil {
		w.logError(ctx, "unknown connector type, dropping work item", map[string]any{
			"form_id":        item.Submission.FormID,
			"submission_id":  item.Submission.ID,
			"connector_type": item.Connector.Type,
			"connector_name": item.Connector.Name,
			"error":          err.Error(),
		})
		w.incCounter(ctx, "formrelay.dispatch.dropped.total", item)
		w.record(ctx, item, DeliveryDropped, 0, err.Error())
		return
	}

	startedAt := w.now()
	outcome := w.deliver(ctx, connector, item)
	elapsed := w.now().Sub(startedAt)

	switch outcome.Kind {
	case OutcomeSuccess:
		w.logInfo(ctx, "delivery succeeded", map[string]any{
			"form_id":        item.Submission.FormID,
			"submission_id":  item.Submission.ID,
			"connector_name": item.Connector.Name,
			"attempt":        attempt,
			"duration_ms":    elapsed.Milliseconds(),
		})
		w.incCounter(ctx, "formrelay.dispatch.delivered.total", item)
		w.record(ctx, item, DeliverySucceeded, attempt, "")
	case OutcomePermanentFailure:
		w.logError(ctx, "delivery failed permanently", map[string]any{
			"form_id":        item.Submission.FormID,
			"submission_id":  item.Submission.ID,
			"connector_name": item.Connector.Name,
			"attempt":        attempt,
			"reason":         outcome.Reason,
		})
		w.incCounter(ctx, "formrelay.dispatch.failed.total", item)
		w.record(ctx, item, DeliveryFailed, attempt, outcome.Reason)
	default:
		w.handleTransient(ctx, item, outcome, attempt)
	}
}

func (w *DispatchWorker) handleTransient(ctx context.Context, item DispatchWorkItem, outcome DeliveryOutcome, attempt int) {
	delay, retry := w.nextDelay(attempt)
	if !retry {
		w.logError(ctx, "delivery failed, retries exhausted", map[string]any{
			"form_id":        item.Submission.FormID,
			"submission_id":  item.Submission.ID,
			"connector_name": item.Connector.Name,
			"attempts":       attempt,
			"reason":         outcome.Reason,
		})
		w.incCounter(ctx, "formrelay.dispatch.failed.total", item)
		w.record(ctx, item, DeliveryFailed, attempt, outcome.Reason)
		return
	}

	w.logInfo(ctx, "delivery failed, retry scheduled", map[string]any{
		"form_id":        item.Submission.FormID,
		"submission_id":  item.Submission.ID,
		"connector_name": item.Connector.Name,
		"attempt":        attempt,
		"retry_in_ms":    delay.Milliseconds(),
		"reason":         outcome.Reason,
	})
	w.incCounter(ctx, "formrelay.dispatch.retried.total", item)
	w.scheduleRetry(ctx, item, delay)
}

// scheduleRetry re-enqueues after the backoff via a timer so a pending
// retry never blocks the consumer loop.
func (w *DispatchWorker) scheduleRetry(ctx context.Context, item DispatchWorkItem, delay time.Duration) {
	next := item
	next.Attempt = item.Attempt + 1

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		w.timersMu.Lock()
		delete(w.timers, timer)
		w.timersMu.Unlock()
		if err := w.queue.Enqueue(ctx, next); err != nil {
			w.logError(ctx, "retry abandoned, queue closed", map[string]any{
				"submission_id":  next.Submission.ID,
				"connector_name": next.Connector.Name,
				"attempt":        next.Attempt,
			})
		}
	})
	w.timersMu.Lock()
	w.timers[timer] = struct{}{}
	w.timersMu.Unlock()
}

func (w *DispatchWorker) deliver(ctx context.Context, connector Connector, item DispatchWorkItem) (outcome DeliveryOutcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = TransientFailure(fmt.Sprintf("connector panic: %v", recovered))
		}
	}()

	deliverCtx := ctx
	if deliverCtx == nil {
		deliverCtx = context.Background()
	}
	deliverCtx, cancel := context.WithTimeout(deliverCtx, w.config.DeliverTimeout)
	defer cancel()

	done := make(chan DeliveryOutcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- TransientFailure(fmt.Sprintf("connector panic: %v", recovered))
			}
		}()
		done <- connector.Deliver(deliverCtx, item.Submission, item.Connector.Settings)
	}()

	select {
	case outcome = <-done:
		return outcome
	case <-deliverCtx.Done():
		// A timeout counts as a failed attempt; the connector goroutine is
		// left to observe its context and unwind on its own.
		return TransientFailure(ErrDeliveryTimeout.Error())
	}
}

func (w *DispatchWorker) nextDelay(attempt int) (time.Duration, bool) {
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	return NextDelayWithRand(attempt, w.config.Retry, w.rng)
}

func (w *DispatchWorker) record(ctx context.Context, item DispatchWorkItem, status DeliveryStatus, attempts int, lastError string) {
	record := DeliveryRecord{
		SubmissionID:  item.Submission.ID,
		FormID:        item.Submission.FormID,
		ConnectorType: item.Connector.Type,
		ConnectorName: item.Connector.Name,
		Status:        status,
		Attempts:      attempts,
		LastError:     lastError,
		CompletedAt:   w.now(),
	}
	if err := w.deliveries.Record(ctx, record); err != nil {
		w.logError(ctx, "failed to record delivery outcome", map[string]any{
			"submission_id":  record.SubmissionID,
			"connector_name": record.ConnectorName,
			"status":         string(record.Status),
			"error":          err.Error(),
		})
	}
}

func (w *DispatchWorker) incCounter(ctx context.Context, name string, item DispatchWorkItem) {
	if w.metrics == nil {
		return
	}
	w.metrics.IncCounter(ctx, name, 1, map[string]string{
		"form_id":        item.Submission.FormID,
		"connector_type": item.Connector.Type,
	})
}

func (w *DispatchWorker) logInfo(ctx context.Context, message string, fields map[string]any) {
	logWithLevel(ctx, w.logger, "info", message, fields)
}

func (w *DispatchWorker) logError(ctx context.Context, message string, fields map[string]any) {
	logWithLevel(ctx, w.logger, "error", message, fields)
}
