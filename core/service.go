package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type SubmitRequest struct {
	FormID      string
	Payload     map[string]any
	Origin      string
	ClientIP    string
	UserAgent   string
	Referer     string
	ContentType string
}

type AcceptResult struct {
	SubmissionID string
	Enqueued     int
}

// Service accepts submissions synchronously and hands delivery to the
// dispatch worker through the queue. Acceptance never waits on, and never
// fails because of, connector delivery.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	registry        Registry
	queue           WorkQueue
	resolver        ConfigResolver
	submissionStore SubmissionStore
	formConfigStore FormConfigStore
	deliveryStore   DeliveryStore
	rateLimiter     RateLimiter
	worker          *DispatchWorker
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Registry        Registry
	Queue           WorkQueue
	Resolver        ConfigResolver
	SubmissionStore SubmissionStore
	FormConfigStore FormConfigStore
	DeliveryStore   DeliveryStore
	RateLimiter     RateLimiter
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("formrelay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("formrelay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewConnectorRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		if builder.submissionStore == nil {
			if provider, ok := builder.repositoryFactory.(interface{ SubmissionStore() SubmissionStore }); ok {
				builder.submissionStore = provider.SubmissionStore()
			}
		}
		if builder.formConfigStore == nil {
			if provider, ok := builder.repositoryFactory.(interface{ FormConfigStore() FormConfigStore }); ok {
				builder.formConfigStore = provider.FormConfigStore()
			}
		}
		if builder.deliveryStore == nil {
			if provider, ok := builder.repositoryFactory.(interface{ DeliveryStore() DeliveryStore }); ok {
				builder.deliveryStore = provider.DeliveryStore()
			}
		}
	}
	if builder.submissionStore == nil {
		builder.submissionStore = NewMemorySubmissionStore()
	}
	if builder.deliveryStore == nil {
		builder.deliveryStore = NewMemoryDeliveryStore()
	}

	resolver := builder.resolver
	if resolver == nil {
		resolver, err = NewResolverFromConfig(finalConfig.Resolver, builder.formConfigStore, builder.snapshot)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	queue := builder.queue
	if queue == nil {
		queue = NewBoundedDispatchQueue(finalConfig.Queue.Capacity)
	}

	worker, err := NewDispatchWorker(queue, builder.registry, builder.deliveryStore, DispatchWorkerConfig{
		Workers:        finalConfig.Dispatch.Workers,
		DeliverTimeout: finalConfig.Dispatch.DeliverTimeout,
		Retry:          finalConfig.Dispatch.Retry,
	})
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	worker.SetLogger(logger)
	worker.SetMetricsRecorder(builder.metricsRecorder)

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		registry:        builder.registry,
		queue:           queue,
		resolver:        resolver,
		submissionStore: builder.submissionStore,
		formConfigStore: builder.formConfigStore,
		deliveryStore:   builder.deliveryStore,
		rateLimiter:     builder.rateLimiter,
		worker:          worker,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Registry:        s.registry,
		Queue:           s.queue,
		Resolver:        s.resolver,
		SubmissionStore: s.submissionStore,
		FormConfigStore: s.formConfigStore,
		DeliveryStore:   s.deliveryStore,
		RateLimiter:     s.rateLimiter,
	}
}

// Start launches the dispatch worker. It is called once at process init.
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.worker == nil {
		return fmt.Errorf("core: service is not configured")
	}
	return s.worker.Start(ctx)
}

// Stop drains in-flight deliveries and abandons pending retries.
func (s *Service) Stop() {
	if s == nil || s.worker == nil {
		return
	}
	s.worker.Stop()
}

// Accept validates and persists a submission, then enqueues one work item
// per enabled connector. It returns as soon as the items are queued.
func (s *Service) Accept(ctx context.Context, req SubmitRequest) (result AcceptResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"form_id": strings.TrimSpace(req.FormID),
	}
	defer func() {
		err = s.mapError(err)
		s.observeOperation(ctx, startedAt, "accept", err, fields)
	}()

	formID := strings.TrimSpace(req.FormID)
	if formID == "" {
		return AcceptResult{}, fmt.Errorf("core: form id is required")
	}
	if len(req.Payload) == 0 {
		return AcceptResult{}, fmt.Errorf("core: submission payload is required")
	}

	config, err := s.resolver.Resolve(ctx, formID)
	if err != nil {
		return AcceptResult{}, err
	}
	if !config.Enabled {
		return AcceptResult{}, fmt.Errorf("%w: %s", ErrFormDisabled, formID)
	}
	if !IsDomainAllowed(config, req.Origin) {
		return AcceptResult{}, fmt.Errorf("%w: %s", ErrOriginForbidden, strings.TrimSpace(req.Origin))
	}
	if s.rateLimiter != nil && config.RateLimit != nil {
		allowed, limitErr := s.rateLimiter.TryAcquire(ctx, formID, *config.RateLimit)
		if limitErr != nil {
			return AcceptResult{}, limitErr
		}
		if !allowed {
			return AcceptResult{}, fmt.Errorf("%w: %s", ErrRateLimited, formID)
		}
	}

	submission := FormSubmission{
		ID:          uuid.NewString(),
		FormID:      formID,
		Payload:     req.Payload,
		ContentType: strings.TrimSpace(req.ContentType),
		SubmittedAt: s.now(),
	}
	if !config.Privacy {
		submission.ClientIP = strings.TrimSpace(req.ClientIP)
		submission.UserAgent = strings.TrimSpace(req.UserAgent)
		submission.Referer = strings.TrimSpace(req.Referer)
	}

	id, err := s.submissionStore.Save(ctx, submission)
	if err != nil {
		return AcceptResult{}, err
	}
	submission.ID = id
	fields["submission_id"] = id

	enqueued := 0
	for _, connector := range config.EnabledConnectors() {
		item := DispatchWorkItem{
			Submission: submission,
			Connector:  connector,
			Attempt:    1,
			EnqueuedAt: s.now(),
		}
		if err := s.queue.Enqueue(ctx, item); err != nil {
			fields["enqueued"] = enqueued
			return AcceptResult{SubmissionID: id, Enqueued: enqueued}, err
		}
		enqueued++
	}
	fields["enqueued"] = enqueued

	return AcceptResult{SubmissionID: id, Enqueued: enqueued}, nil
}

// UpsertFormConfiguration validates a configuration, including connector
// type support, before writing it to the management store. Unknown
// connector types fail here rather than at dispatch time.
func (s *Service) UpsertFormConfiguration(ctx context.Context, config FormConfiguration) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"form_id": strings.TrimSpace(config.FormID)}
	defer func() {
		err = s.mapError(err)
		s.observeOperation(ctx, startedAt, "config.upsert", err, fields)
	}()

	if err := config.Validate(); err != nil {
		return err
	}
	if registry, ok := s.registry.(*ConnectorRegistry); ok {
		if err := registry.ValidateConfiguration(config); err != nil {
			return err
		}
	} else {
		for _, connector := range config.Connectors {
			if !s.registry.Supports(connector.Type) {
				return fmt.Errorf("%w: %s", ErrUnknownConnector, connector.Type)
			}
		}
	}
	if s.formConfigStore == nil {
		return fmt.Errorf("core: form config store is not configured")
	}
	return s.formConfigStore.Upsert(ctx, config)
}

func (s *Service) DeleteFormConfiguration(ctx context.Context, formID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"form_id": strings.TrimSpace(formID)}
	defer func() {
		err = s.mapError(err)
		s.observeOperation(ctx, startedAt, "config.delete", err, fields)
	}()

	if strings.TrimSpace(formID) == "" {
		return fmt.Errorf("core: form id is required")
	}
	if s.formConfigStore == nil {
		return fmt.Errorf("core: form config store is not configured")
	}
	return s.formConfigStore.Delete(ctx, formID)
}

func (s *Service) GetFormConfiguration(ctx context.Context, formID string) (FormConfiguration, error) {
	if s == nil || s.resolver == nil {
		return FormConfiguration{}, fmt.Errorf("core: service is not configured")
	}
	config, err := s.resolver.Resolve(ctx, formID)
	if err != nil {
		return FormConfiguration{}, s.mapError(err)
	}
	return config, nil
}

func (s *Service) GetSubmission(ctx context.Context, id string) (FormSubmission, error) {
	if s == nil || s.submissionStore == nil {
		return FormSubmission{}, fmt.Errorf("core: service is not configured")
	}
	submission, err := s.submissionStore.Get(ctx, id)
	if err != nil {
		return FormSubmission{}, s.mapError(err)
	}
	return submission, nil
}

func (s *Service) ListDeliveries(ctx context.Context, submissionID string) ([]DeliveryRecord, error) {
	if s == nil || s.deliveryStore == nil {
		return nil, fmt.Errorf("core: service is not configured")
	}
	records, err := s.deliveryStore.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return records, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if formID := strings.TrimSpace(fmt.Sprint(fields["form_id"])); formID != "" && formID != "<nil>" {
		tags["form_id"] = formID
	}

	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, "formrelay."+operation+".total", 1, tags)
		s.metricsRecorder.ObserveHistogram(
			ctx,
			"formrelay."+operation+".duration_ms",
			float64(time.Since(startedAt).Milliseconds()),
			tags,
		)
	}

	if err != nil {
		logWithLevel(ctx, s.logger, "error", operation+" failed", contextFields)
		return
	}
	logWithLevel(ctx, s.logger, "info", operation+" succeeded", contextFields)
}
