// Package formrelay re-exports the relay runtime so downstream modules can
// compose services, commands, and queries without importing core directly.
package formrelay

import "github.com/goliatone/go-formrelay/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Connector = core.Connector
type ConnectorFactory = core.ConnectorFactory
type Registry = core.Registry
type ConfigResolver = core.ConfigResolver
type SubmissionStore = core.SubmissionStore
type FormConfigStore = core.FormConfigStore
type DeliveryStore = core.DeliveryStore
type RateLimiter = core.RateLimiter
type WorkQueue = core.WorkQueue

type SubmitRequest = core.SubmitRequest
type AcceptResult = core.AcceptResult

type FormSubmission = core.FormSubmission
type FormConfiguration = core.FormConfiguration
type ConnectorConfiguration = core.ConnectorConfiguration
type RateLimitSettings = core.RateLimitSettings
type DeliveryRecord = core.DeliveryRecord
type DeliveryOutcome = core.DeliveryOutcome

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorFactory          = core.WithErrorFactory
	WithErrorMapper           = core.WithErrorMapper
	WithPersistenceClient     = core.WithPersistenceClient
	WithRepositoryFactory     = core.WithRepositoryFactory
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithRegistry              = core.WithRegistry
	WithQueue                 = core.WithQueue
	WithResolver              = core.WithResolver
	WithConfigurationSnapshot = core.WithConfigurationSnapshot
	WithSubmissionStore       = core.WithSubmissionStore
	WithFormConfigStore       = core.WithFormConfigStore
	WithDeliveryStore         = core.WithDeliveryStore
	WithRateLimiter           = core.WithRateLimiter
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
