package core

import (
	"fmt"
	"strings"
	"time"
)

type ResolverConfig struct {
	Provider string `koanf:"provider" mapstructure:"provider"`
}

type QueueConfig struct {
	Capacity int `koanf:"capacity" mapstructure:"capacity"`
}

type DispatchConfig struct {
	Workers         int           `koanf:"workers" mapstructure:"workers"`
	DeliverTimeout  time.Duration `koanf:"deliver_timeout" mapstructure:"deliver_timeout"`
	Retry           RetryConfig   `koanf:"retry" mapstructure:"retry"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Resolver    ResolverConfig `koanf:"resolver" mapstructure:"resolver"`
	Queue       QueueConfig    `koanf:"queue" mapstructure:"queue"`
	Dispatch    DispatchConfig `koanf:"dispatch" mapstructure:"dispatch"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "formrelay",
		Resolver:    ResolverConfig{Provider: ResolverProviderStatic},
		Queue:       QueueConfig{Capacity: 0},
		Dispatch: DispatchConfig{
			Workers:         1,
			DeliverTimeout:  30 * time.Second,
			Retry:           DefaultRetryConfig(),
			ShutdownTimeout: time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Resolver.Provider)) {
	case "", ResolverProviderStatic, ResolverProviderStore:
	default:
		return fmt.Errorf("core: resolver provider %q is not supported", c.Resolver.Provider)
	}
	if c.Queue.Capacity < 0 {
		return fmt.Errorf("core: queue capacity must not be negative")
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("core: dispatch workers must be at least 1")
	}
	if c.Dispatch.DeliverTimeout <= 0 {
		return fmt.Errorf("core: deliver timeout must be positive")
	}
	return c.Dispatch.Retry.Validate()
}
