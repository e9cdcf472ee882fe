package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "FROYO_GIT_"

// Config contains the telemetry configuration for froyo-git.
type Config struct {
	// ServiceName is the name of the service for telemetry identification.
	ServiceName string `env:"SERVICE_NAME, default=froyo-git"`

	// ServiceVersion is the version of the service.
	ServiceVersion string `env:"SERVICE_VERSION, default=dev"`

	// Environment specifies the deployment environment (dev, staging, prod).
	Environment string `env:"ENVIRONMENT, default=development"`

	// Logging contains logging configuration.
	Logging LoggingConfig `env:", prefix=LOG_"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `env:", prefix=TRACE_"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `env:", prefix=METRICS_"`

	// Events contains event publishing configuration.
	Events EventsConfig `env:", prefix=EVENTS_"`

	// ResourceAttributes are additional resource attributes for telemetry,
	// written as key:value pairs separated by commas.
	ResourceAttributes map[string]string `env:"RESOURCE_ATTRIBUTES"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error, fatal).
	Level string `env:"LEVEL, default=info"`

	// Format specifies the log format (console, json).
	Format string `env:"FORMAT, default=console"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `env:"OUTPUT, default=stderr"`

	// EnableCaller adds file:line caller information to logs.
	EnableCaller bool `env:"CALLER, default=false"`

	// EnableSampling enables log sampling for high-frequency logs.
	EnableSampling bool `env:"SAMPLING, default=false"`

	// SamplingInitial is the number of messages logged per second initially.
	SamplingInitial int `env:"SAMPLING_INITIAL, default=100"`

	// SamplingThereafter logs every Nth message after the initial sample.
	SamplingThereafter int `env:"SAMPLING_THEREAFTER, default=100"`

	// TimeFormat specifies the timestamp format (unix, unixms, unixmicro, rfc3339).
	TimeFormat string `env:"TIME_FORMAT, default=rfc3339"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `env:"ENABLED, default=false"`

	// Exporter specifies the trace exporter (otlp, stdout, none).
	Exporter string `env:"EXPORTER, default=none"`

	// Endpoint is the OTLP collector endpoint, e.g. localhost:4317.
	Endpoint string `env:"ENDPOINT"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `env:"SAMPLING_RATE, default=1.0"`

	// MaxExportBatchSize is the maximum batch size for export.
	MaxExportBatchSize int `env:"MAX_EXPORT_BATCH_SIZE, default=512"`

	// ExportTimeout is the timeout for trace export.
	ExportTimeout time.Duration `env:"EXPORT_TIMEOUT, default=30s"`

	// Headers are additional headers for the OTLP exporter.
	Headers map[string]string `env:"HEADERS"`

	// Insecure disables TLS for the exporter connection.
	Insecure bool `env:"INSECURE, default=true"`
}

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `env:"ENABLED, default=false"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	ListenAddress string `env:"LISTEN_ADDRESS, default=:9464"`

	// Path is the HTTP path for metrics.
	Path string `env:"PATH, default=/metrics"`

	// Namespace is the metrics namespace prefix.
	Namespace string `env:"NAMESPACE, default=froyo_git"`

	// DefaultHistogramBuckets are the latency buckets in seconds.
	DefaultHistogramBuckets []float64 `env:"HISTOGRAM_BUCKETS, default=0.005,0.01,0.05,0.1,0.25,0.5,1,2.5,5,10"`
}

// EventsConfig configures the event publishing system.
type EventsConfig struct {
	// Enabled controls whether event publishing is active.
	Enabled bool `env:"ENABLED, default=true"`

	// BufferSize is the size of the event buffer.
	BufferSize int `env:"BUFFER_SIZE, default=256"`

	// FlushInterval is how often buffered events are delivered.
	FlushInterval time.Duration `env:"FLUSH_INTERVAL, default=1s"`

	// MaxBatchSize is the maximum number of events delivered in one batch.
	MaxBatchSize int `env:"MAX_BATCH_SIZE, default=50"`

	// EnableAsync enables asynchronous event delivery.
	EnableAsync bool `env:"ASYNC, default=false"`
}

// Load reads the configuration through lookuper, with every key prefixed by
// EnvPrefix. Unset keys take their tag defaults.
func Load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	}); err != nil {
		return nil, fmt.Errorf("failed to load telemetry configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration produced by an empty environment.
func DefaultConfig() *Config {
	cfg, err := Load(context.Background(), envconfig.MapLookuper(nil))
	if err != nil {
		panic(err)
	}
	return cfg
}

// ProductionConfig returns a production-optimized telemetry configuration.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	cfg.Metrics.Enabled = true
	return cfg
}

// DevelopmentConfig returns a development-optimized telemetry configuration.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if c.ServiceVersion == "" {
		return fmt.Errorf("service version is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	validExporters := map[string]bool{
		"otlp": true, "stdout": true, "none": true,
	}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
