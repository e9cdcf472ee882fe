package engine

import (
	"net/http"
	"time"

	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// DefaultHTTPTimeout bounds every hosting platform request.
const DefaultHTTPTimeout = 30 * time.Second

// ExecContext carries the collaborators the planner, the executor, and the
// operations use. Every field is optional.
type ExecContext struct {
	// Logger receives engine and operation logs.
	Logger *telemetry.Logger

	// HTTPClient builds the client used for hosting platform calls.
	HTTPClient func() *http.Client

	// Metrics, Tracer, and Events receive run telemetry.
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Events  *telemetry.EventPublisher

	// Journal records runs and steps.
	Journal Journal
}

// NewExecContext builds an ExecContext from a telemetry bundle.
func NewExecContext(tel *telemetry.Telemetry, timeout time.Duration) *ExecContext {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ec := &ExecContext{
		HTTPClient: func() *http.Client {
			return &http.Client{Timeout: timeout}
		},
	}
	if tel != nil {
		ec.Logger = tel.Logger
		ec.Metrics = tel.Metrics
		ec.Tracer = tel.Tracer
		ec.Events = tel.Events
	}
	return ec
}

// Log returns the logger, or a no-op logger when none is set.
func (ec *ExecContext) Log() *telemetry.Logger {
	if ec == nil || ec.Logger == nil {
		return telemetry.NewNopLogger()
	}
	return ec.Logger
}

// Client returns a new HTTP client from the factory, or a default client
// with DefaultHTTPTimeout.
func (ec *ExecContext) Client() *http.Client {
	if ec != nil && ec.HTTPClient != nil {
		if c := ec.HTTPClient(); c != nil {
			return c
		}
	}
	return &http.Client{Timeout: DefaultHTTPTimeout}
}
