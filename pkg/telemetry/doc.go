// Package telemetry provides observability for froyo-git plan runs.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus), and a run timeline event publisher.
//
// # Configuration
//
// Configuration is read from the environment with go-envconfig. Every key
// carries the FROYO_GIT_ prefix:
//
//	FROYO_GIT_LOG_LEVEL=debug
//	FROYO_GIT_LOG_FORMAT=json
//	FROYO_GIT_TRACE_ENABLED=true
//	FROYO_GIT_TRACE_EXPORTER=otlp
//	FROYO_GIT_TRACE_ENDPOINT=otel-collector:4317
//	FROYO_GIT_METRICS_ENABLED=true
//	FROYO_GIT_EVENTS_ASYNC=false
//
// Load the configuration and build the bundle at startup:
//
//	cfg, err := telemetry.Load(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tracing and metrics are off unless enabled. Disabled components are still
// safe to call; they record nothing.
//
// # Logging
//
//	logger := tel.Logger.NewComponentLogger("executor")
//	logger.WithRunID(runID).WithOperation(op.ID(), op.Kind()).Info("applied")
//
// # Spans
//
// The executor opens one span per run and one per operation. Hosting
// gateways wrap each API call with InstrumentGatewayCall, which also feeds
// the gateway metrics:
//
//	err := telemetry.InstrumentGatewayCall(ctx, "github", "create_repository",
//	    func(ctx context.Context) error {
//	        _, _, err := client.Repositories.Create(ctx, "", repo)
//	        return err
//	    })
//
// # Metrics
//
// Exposed metrics (namespace froyo_git by default):
//
//   - runs_started_total{mode}
//   - runs_completed_total{status}
//   - run_duration_seconds{status}
//   - active_runs
//   - plan_operations{mode}
//   - operations_total{kind,status}
//   - operation_duration_seconds{kind}
//   - undo_failures_total{kind}
//   - gateway_calls_total{gateway,call}
//   - gateway_call_duration_seconds{gateway,call}
//   - gateway_errors_total{gateway,call}
//   - errors_by_class_total{class}
//   - errors_by_code_total{code}
//
// # Events
//
// The executor publishes run.* and operation.* events. Subscribers receive
// them synchronously unless FROYO_GIT_EVENTS_ASYNC is set:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Target)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Never log credentials. Gateway tokens are resolved per target and must
// not appear in log fields or event data.
package telemetry
