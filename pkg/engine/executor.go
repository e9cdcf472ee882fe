package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// Executor applies a plan's operations one at a time, in plan order, and
// rolls back on failure.
type Executor struct {
	ec *ExecContext
}

// NewExecutor creates an executor.
func NewExecutor(ec *ExecContext) *Executor {
	if ec == nil {
		ec = &ExecContext{}
	}
	return &Executor{ec: ec}
}

// run is the mutable state of one Execute call.
type run struct {
	result  *RunResult
	record  *RunRecord
	plan    *Plan
	applied []int
	logger  *telemetry.Logger
}

// Execute runs plan. Each operation re-checks applicability right before it
// is applied. When an operation fails, or ctx is cancelled between
// operations, the operations already applied are undone in reverse order.
// The returned error is the one that stopped the batch; undo errors are
// reported in RunResult.UndoErrors only.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*RunResult, error) {
	if plan == nil {
		return nil, NewPermanentError("plan is nil", nil).WithCode(ErrCodeValidation)
	}
	if plan.DryRun {
		return nil, NewPermanentError("dry-run plans cannot be executed", nil).
			WithCode(ErrCodeValidation).
			WithResource(plan.Root)
	}

	startedAt := time.Now().UTC()
	runID := uuid.New().String()

	r := &run{
		plan: plan,
		result: &RunResult{
			RunID:     runID,
			PlanID:    plan.ID,
			Status:    RunStatusRunning,
			Steps:     make([]StepRecord, len(plan.Operations)),
			StartedAt: startedAt,
		},
		record: &RunRecord{
			ID:             runID,
			PlanID:         plan.ID,
			RootPath:       plan.Root,
			Status:         RunStatusRunning,
			OperationCount: len(plan.Operations),
			StartedAt:      startedAt,
		},
		logger: e.ec.Log().NewComponentLogger("executor").WithRunID(runID),
	}

	for i, op := range plan.Operations {
		r.result.Steps[i] = StepRecord{
			ID:          op.ID(),
			RunID:       runID,
			Seq:         i + 1,
			Kind:        op.Kind(),
			Scope:       op.Scope(),
			TargetPath:  op.Target().Path(),
			Description: op.Description(),
			Status:      op.Status(),
		}
	}

	ctx, span := e.ec.Tracer.StartRunSpan(ctx, runID, plan.ID, false)
	defer span.End()

	e.ec.Metrics.RecordRunStarted(false)
	_ = e.ec.Events.PublishRunStarted(runID, plan.ID, len(plan.Operations))
	e.journal(ctx, r, func(ctx context.Context, j Journal) error { return j.RunStarted(ctx, r.record) })

	r.logger.Infof("executing %d operations for %s", len(plan.Operations), plan.Root)

	for i, op := range plan.Operations {
		if err := ctx.Err(); err != nil {
			r.result.Err = NewTransientError("execution cancelled", err).WithCode(ErrCodeCancelled)
			e.rollback(ctx, r)
			r.result.Status = RunStatusCancelled
			break
		}

		if err := e.step(ctx, r, i, op); err != nil {
			r.result.Err = err
			e.rollback(ctx, r)
			if len(r.result.UndoErrors) == 0 {
				r.result.Status = RunStatusRolledBack
			} else {
				r.result.Status = RunStatusFailed
			}
			break
		}
	}

	if r.result.Err == nil {
		r.result.Status = RunStatusSucceeded
	}
	r.result.Duration = time.Since(startedAt)

	e.finish(ctx, r, span)
	return r.result, r.result.Err
}

// step re-checks and applies the operation at index i.
func (e *Executor) step(ctx context.Context, r *run, i int, op Operation) error {
	timer := telemetry.NewTimer()
	rec := &r.result.Steps[i]
	rec.StartedAt = time.Now().UTC()

	logger := r.logger.WithOperation(op.ID(), string(op.Kind())).WithTarget(op.Target().Path())

	ctx, span := e.ec.Tracer.StartOperationSpan(ctx, op.ID(), string(op.Kind()), op.Target().Path())
	defer span.End()

	fail := func(err error) error {
		if terr := op.Transition(OperationStatusFailed); terr != nil {
			logger.WithError(terr).Warn("failed to mark operation failed")
		}
		e.recordError(err)
		telemetry.RecordError(span, err)
		logger.WithError(err).Errorf("%s failed", op.Description())
		e.finishStep(ctx, r, rec, op, telemetry.EventTypeOperationFailed, timer.Duration(), err)
		return fmt.Errorf("%s on %s: %w", op.Kind(), op.Target().Path(), err)
	}

	ok, err := op.Applicable(ctx, e.ec)
	if err != nil {
		return fail(err)
	}
	if !ok {
		if err := op.Transition(OperationStatusSkipped); err != nil {
			return fail(err)
		}
		telemetry.AddOperationEvent(span, op.ID(), string(OperationStatusSkipped))
		logger.Debugf("%s no longer required", op.Description())
		e.finishStep(ctx, r, rec, op, telemetry.EventTypeOperationSkipped, timer.Duration(), nil)
		return nil
	}

	if err := op.Transition(OperationStatusChecked); err != nil {
		return fail(err)
	}

	if err := op.Apply(ctx, e.ec); err != nil {
		return fail(err)
	}
	// Recorded before the transition so rollback undoes it either way.
	r.applied = append(r.applied, i)

	if err := op.Transition(OperationStatusApplied); err != nil {
		return fail(err)
	}

	telemetry.RecordSuccess(span)
	logger.Info(op.Description())
	e.finishStep(ctx, r, rec, op, telemetry.EventTypeOperationApplied, timer.Duration(), nil)
	return nil
}

// rollback undoes every applied operation in reverse order. A failing undo
// does not stop the others.
func (e *Executor) rollback(ctx context.Context, r *run) {
	if len(r.applied) == 0 {
		return
	}

	// Undo runs even when the batch was stopped by cancellation.
	ctx = context.WithoutCancel(ctx)
	r.logger.Warnf("rolling back %d applied operations", len(r.applied))

	for k := len(r.applied) - 1; k >= 0; k-- {
		i := r.applied[k]
		op := r.plan.Operations[i]
		rec := &r.result.Steps[i]
		timer := telemetry.NewTimer()
		logger := r.logger.WithOperation(op.ID(), string(op.Kind())).WithTarget(op.Target().Path())

		if err := op.Undo(ctx, e.ec); err != nil {
			undoErr := fmt.Errorf("undo %s on %s: %w", op.Kind(), op.Target().Path(), err)
			r.result.UndoErrors = append(r.result.UndoErrors, undoErr)
			e.ec.Metrics.RecordUndoFailure(string(op.Kind()))
			logger.WithError(err).Error("undo failed")
			_ = e.ec.Events.PublishOperation(telemetry.EventTypeOperationUndoError, e.ref(r, op), timer.Duration(), err)
			continue
		}

		if err := op.Transition(OperationStatusUndone); err != nil {
			logger.WithError(err).Warn("failed to mark operation undone")
			continue
		}
		logger.Infof("undone: %s", op.Description())
		e.finishStep(ctx, r, rec, op, telemetry.EventTypeOperationUndone, timer.Duration(), nil)
	}
}

// finishStep records the operation's current status everywhere it is
// observed.
func (e *Executor) finishStep(ctx context.Context, r *run, rec *StepRecord, op Operation, eventType string, d time.Duration, err error) {
	rec.Status = op.Status()
	rec.CompletedAt = time.Now().UTC()
	if err != nil {
		rec.Error = err.Error()
	}

	e.ec.Metrics.RecordOperation(string(op.Kind()), string(rec.Status), d)
	_ = e.ec.Events.PublishOperation(eventType, e.ref(r, op), d, err)

	step := *rec
	e.journal(ctx, r, func(ctx context.Context, j Journal) error { return j.StepFinished(ctx, &step) })
}

func (e *Executor) finish(ctx context.Context, r *run, span trace.Span) {
	status := string(r.result.Status)
	completedAt := time.Now().UTC()

	r.record.Status = r.result.Status
	r.record.CompletedAt = &completedAt
	if r.result.Err != nil {
		r.record.Error = r.result.Err.Error()
	}

	e.ec.Metrics.RecordRunCompleted(status, r.result.Duration)
	telemetry.SetAttributes(span, telemetry.AttrRunStatus.String(status))

	switch r.result.Status {
	case RunStatusSucceeded:
		telemetry.RecordSuccess(span)
		_ = e.ec.Events.PublishRunCompleted(r.result.RunID, status, r.result.Duration)
		counts := r.result.Counts()
		r.logger.Infof("run succeeded: %d applied, %d skipped",
			counts[OperationStatusApplied], counts[OperationStatusSkipped])
	default:
		telemetry.RecordError(span, r.result.Err)
		_ = e.ec.Events.PublishRunFailed(r.result.RunID, status, r.record.Error)
		r.logger.WithError(r.result.Err).Errorf("run %s", status)
	}

	e.journal(context.WithoutCancel(ctx), r, func(ctx context.Context, j Journal) error {
		return j.RunFinished(ctx, r.record)
	})
}

func (e *Executor) ref(r *run, op Operation) telemetry.OperationRef {
	return telemetry.OperationRef{
		RunID:  r.result.RunID,
		ID:     op.ID(),
		Kind:   string(op.Kind()),
		Target: op.Target().Path(),
	}
}

func (e *Executor) recordError(err error) {
	if ee := Classify(err); ee != nil {
		e.ec.Metrics.RecordError(string(ee.Class), ee.Code)
		return
	}
	e.ec.Metrics.RecordError(string(ErrorClassPermanent), ErrCodeInternal)
}

// journal calls fn when a journal is configured. Journal failures are logged
// and never change the outcome of the run.
func (e *Executor) journal(ctx context.Context, r *run, fn func(context.Context, Journal) error) {
	if e.ec.Journal == nil {
		return
	}
	if err := fn(ctx, e.ec.Journal); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.WithError(err).Warn("failed to write run journal")
	}
}
