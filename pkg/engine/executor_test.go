package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// planOf builds an executable plan from ops in the given order.
func planOf(ops ...Operation) *Plan {
	return &Plan{ID: "plan-1", Root: "/ws", Operations: ops}
}

func TestExecutor_Execute_Validation(t *testing.T) {
	executor := NewExecutor(nil)

	if _, err := executor.Execute(context.Background(), nil); ErrorCode(err) != ErrCodeValidation {
		t.Errorf("Expected validation error for nil plan, got: %v", err)
	}

	dry := planOf()
	dry.DryRun = true
	result, err := executor.Execute(context.Background(), dry)
	if err == nil {
		t.Fatal("Expected error for dry-run plan, got nil")
	}
	if result != nil {
		t.Errorf("Expected no result for dry-run plan, got %+v", result)
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	rec := &recorder{}
	target := newFakeTarget("/ws")
	initOp := newFakeOp(kindInit, ScopeLocation, target, rec)
	branch := newFakeOp(kindBranch, ScopeLocation, target, rec, kindInit)
	remote := newFakeOp(kindRemoteAdd, ScopeLocation, target, rec, kindInit)
	remote.applicable = false

	journal := &memJournal{}
	result, err := NewExecutor(&ExecContext{Journal: journal}).
		Execute(context.Background(), planOf(initOp, branch, remote))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Status != RunStatusSucceeded {
		t.Errorf("Expected status %s, got %s", RunStatusSucceeded, result.Status)
	}

	want := []string{"apply test.init", "apply test.branch"}
	if diff := cmp.Diff(want, rec.lines()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}

	statuses := []OperationStatus{initOp.Status(), branch.Status(), remote.Status()}
	wantStatuses := []OperationStatus{OperationStatusApplied, OperationStatusApplied, OperationStatusSkipped}
	if diff := cmp.Diff(wantStatuses, statuses); diff != "" {
		t.Errorf("Statuses mismatch (-want +got):\n%s", diff)
	}

	counts := result.Counts()
	if counts[OperationStatusApplied] != 2 || counts[OperationStatusSkipped] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}

	if len(journal.runs) != 1 {
		t.Errorf("Expected 1 started run, got %d", len(journal.runs))
	}
	if len(journal.steps) != 3 {
		t.Errorf("Expected 3 journaled steps, got %d", len(journal.steps))
	}
	if journal.finished == nil || journal.finished.Status != RunStatusSucceeded {
		t.Errorf("Expected finished run with status %s, got %+v", RunStatusSucceeded, journal.finished)
	}
	if journal.finished != nil && journal.finished.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}
}

func TestExecutor_Execute_RollbackOnFailure(t *testing.T) {
	rec := &recorder{}
	target := newFakeTarget("/ws")
	mkdir := newFakeOp(kindMkdir, ScopeLocation, target, rec)
	initOp := newFakeOp(kindInit, ScopeLocation, target, rec, kindMkdir)
	branch := newFakeOp(kindBranch, ScopeLocation, target, rec, kindInit)
	branch.applyErr = errors.New("reference is locked")
	remote := newFakeOp(kindRemoteAdd, ScopeLocation, target, rec, kindInit)

	result, err := NewExecutor(nil).Execute(context.Background(), planOf(mkdir, initOp, branch, remote))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, branch.applyErr) {
		t.Errorf("Expected apply error in chain, got: %v", err)
	}

	if result.Status != RunStatusRolledBack {
		t.Errorf("Expected status %s, got %s", RunStatusRolledBack, result.Status)
	}

	want := []string{
		"apply test.mkdir",
		"apply test.init",
		"apply test.branch",
		"undo test.init",
		"undo test.mkdir",
	}
	if diff := cmp.Diff(want, rec.lines()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}

	if initOp.undos != 1 || mkdir.undos != 1 {
		t.Errorf("Expected each applied operation undone once, got init=%d mkdir=%d", initOp.undos, mkdir.undos)
	}
	if branch.undos != 0 {
		t.Errorf("Expected failed operation not undone, got %d", branch.undos)
	}

	wantStatuses := []OperationStatus{
		OperationStatusUndone, OperationStatusUndone, OperationStatusFailed, OperationStatusPlanned,
	}
	var statuses []OperationStatus
	for _, step := range result.Steps {
		statuses = append(statuses, step.Status)
	}
	if diff := cmp.Diff(wantStatuses, statuses); diff != "" {
		t.Errorf("Step statuses mismatch (-want +got):\n%s", diff)
	}
	if result.Steps[2].Error == "" {
		t.Error("Expected failed step to carry its error")
	}
}

func TestExecutor_Execute_RollbackAfterTransitionFailure(t *testing.T) {
	rec := &recorder{}
	target := newFakeTarget("/ws")
	initOp := newFakeOp(kindInit, ScopeLocation, target, rec)
	branch := newFakeOp(kindBranch, ScopeLocation, target, rec, kindInit)
	// Apply succeeds but leaves the operation in a state that cannot move
	// to applied.
	branch.onApply = func() { _ = branch.Transition(OperationStatusFailed) }

	result, err := NewExecutor(nil).Execute(context.Background(), planOf(initOp, branch))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if result.Status != RunStatusRolledBack {
		t.Errorf("Expected status %s, got %s", RunStatusRolledBack, result.Status)
	}

	want := []string{
		"apply test.init",
		"apply test.branch",
		"undo test.branch",
		"undo test.init",
	}
	if diff := cmp.Diff(want, rec.lines()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
	if branch.undos != 1 {
		t.Errorf("Expected the applied change undone once, got %d", branch.undos)
	}
}

func TestExecutor_Execute_UndoErrorsAreBestEffort(t *testing.T) {
	rec := &recorder{}
	target := newFakeTarget("/ws")
	first := newFakeOp(kindMkdir, ScopeLocation, target, rec)
	second := newFakeOp(kindInit, ScopeLocation, target, rec)
	second.undoErr = errors.New("permission denied")
	third := newFakeOp(kindBranch, ScopeLocation, target, rec)
	third.applyErr = errors.New("boom")

	result, err := NewExecutor(nil).Execute(context.Background(), planOf(first, second, third))
	if !errors.Is(err, third.applyErr) {
		t.Fatalf("Expected the apply error to be returned, got: %v", err)
	}

	if result.Status != RunStatusFailed {
		t.Errorf("Expected status %s, got %s", RunStatusFailed, result.Status)
	}
	if len(result.UndoErrors) != 1 {
		t.Fatalf("Expected 1 undo error, got %d", len(result.UndoErrors))
	}
	if !errors.Is(result.UndoErrors[0], second.undoErr) {
		t.Errorf("Expected undo error in chain, got: %v", result.UndoErrors[0])
	}
	if first.undos != 1 {
		t.Errorf("Expected first operation undone despite earlier undo failure, got %d", first.undos)
	}
}

func TestExecutor_Execute_ApplicabilityError(t *testing.T) {
	target := newFakeTarget("/ws")
	op := newFakeOp(kindInit, ScopeLocation, target, nil)
	op.checkErr = NewPermanentError("repository unreadable", nil)

	result, err := NewExecutor(nil).Execute(context.Background(), planOf(op))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if op.Status() != OperationStatusFailed {
		t.Errorf("Expected status %s, got %s", OperationStatusFailed, op.Status())
	}
	if result.Status != RunStatusRolledBack {
		t.Errorf("Expected status %s, got %s", RunStatusRolledBack, result.Status)
	}
}

func TestExecutor_Execute_Cancelled(t *testing.T) {
	rec := &recorder{}
	target := newFakeTarget("/ws")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initOp := newFakeOp(kindInit, ScopeLocation, target, rec)
	initOp.onApply = cancel
	branch := newFakeOp(kindBranch, ScopeLocation, target, rec, kindInit)

	result, err := NewExecutor(nil).Execute(ctx, planOf(initOp, branch))
	if ErrorCode(err) != ErrCodeCancelled {
		t.Fatalf("Expected code %s, got %s (%v)", ErrCodeCancelled, ErrorCode(err), err)
	}
	if result.Status != RunStatusCancelled {
		t.Errorf("Expected status %s, got %s", RunStatusCancelled, result.Status)
	}

	want := []string{"apply test.init", "undo test.init"}
	if diff := cmp.Diff(want, rec.lines()); diff != "" {
		t.Errorf("Calls mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_Execute_JournalErrorsIgnored(t *testing.T) {
	target := newFakeTarget("/ws")
	journal := &memJournal{err: errors.New("database is locked")}

	result, err := NewExecutor(&ExecContext{Journal: journal}).
		Execute(context.Background(), planOf(newFakeOp(kindInit, ScopeLocation, target, nil)))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Status != RunStatusSucceeded {
		t.Errorf("Expected status %s, got %s", RunStatusSucceeded, result.Status)
	}
}

func TestExecutor_Execute_PublishesEvents(t *testing.T) {
	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}

	var mu sync.Mutex
	var types []string
	events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	}, nil)

	target := newFakeTarget("/ws")
	initOp := newFakeOp(kindInit, ScopeLocation, target, nil)
	branch := newFakeOp(kindBranch, ScopeLocation, target, nil)
	branch.applyErr = errors.New("boom")

	_, _ = NewExecutor(&ExecContext{Events: events}).Execute(context.Background(), planOf(initOp, branch))

	want := []string{
		telemetry.EventTypeRunStarted,
		telemetry.EventTypeOperationApplied,
		telemetry.EventTypeOperationFailed,
		telemetry.EventTypeOperationUndone,
		telemetry.EventTypeRunFailed,
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("Event types mismatch (-want +got):\n%s", diff)
	}
}
