package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the overall status of a batch execution run.
type RunStatus string

const (
	// RunStatusPending indicates the run is created but not yet started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every operation was applied or skipped.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates an operation failed and rollback did not complete.
	RunStatusFailed RunStatus = "failed"

	// RunStatusRolledBack indicates an operation failed and every applied
	// operation was undone.
	RunStatusRolledBack RunStatus = "rolled_back"

	// RunStatusCancelled indicates the context was cancelled between operations.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed ||
		s == RunStatusRolledBack || s == RunStatusCancelled
}

// IsActive returns true if the run is currently active (pending or running).
func (s RunStatus) IsActive() bool {
	return s == RunStatusPending || s == RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded,
		RunStatusFailed, RunStatusRolledBack, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}

// OperationStatus is the lifecycle state of one operation instance.
type OperationStatus string

const (
	// OperationStatusPlanned is entered at construction.
	OperationStatusPlanned OperationStatus = "planned"

	// OperationStatusChecked means applicability was re-checked right before apply.
	OperationStatusChecked OperationStatus = "checked"

	// OperationStatusApplied means Apply returned without error.
	OperationStatusApplied OperationStatus = "applied"

	// OperationStatusUndone means Undo ran during rollback.
	OperationStatusUndone OperationStatus = "undone"

	// OperationStatusSkipped means the re-check found nothing left to do.
	OperationStatusSkipped OperationStatus = "skipped"

	// OperationStatusFailed means Apply returned an error.
	OperationStatusFailed OperationStatus = "failed"
)

var operationTransitions = map[OperationStatus][]OperationStatus{
	OperationStatusPlanned: {OperationStatusChecked, OperationStatusSkipped, OperationStatusFailed},
	OperationStatusChecked: {OperationStatusApplied, OperationStatusFailed},
	OperationStatusApplied: {OperationStatusUndone},
}

// CanTransition reports whether moving from s to next is allowed.
func (s OperationStatus) CanTransition(next OperationStatus) bool {
	for _, allowed := range operationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transition is possible.
func (s OperationStatus) IsTerminal() bool {
	return len(operationTransitions[s]) == 0
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case OperationStatusPlanned, OperationStatusChecked, OperationStatusApplied,
		OperationStatusUndone, OperationStatusSkipped, OperationStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}
