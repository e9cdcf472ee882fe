package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/openfroyo/froyo-git/pkg/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantNil   bool
		wantClass ErrorClass
		wantCode  string
	}{
		{
			name:    "nil",
			err:     nil,
			wantNil: true,
		},
		{
			name:    "plain error",
			err:     errors.New("boom"),
			wantNil: true,
		},
		{
			name:      "wrapped engine error",
			err:       fmt.Errorf("apply: %w", NewConflictError("exists", nil).WithCode(ErrCodeAlreadyExists)),
			wantClass: ErrorClassConflict,
			wantCode:  ErrCodeAlreadyExists,
		},
		{
			name:      "missing env variable",
			err:       fmt.Errorf("plan: %w", &MissingEnvVariableError{EnvKey: "GITLAB_API_TOKEN"}),
			wantClass: ErrorClassPermanent,
			wantCode:  ErrCodeMissingEnvVariable,
		},
		{
			name: "type mismatch",
			err: &config.TypeMismatchError{
				Option:   "git.main_branch",
				Expected: config.Kinds(config.KindStr, config.KindList),
				Got:      "bool",
			},
			wantClass: ErrorClassPermanent,
			wantCode:  ErrCodeTypeMismatch,
		},
		{
			name:      "validation",
			err:       &config.ValidationError{Path: "git.remote.0.url", Message: "required"},
			wantClass: ErrorClassPermanent,
			wantCode:  ErrCodeValidation,
		},
		{
			name:      "deadline",
			err:       fmt.Errorf("request: %w", context.DeadlineExceeded),
			wantClass: ErrorClassTransient,
			wantCode:  ErrCodeCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected nil, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected classification, got nil")
			}
			if got.Class != tt.wantClass {
				t.Errorf("Expected class %s, got %s", tt.wantClass, got.Class)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, got.Code)
			}
		})
	}
}

func TestErrorCode_Default(t *testing.T) {
	if code := ErrorCode(errors.New("boom")); code != ErrCodeInternal {
		t.Errorf("Expected %s, got %s", ErrCodeInternal, code)
	}
}

func TestEngineError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewPermanentError("no such repo", nil).WithCode(ErrCodeNotFound))

	if !errors.Is(err, &EngineError{Class: ErrorClassPermanent, Code: ErrCodeNotFound}) {
		t.Error("Expected errors.Is to match class and code")
	}
	if errors.Is(err, &EngineError{Class: ErrorClassPermanent, Code: ErrCodeConflict}) {
		t.Error("Expected errors.Is not to match a different code")
	}
}

func TestEngineError_Error(t *testing.T) {
	err := NewPermanentError("remote failed", errors.New("status 500")).
		WithResource("/ws").
		WithOperation("git.remote_create")

	want := "[permanent] remote failed (resource=/ws, operation=git.remote_create): status 500"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestOperationStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to OperationStatus
		want     bool
	}{
		{OperationStatusPlanned, OperationStatusChecked, true},
		{OperationStatusPlanned, OperationStatusSkipped, true},
		{OperationStatusPlanned, OperationStatusApplied, false},
		{OperationStatusChecked, OperationStatusApplied, true},
		{OperationStatusChecked, OperationStatusFailed, true},
		{OperationStatusApplied, OperationStatusUndone, true},
		{OperationStatusUndone, OperationStatusUndone, false},
		{OperationStatusSkipped, OperationStatusUndone, false},
		{OperationStatusFailed, OperationStatusUndone, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBaseOperation_Transition(t *testing.T) {
	op := NewBaseOperation("git.init", ScopeLocation, nil, nil)

	if err := op.Transition(OperationStatusApplied); err == nil {
		t.Fatal("Expected error moving planned -> applied, got nil")
	}
	if op.Status() != OperationStatusPlanned {
		t.Errorf("Expected status to stay planned, got %s", op.Status())
	}

	for _, next := range []OperationStatus{OperationStatusChecked, OperationStatusApplied, OperationStatusUndone} {
		if err := op.Transition(next); err != nil {
			t.Fatalf("Expected transition to %s, got: %v", next, err)
		}
	}
	if !op.Status().IsTerminal() {
		t.Errorf("Expected %s to be terminal", op.Status())
	}
}

func TestOperationsRegistry(t *testing.T) {
	types := []OperationType{
		{Kind: kindInit, Scope: ScopeLocation},
		{Kind: kindRemoteCreate, Scope: ScopeRemote},
	}

	registry, err := NewOperationsRegistry(staticTypes{name: "git", types: types})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := registry.Types(ScopeSet{ScopeRemote}); len(got) != 1 || got[0].Kind != kindRemoteCreate {
		t.Errorf("Expected only the remote type, got %v", got)
	}
	if name, ok := registry.Provider(kindInit); !ok || name != "git" {
		t.Errorf("Expected provider git, got %q (%v)", name, ok)
	}

	_, err = NewOperationsRegistry(
		staticTypes{name: "git", types: types},
		staticTypes{name: "other", types: types[:1]},
	)
	if ErrorCode(err) != ErrCodeAlreadyExists {
		t.Errorf("Expected code %s, got %v", ErrCodeAlreadyExists, err)
	}

	_, err = NewOperationsRegistry(staticTypes{name: "bad", types: []OperationType{{Kind: "x", Scope: "nowhere"}}})
	if ErrorCode(err) != ErrCodeValidation {
		t.Errorf("Expected code %s, got %v", ErrCodeValidation, err)
	}
}
