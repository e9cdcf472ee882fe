package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openfroyo/froyo-git/pkg/config"
)

// BaseOperation carries the fields shared by every operation. Concrete
// operations embed it and override Applicable, Apply, and, when they can
// reverse themselves, Undo and Dependencies.
type BaseOperation struct {
	id          string
	kind        OperationKind
	scope       Scope
	target      Target
	option      config.Option
	description string
	before      string
	after       string
	status      OperationStatus
}

// NewBaseOperation creates a planned operation of kind on t.
func NewBaseOperation(kind OperationKind, scope Scope, t Target, o config.Option) BaseOperation {
	return BaseOperation{
		id:     uuid.New().String(),
		kind:   kind,
		scope:  scope,
		target: t,
		option: o,
		status: OperationStatusPlanned,
	}
}

// SetDescriptions sets the plan output strings.
func (b *BaseOperation) SetDescriptions(description, before, after string) {
	b.description = description
	b.before = before
	b.after = after
}

func (b *BaseOperation) ID() string             { return b.id }
func (b *BaseOperation) Kind() OperationKind    { return b.kind }
func (b *BaseOperation) Scope() Scope           { return b.scope }
func (b *BaseOperation) Target() Target         { return b.target }
func (b *BaseOperation) Option() config.Option  { return b.option }
func (b *BaseOperation) Description() string    { return b.description }
func (b *BaseOperation) DescribeBefore() string { return b.before }
func (b *BaseOperation) DescribeAfter() string  { return b.after }

// Dependencies returns no dependencies.
func (b *BaseOperation) Dependencies() []OperationKind { return nil }

// Undo does nothing.
func (b *BaseOperation) Undo(context.Context, *ExecContext) error { return nil }

// Status returns the lifecycle state.
func (b *BaseOperation) Status() OperationStatus {
	return b.status
}

// Transition moves the operation to next.
func (b *BaseOperation) Transition(next OperationStatus) error {
	if !b.status.CanTransition(next) {
		return NewPermanentError(
			fmt.Sprintf("invalid operation transition %s -> %s", b.status, next), nil,
		).WithCode(ErrCodeInternal).WithOperation(string(b.kind))
	}
	b.status = next
	return nil
}
