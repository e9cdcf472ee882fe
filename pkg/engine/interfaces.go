package engine

import (
	"context"

	"github.com/openfroyo/froyo-git/pkg/config"
)

// Target is a node of the file tree being reconciled.
type Target interface {
	// Path returns the resolved filesystem path.
	Path() string

	// Name returns the last path element.
	Name() string

	// Option returns the top-level option registered under key, or nil.
	Option(key string) config.Option

	// OptionValue returns the value of the top-level option under key, or
	// a null value when the option is not set.
	OptionValue(key string) config.Value

	// Options returns the top-level options in document order.
	Options() []config.Option

	// Children returns child targets in document order.
	Children() []Target

	// EnvParameter looks key up in the target's env, then its ancestors',
	// then the suite fallback.
	EnvParameter(key string) (string, bool)

	// Log writes a message attributed to this target.
	Log(msg string)
}

// Applicable is implemented by operations whose necessity depends on live state.
type Applicable interface {
	// Applicable reports whether the operation still has work to do. It must
	// not change any state.
	Applicable(ctx context.Context, ec *ExecContext) (bool, error)
}

// HasDependencies is implemented by operations that must follow other kinds
// on the same target. A dependency on a kind that is not scheduled is
// satisfied.
type HasDependencies interface {
	Dependencies() []OperationKind
}

// Undoable is implemented by operations that can reverse their own Apply.
// Undo is a no-op unless this instance applied a change.
type Undoable interface {
	Undo(ctx context.Context, ec *ExecContext) error
}

// RemoteRef names a remote an operation touches.
type RemoteRef struct {
	Name   string `json:"name,omitempty"`
	URL    string `json:"url"`
	Kind   string `json:"kind,omitempty"`
	Create bool   `json:"create"`
}

// RemoteDescriber is implemented by operations that configure or create
// remotes. Plan output and the policy guard read it.
type RemoteDescriber interface {
	Remotes() []RemoteRef
}

// Operation is one required state change.
type Operation interface {
	Applicable
	HasDependencies
	Undoable

	// ID uniquely identifies the operation instance.
	ID() string

	// Kind returns the stable operation kind.
	Kind() OperationKind

	// Scope returns the planning pass the operation belongs to.
	Scope() Scope

	// Target returns the target the operation changes.
	Target() Target

	// Option returns the option the operation was derived from.
	Option() config.Option

	// Description, DescribeBefore, and DescribeAfter are for plan output.
	Description() string
	DescribeBefore() string
	DescribeAfter() string

	// Apply performs the change. A change already in place is success.
	Apply(ctx context.Context, ec *ExecContext) error

	// Status returns the lifecycle state.
	Status() OperationStatus

	// Transition moves the operation to next, rejecting invalid moves.
	Transition(next OperationStatus) error
}

// OperationSource is implemented by options that know which operation, if
// any, they currently require.
type OperationSource interface {
	// CreateRequiredOperation returns nil when nothing is required.
	CreateRequiredOperation(ctx context.Context, ec *ExecContext, t Target, scopes ScopeSet) (Operation, error)
}

// OperationType describes an operation kind for static discovery.
type OperationType struct {
	// Kind is the operation kind.
	Kind OperationKind

	// Scope is the planning pass the kind belongs to.
	Scope Scope

	// ForOption returns the operation required for o on t, or nil when o
	// is not an option this kind handles or nothing is required.
	ForOption func(ctx context.Context, ec *ExecContext, t Target, o config.Option) (Operation, error)
}

// OperationsProvider contributes operation types to the planner.
type OperationsProvider interface {
	Name() string
	Operations() []OperationType
}

// Journal records runs and their steps.
type Journal interface {
	RunStarted(ctx context.Context, run *RunRecord) error
	StepFinished(ctx context.Context, step *StepRecord) error
	RunFinished(ctx context.Context, run *RunRecord) error
}
