package engine

import (
	"fmt"
	"strings"
	"time"
)

// Scope is the coarse planning category of an operation.
type Scope string

const (
	// ScopeLocation covers the local filesystem and repository metadata.
	ScopeLocation Scope = "location"

	// ScopeContent covers file contents.
	ScopeContent Scope = "content"

	// ScopeRemote covers hosting platform state.
	ScopeRemote Scope = "remote"
)

// Validate checks if the scope is valid.
func (s Scope) Validate() error {
	switch s {
	case ScopeLocation, ScopeContent, ScopeRemote:
		return nil
	default:
		return fmt.Errorf("invalid scope: %s", s)
	}
}

// ScopeSet is the set of scopes a planning pass covers.
type ScopeSet []Scope

// AllScopes returns every scope, in planning order.
func AllScopes() ScopeSet {
	return ScopeSet{ScopeLocation, ScopeContent, ScopeRemote}
}

// ParseScopes parses a comma-separated scope list. An empty string means
// all scopes.
func ParseScopes(s string) (ScopeSet, error) {
	if strings.TrimSpace(s) == "" {
		return AllScopes(), nil
	}

	var set ScopeSet
	for _, part := range strings.Split(s, ",") {
		scope := Scope(strings.ToLower(strings.TrimSpace(part)))
		if err := scope.Validate(); err != nil {
			return nil, NewPermanentError("invalid scope list", err).WithCode(ErrCodeValidation)
		}
		if !set.Has(scope) {
			set = append(set, scope)
		}
	}
	return set, nil
}

// Has reports whether s is in the set.
func (ss ScopeSet) Has(s Scope) bool {
	for _, scope := range ss {
		if scope == s {
			return true
		}
	}
	return false
}

func (ss ScopeSet) String() string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// OperationKind is the stable name of an operation type, e.g. "git.init".
type OperationKind string

func (k OperationKind) String() string {
	return string(k)
}

// Plan is the ordered batch of operations computed for one target tree.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// Root is the path of the root target.
	Root string `json:"root"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// DryRun marks plans computed for review only. The executor refuses them.
	DryRun bool `json:"dry_run"`

	// Scopes lists the scopes the planning pass covered.
	Scopes ScopeSet `json:"scopes"`

	// Operations is the batch in execution order.
	Operations []Operation `json:"-"`

	// Graph is the dependency graph the order was computed from.
	Graph *ExecutionGraph `json:"graph,omitempty"`

	// DOT renders Graph for Graphviz, one cluster per target.
	DOT string `json:"-"`
}

// IsEmpty reports whether the plan has nothing to do.
func (p *Plan) IsEmpty() bool {
	return len(p.Operations) == 0
}

// PlanLine is the human-readable form of one planned operation.
type PlanLine struct {
	Seq         int           `json:"seq"`
	ID          string        `json:"id"`
	Kind        OperationKind `json:"kind"`
	Scope       Scope         `json:"scope"`
	Target      string        `json:"target"`
	Description string        `json:"description"`
	Before      string        `json:"before"`
	After       string        `json:"after"`
	DependsOn   []string      `json:"depends_on,omitempty"`
	Remotes     []RemoteRef   `json:"remotes,omitempty"`
}

// Describe lists the plan's operations without side effects.
func (p *Plan) Describe() []PlanLine {
	lines := make([]PlanLine, 0, len(p.Operations))
	for i, op := range p.Operations {
		line := PlanLine{
			Seq:         i + 1,
			ID:          op.ID(),
			Kind:        op.Kind(),
			Scope:       op.Scope(),
			Target:      op.Target().Path(),
			Description: op.Description(),
			Before:      op.DescribeBefore(),
			After:       op.DescribeAfter(),
		}
		if rd, ok := op.(RemoteDescriber); ok {
			line.Remotes = rd.Remotes()
		}
		if p.Graph != nil {
			if node, ok := p.Graph.Nodes[op.ID()]; ok {
				line.DependsOn = node.Dependencies
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// RunResult is the outcome of executing a plan.
type RunResult struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// PlanID is the executed plan.
	PlanID string `json:"plan_id"`

	// Status is the final run status.
	Status RunStatus `json:"status"`

	// Steps lists one entry per operation, in plan order.
	Steps []StepRecord `json:"steps"`

	// Err is the error that stopped the batch, if any.
	Err error `json:"-"`

	// UndoErrors collects errors raised while rolling back. They never
	// replace Err.
	UndoErrors []error `json:"-"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`
}

// Counts returns how many steps ended in each status.
func (r *RunResult) Counts() map[OperationStatus]int {
	counts := make(map[OperationStatus]int)
	for _, step := range r.Steps {
		counts[step.Status]++
	}
	return counts
}

// RunRecord is the journaled form of a run.
type RunRecord struct {
	ID             string     `json:"id"`
	PlanID         string     `json:"plan_id"`
	RootPath       string     `json:"root_path"`
	Status         RunStatus  `json:"status"`
	DryRun         bool       `json:"dry_run"`
	OperationCount int        `json:"operation_count"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// StepRecord is the journaled form of one operation within a run.
type StepRecord struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	Seq         int             `json:"seq"`
	Kind        OperationKind   `json:"kind"`
	Scope       Scope           `json:"scope"`
	TargetPath  string          `json:"target_path"`
	Description string          `json:"description"`
	Status      OperationStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}
