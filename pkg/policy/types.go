package policy

import (
	"time"

	"github.com/openfroyo/froyo-git/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block apply.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations. They block apply.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity stops apply.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Its package must define a deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the binary.
	Builtin bool `json:"builtin"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Target is the path of the target the violation is about.
	Target string `json:"target,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// PolicyResult represents the result of policy evaluation.
type PolicyResult struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations in policy name order.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// Errors lists policies whose evaluation failed. They do not block.
	Errors []string `json:"errors,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that stop apply.
func (r *PolicyResult) Blocking() []PolicyViolation {
	var out []PolicyViolation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// PolicyInput is the document a policy's rules see as input.
type PolicyInput struct {
	Plan    PlanInput      `json:"plan"`
	Context *PolicyContext `json:"context"`
}

// PlanInput is the policy view of a plan.
type PlanInput struct {
	ID         string           `json:"id"`
	Root       string           `json:"root"`
	DryRun     bool             `json:"dry_run"`
	Operations []OperationInput `json:"operations"`
}

// OperationInput is the policy view of one planned operation.
type OperationInput struct {
	Seq         int                `json:"seq"`
	Kind        string             `json:"kind"`
	Scope       string             `json:"scope"`
	Target      string             `json:"target"`
	Description string             `json:"description"`
	Remotes     []engine.RemoteRef `json:"remotes"`
}

// PolicyContext provides context information for policy evaluation.
type PolicyContext struct {
	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// Operation is the command being run, "plan" or "apply".
	Operation string `json:"operation,omitempty"`

	// Metadata contains additional context metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewPolicyInput builds the input for plan, evaluated for command.
func NewPolicyInput(plan *engine.Plan, command string) *PolicyInput {
	in := &PolicyInput{
		Plan: PlanInput{
			ID:         plan.ID,
			Root:       plan.Root,
			DryRun:     plan.DryRun,
			Operations: make([]OperationInput, 0, len(plan.Operations)),
		},
		Context: &PolicyContext{
			Timestamp: time.Now().UTC(),
			Operation: command,
		},
	}
	for _, line := range plan.Describe() {
		remotes := line.Remotes
		if remotes == nil {
			remotes = []engine.RemoteRef{}
		}
		in.Plan.Operations = append(in.Plan.Operations, OperationInput{
			Seq:         line.Seq,
			Kind:        string(line.Kind),
			Scope:       string(line.Scope),
			Target:      line.Target,
			Description: line.Description,
			Remotes:     remotes,
		})
	}
	return in
}

// PolicyBundle represents a collection of related policies shipped as one
// JSON file.
type PolicyBundle struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Policies    []Policy `json:"policies"`
}
