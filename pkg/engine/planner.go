package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/froyo-git/pkg/config"
)

// PlanOptions controls one planning pass.
type PlanOptions struct {
	// Scopes selects the operations to collect. Empty means all scopes.
	Scopes ScopeSet

	// DryRun marks the plan as review-only.
	DryRun bool
}

// Planner collects the operations a target tree requires and orders them.
// It never changes state.
type Planner struct {
	// registry supplies the statically discoverable operation types
	registry *OperationsRegistry

	// ec is handed to every option and operation type consulted
	ec *ExecContext
}

// NewPlanner creates a planner.
func NewPlanner(registry *OperationsRegistry, ec *ExecContext) *Planner {
	return &Planner{registry: registry, ec: ec}
}

// Plan walks root and its descendants depth-first in document order and
// returns the dependency-ordered batch of required operations. Any option
// or credential error aborts planning.
func (p *Planner) Plan(ctx context.Context, root Target, opts PlanOptions) (*Plan, error) {
	if root == nil {
		return nil, NewPermanentError("root target is nil", nil).WithCode(ErrCodeValidation)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = AllScopes()
	}

	c := &collector{
		scopes: scopes,
		types:  p.registry.Types(scopes),
		index:  make(map[opKey]int),
	}

	if err := p.walk(ctx, root, c); err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		Root:      root.Path(),
		CreatedAt: time.Now().UTC(),
		DryRun:    opts.DryRun,
		Scopes:    scopes,
	}

	ordered, graph, dot, err := c.order()
	if err != nil {
		return nil, err
	}
	plan.Operations = ordered
	plan.Graph = graph
	plan.DOT = dot

	p.ec.Log().NewComponentLogger("planner").
		WithField("plan_id", plan.ID).
		WithField("operations", len(ordered)).
		Debugf("plan computed for %s", plan.Root)
	if p.ec != nil {
		p.ec.Metrics.RecordPlan(opts.DryRun, len(ordered))
	}

	return plan, nil
}

// walk visits t, then its children.
func (p *Planner) walk(ctx context.Context, t Target, c *collector) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.collectTarget(ctx, t, c); err != nil {
		return err
	}

	for _, child := range t.Children() {
		if err := p.walk(ctx, child, c); err != nil {
			return err
		}
	}
	return nil
}

// collectTarget asks every option of t, and every registered operation type
// for every option of t, what is required.
func (p *Planner) collectTarget(ctx context.Context, t Target, c *collector) error {
	for _, top := range t.Options() {
		err := config.Walk(top, func(o config.Option) error {
			if src, ok := o.(OperationSource); ok {
				op, err := src.CreateRequiredOperation(ctx, p.ec, t, c.scopes)
				if err != nil {
					return fmt.Errorf("option %s on %s: %w", o.Path(), t.Path(), err)
				}
				c.add(op)
			}

			for _, ot := range c.types {
				if ot.ForOption == nil {
					continue
				}
				op, err := ot.ForOption(ctx, p.ec, t, o)
				if err != nil {
					return fmt.Errorf("%s for option %s on %s: %w", ot.Kind, o.Path(), t.Path(), err)
				}
				c.add(op)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type opKey struct {
	target string
	kind   OperationKind
}

// collector accumulates operations in collection order, one per target and
// kind.
type collector struct {
	scopes ScopeSet
	types  []OperationType
	ops    []Operation
	index  map[opKey]int
}

func (c *collector) add(op Operation) {
	if op == nil || !c.scopes.Has(op.Scope()) {
		return
	}
	key := opKey{target: op.Target().Path(), kind: op.Kind()}
	if _, dup := c.index[key]; dup {
		return
	}
	c.index[key] = len(c.ops)
	c.ops = append(c.ops, op)
}

// order builds the dependency graph and returns the operations in its
// topological order, with the graph rendered as DOT. Dependencies only link
// operations on the same target; a dependency on a kind that was not
// collected is ignored.
func (c *collector) order() ([]Operation, *ExecutionGraph, string, error) {
	nodes := make([]DAGNode, len(c.ops))
	byID := make(map[string]Operation, len(c.ops))

	for i, op := range c.ops {
		node := DAGNode{
			ID:    op.ID(),
			Label: fmt.Sprintf("%s\n%s", op.Kind(), op.Target().Path()),
			Group: op.Target().Path(),
		}
		for _, dep := range op.Dependencies() {
			j, ok := c.index[opKey{target: op.Target().Path(), kind: dep}]
			if !ok {
				continue
			}
			node.Dependencies = append(node.Dependencies, c.ops[j].ID())
		}
		nodes[i] = node
		byID[op.ID()] = op
	}

	builder := NewDAGBuilder()
	graph, err := builder.BuildGraph(nodes)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to order operations: %w", err)
	}
	if err := builder.ValidateGraph(graph); err != nil {
		return nil, nil, "", err
	}

	ordered := make([]Operation, 0, len(graph.Order))
	for _, id := range graph.Order {
		ordered = append(ordered, byID[id])
	}
	return ordered, graph, builder.ToDOT(), nil
}
