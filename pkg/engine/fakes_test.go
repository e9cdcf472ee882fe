package engine

import (
	"context"
	"path"

	"github.com/openfroyo/froyo-git/pkg/config"
)

// fakeTarget is an in-memory Target.
type fakeTarget struct {
	path     string
	options  []config.Option
	children []Target
	env      map[string]string
	logs     []string
}

func newFakeTarget(p string, options ...config.Option) *fakeTarget {
	return &fakeTarget{path: p, options: options}
}

func (t *fakeTarget) Path() string { return t.path }
func (t *fakeTarget) Name() string { return path.Base(t.path) }

func (t *fakeTarget) Option(key string) config.Option {
	for _, o := range t.options {
		if o.Name() == key {
			return o
		}
	}
	return nil
}

func (t *fakeTarget) OptionValue(key string) config.Value {
	if o := t.Option(key); o != nil {
		return o.Value()
	}
	return config.Null()
}

func (t *fakeTarget) Options() []config.Option { return t.options }
func (t *fakeTarget) Children() []Target       { return t.children }

func (t *fakeTarget) EnvParameter(key string) (string, bool) {
	v, ok := t.env[key]
	return v, ok
}

func (t *fakeTarget) Log(msg string) { t.logs = append(t.logs, msg) }

// sourceOption is a leaf option that requires the operations returned by
// require.
type sourceOption struct {
	config.BaseOption
	require func(t Target) (Operation, error)
}

func newSourceOption(name string, require func(t Target) (Operation, error)) *sourceOption {
	return &sourceOption{
		BaseOption: config.NewBaseOption(name, nil, config.Kinds(config.KindBool)),
		require:    require,
	}
}

func (o *sourceOption) CreateRequiredOperation(_ context.Context, _ *ExecContext, t Target, _ ScopeSet) (Operation, error) {
	return o.require(t)
}

// call is one side effect seen by a recorder.
type call struct {
	op   string
	kind OperationKind
}

// recorder collects the side effects of fake operations in call order.
type recorder struct {
	calls []call
}

func (r *recorder) add(op string, kind OperationKind) {
	r.calls = append(r.calls, call{op: op, kind: kind})
}

// lines renders the calls as "apply git.init".
func (r *recorder) lines() []string {
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.op + " " + string(c.kind)
	}
	return out
}

// fakeOp is a scripted operation.
type fakeOp struct {
	BaseOperation
	deps       []OperationKind
	applicable bool
	checkErr   error
	applyErr   error
	undoErr    error
	rec        *recorder

	// onApply runs before Apply returns, e.g. to cancel a context.
	onApply func()

	applied bool
	undos   int
}

func newFakeOp(kind OperationKind, scope Scope, t Target, rec *recorder, deps ...OperationKind) *fakeOp {
	op := &fakeOp{
		BaseOperation: NewBaseOperation(kind, scope, t, nil),
		deps:          deps,
		applicable:    true,
		rec:           rec,
	}
	op.SetDescriptions("run "+string(kind), string(kind)+" pending", string(kind)+" done")
	return op
}

func (o *fakeOp) Dependencies() []OperationKind { return o.deps }

func (o *fakeOp) Applicable(context.Context, *ExecContext) (bool, error) {
	return o.applicable, o.checkErr
}

func (o *fakeOp) Apply(context.Context, *ExecContext) error {
	if o.rec != nil {
		o.rec.add("apply", o.Kind())
	}
	if o.onApply != nil {
		o.onApply()
	}
	if o.applyErr != nil {
		return o.applyErr
	}
	o.applied = true
	return nil
}

func (o *fakeOp) Undo(context.Context, *ExecContext) error {
	if !o.applied {
		return nil
	}
	o.undos++
	if o.rec != nil {
		o.rec.add("undo", o.Kind())
	}
	return o.undoErr
}

// memJournal is an in-memory Journal.
type memJournal struct {
	runs     []RunRecord
	steps    []StepRecord
	finished *RunRecord
	err      error
}

func (j *memJournal) RunStarted(_ context.Context, run *RunRecord) error {
	j.runs = append(j.runs, *run)
	return j.err
}

func (j *memJournal) StepFinished(_ context.Context, step *StepRecord) error {
	j.steps = append(j.steps, *step)
	return j.err
}

func (j *memJournal) RunFinished(_ context.Context, run *RunRecord) error {
	r := *run
	j.finished = &r
	return j.err
}

// staticTypes registers fixed operation types.
type staticTypes struct {
	name  string
	types []OperationType
}

func (p staticTypes) Name() string                { return p.name }
func (p staticTypes) Operations() []OperationType { return p.types }
