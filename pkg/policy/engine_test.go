package policy

import (
	"context"
	"path"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
		if !p.Builtin {
			t.Errorf("Expected %s to be built-in", p.Name)
		}
	}
	want := []string{"no-root-remote-create", "remote-https-only"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("built-in policies mismatch (-want +got):\n%s", diff)
	}
}

func remoteOp(seq int, kind, target string, refs ...engine.RemoteRef) OperationInput {
	return OperationInput{Seq: seq, Kind: kind, Scope: "location", Target: target, Remotes: refs}
}

func TestEvaluate_BuiltinPolicies(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		operations    []OperationInput
		expectAllowed bool
		expectPolicy  []string
	}{
		{
			name: "https remote",
			operations: []OperationInput{
				remoteOp(1, "git.remote_add", "/src/app", engine.RemoteRef{Name: "origin", URL: "https://github.com/o/app.git"}),
			},
			expectAllowed: true,
		},
		{
			name: "http remote",
			operations: []OperationInput{
				remoteOp(1, "git.remote_add", "/src/app", engine.RemoteRef{Name: "origin", URL: "HTTP://git.local/o/app.git"}),
			},
			expectAllowed: false,
			expectPolicy:  []string{"remote-https-only"},
		},
		{
			name: "ssh remote",
			operations: []OperationInput{
				remoteOp(1, "git.remote_add", "/src/app", engine.RemoteRef{Name: "origin", URL: "git@github.com:o/app.git"}),
			},
			expectAllowed: true,
		},
		{
			name: "remote created for root",
			operations: []OperationInput{
				remoteOp(1, "git.remote_create", "/src", engine.RemoteRef{Name: "origin", URL: "https://github.com/o/src.git", Kind: "github", Create: true}),
			},
			expectAllowed: true,
			expectPolicy:  []string{"no-root-remote-create"},
		},
		{
			name: "remote created for child",
			operations: []OperationInput{
				remoteOp(1, "git.remote_create", "/src/app", engine.RemoteRef{Name: "origin", URL: "https://github.com/o/app.git", Kind: "github", Create: true}),
			},
			expectAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &PolicyInput{
				Plan:    PlanInput{ID: "plan-1", Root: "/src", Operations: tt.operations},
				Context: &PolicyContext{Operation: "apply"},
			}
			result, err := eng.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("Failed to evaluate: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v (violations: %v)", tt.expectAllowed, result.Allowed, result.Violations)
			}
			var got []string
			for _, v := range result.Violations {
				got = append(got, v.Policy)
			}
			if diff := cmp.Diff(tt.expectPolicy, got); diff != "" {
				t.Errorf("violations mismatch (-want +got):\n%s", diff)
			}
			if len(result.Errors) != 0 {
				t.Errorf("Expected no evaluation errors, got %v", result.Errors)
			}
		})
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	input := &PolicyInput{
		Plan: PlanInput{Root: "/src", Operations: []OperationInput{
			remoteOp(1, "git.remote_add", "/src/app", engine.RemoteRef{Name: "origin", URL: "http://git.local/app.git"}),
		}},
	}

	if err := eng.DisablePolicy("remote-https-only"); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}
	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Failed to evaluate: %v", err)
	}
	if !result.Allowed {
		t.Error("Expected plan to be allowed with the policy disabled")
	}

	if err := eng.EnablePolicy("remote-https-only"); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}
	result, _ = eng.Evaluate(context.Background(), input)
	if result.Allowed {
		t.Error("Expected plan to be blocked with the policy enabled")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestLoadPolicies_CustomSeverity(t *testing.T) {
	eng := newTestEngine(t)
	custom := Policy{
		Name:     "no-gitlab",
		Severity: SeverityWarning,
		Enabled:  true,
		Rego: `package custom.gitlab

deny contains v if {
	some op in input.plan.operations
	some r in op.remotes
	r.kind == "gitlab"
	v := {"message": "gitlab is not allowed", "severity": "critical", "target": op.target}
}
`,
	}
	if err := eng.ReplacePolicies(context.Background(), []Policy{custom}); err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}

	input := &PolicyInput{Plan: PlanInput{Root: "/src", Operations: []OperationInput{
		remoteOp(1, "git.remote_add", "/src/app", engine.RemoteRef{Name: "origin", URL: "https://gitlab.com/o/app.git", Kind: "gitlab"}),
	}}}
	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Failed to evaluate: %v", err)
	}
	blocking := result.Blocking()
	if len(blocking) != 1 || blocking[0].Severity != SeverityCritical || blocking[0].Target != "/src/app" {
		t.Errorf("Expected one critical violation on /src/app, got %v", blocking)
	}

	// Replacing drops custom policies and keeps built-ins.
	if err := eng.ReplacePolicies(context.Background(), nil); err != nil {
		t.Fatalf("Failed to replace policies: %v", err)
	}
	if _, err := eng.GetPolicy("no-gitlab"); err == nil {
		t.Error("Expected custom policy to be removed")
	}
	if _, err := eng.GetPolicy("remote-https-only"); err != nil {
		t.Errorf("Expected built-in policy to remain: %v", err)
	}
}

func TestLoadPolicies_Rejects(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name   string
		policy Policy
	}{
		{"syntax error", Policy{Name: "broken", Rego: "package broken\n\ndeny contains {"}},
		{"shadows built-in", Policy{Name: "remote-https-only", Rego: denyNothing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := eng.ReplacePolicies(context.Background(), []Policy{tt.policy}); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestReloadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.ReplacePolicies(context.Background(), []Policy{{Name: "extra", Rego: denyNothing, Enabled: true}}); err != nil {
		t.Fatalf("Failed to add policy: %v", err)
	}
	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if n := len(eng.ListPolicies()); n != len(GetBuiltinPolicies()) {
		t.Errorf("Expected %d policies after reload, got %d", len(GetBuiltinPolicies()), n)
	}
}

type stubTarget struct{ path string }

func (s stubTarget) Path() string                       { return s.path }
func (s stubTarget) Name() string                       { return path.Base(s.path) }
func (s stubTarget) Option(string) config.Option        { return nil }
func (s stubTarget) OptionValue(string) config.Value    { return config.Null() }
func (s stubTarget) Options() []config.Option           { return nil }
func (s stubTarget) Children() []engine.Target          { return nil }
func (s stubTarget) EnvParameter(string) (string, bool) { return "", false }
func (s stubTarget) Log(string)                         {}

type stubRemoteOp struct {
	engine.BaseOperation
	refs []engine.RemoteRef
}

func (op *stubRemoteOp) Applicable(context.Context, *engine.ExecContext) (bool, error) { return true, nil }
func (op *stubRemoteOp) Apply(context.Context, *engine.ExecContext) error                { return nil }
func (op *stubRemoteOp) Remotes() []engine.RemoteRef                                     { return op.refs }

func TestEvaluatePlan_ReadsOperationRemotes(t *testing.T) {
	eng := newTestEngine(t)
	op := &stubRemoteOp{
		BaseOperation: engine.NewBaseOperation("git.remote_add", engine.ScopeLocation, stubTarget{path: "/src/app"}, nil),
		refs:          []engine.RemoteRef{{Name: "origin", URL: "http://git.local/app.git"}},
	}
	plan := &engine.Plan{ID: "plan-1", Root: "/src", Operations: []engine.Operation{op}}

	result, err := eng.EvaluatePlan(context.Background(), plan, "apply")
	if err != nil {
		t.Fatalf("Failed to evaluate plan: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected plan to be blocked")
	}
	if result.Violations[0].Target != "/src/app" {
		t.Errorf("Expected target /src/app, got %s", result.Violations[0].Target)
	}
}
