package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"

	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/policy"
)

const appDoc = "name: app\ngit: true\n"

const insecureDoc = `
name: app
git:
  remote:
    url: http://example.com/acme/app.git
`

// cli runs the root command against a temporary base directory and state
// database.
type cli struct {
	t    *testing.T
	base string
	db   string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "tree")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatal(err)
	}
	return &cli{t: t, base: base, db: filepath.Join(dir, "state", "state.db")}
}

func (c *cli) document(content string) string {
	c.t.Helper()
	path := filepath.Join(c.t.TempDir(), "workspace.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		c.t.Fatal(err)
	}
	return path
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--base", c.base, "--state-db", c.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    Settings
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: Settings{
				StateDB:             ".froyo-git/state.db",
				GitActiveDefault:    true,
				RemoteActiveDefault: true,
				HTTPTimeout:         30 * time.Second,
				StarlarkTimeout:     5 * time.Second,
				WatchDebounce:       500 * time.Millisecond,
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"FROYO_GIT_STATE_DB":              "/var/lib/froyo/state.db",
				"FROYO_GIT_REMOTE_ACTIVE_DEFAULT": "false",
				"FROYO_GIT_HTTP_TIMEOUT":          "5s",
				"FROYO_GIT_POLICY_PATHS":          "a.rego,policies",
			},
			want: Settings{
				StateDB:             "/var/lib/froyo/state.db",
				GitActiveDefault:    true,
				RemoteActiveDefault: false,
				HTTPTimeout:         5 * time.Second,
				StarlarkTimeout:     5 * time.Second,
				PolicyPaths:         []string{"a.rego", "policies"},
				WatchDebounce:       500 * time.Millisecond,
			},
		},
		{
			name:    "zero timeout",
			env:     map[string]string{"FROYO_GIT_HTTP_TIMEOUT": "0s"},
			wantErr: true,
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"FROYO_GIT_STARLARK_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadSettings(context.Background(), envconfig.MapLookuper(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("Settings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAcquireLock(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "state.db")

	release, err := acquireLock(db)
	if err != nil {
		t.Fatalf("acquireLock() error = %v", err)
	}
	if _, err := acquireLock(db); err == nil {
		t.Fatal("Expected second acquire to fail while the lock is held")
	}

	release()
	release, err = acquireLock(db)
	if err != nil {
		t.Fatalf("Expected acquire after release to succeed, got: %v", err)
	}
	release()
}

func TestValidate(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("", "validate", "-f", c.document(appDoc))
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "1 targets") {
		t.Errorf("Expected target count in output, got: %s", out)
	}

	if _, err := c.run("", "validate", "-f", c.document("name: app\nbogus: 1\n")); err == nil {
		t.Error("Expected validate to fail on an unknown key")
	}
}

func TestPlan_JSON(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("", "plan", "-f", c.document(insecureDoc), "--json")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}

	var got struct {
		Operations []engine.PlanLine    `json:"operations"`
		Policy     *policy.PolicyResult `json:"policy"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Failed to decode plan output: %v\n%s", err, out)
	}

	var kinds []string
	for _, line := range got.Operations {
		kinds = append(kinds, string(line.Kind))
	}
	want := []string{"filestate.directory_create", "git.init", "git.remote_add"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Plan mismatch (-want +got):\n%s", diff)
	}

	if got.Policy == nil || got.Policy.Allowed {
		t.Fatalf("Expected the plain http remote to be blocked, got %+v", got.Policy)
	}
	if len(got.Policy.Violations) != 1 || got.Policy.Violations[0].Policy != "remote-https-only" {
		t.Errorf("Unexpected violations: %+v", got.Policy.Violations)
	}

	if _, err := os.Stat(filepath.Join(c.base, "app")); !os.IsNotExist(err) {
		t.Error("Expected plan to leave the tree untouched")
	}
}

func TestPlan_MainBranch(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "no main_branch key",
			doc:  appDoc,
			want: []string{"filestate.directory_create", "git.init"},
		},
		{
			name: "explicit branch",
			doc:  "name: app\ngit:\n  main_branch: develop\n",
			want: []string{"filestate.directory_create", "git.init", "git.create_branch"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)
			out, err := c.run("", "plan", "-f", c.document(tt.doc), "--json")
			if err != nil {
				t.Fatalf("plan error = %v", err)
			}
			var got struct {
				Operations []engine.PlanLine `json:"operations"`
			}
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("Failed to decode plan output: %v\n%s", err, out)
			}
			var kinds []string
			for _, line := range got.Operations {
				kinds = append(kinds, string(line.Kind))
			}
			if diff := cmp.Diff(tt.want, kinds); diff != "" {
				t.Errorf("Plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlan_DOT(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("", "plan", "-f", c.document(appDoc), "--dot")
	if err != nil {
		t.Fatalf("plan error = %v", err)
	}
	if !strings.HasPrefix(out, "digraph ExecutionGraph {") {
		t.Fatalf("Expected DOT output, got: %s", out)
	}
	app := filepath.Join(c.base, "app")
	for _, want := range []string{"label=" + strconv.Quote(app), `label="git.init\n` + app, " -> "} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in DOT output, got: %s", want, out)
		}
	}
}

func TestPlan_InvalidScope(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("", "plan", "-f", c.document(appDoc), "--scope", "everything"); err == nil {
		t.Error("Expected an unknown scope to be rejected")
	}
}

func TestApply(t *testing.T) {
	c := newCLI(t)
	doc := c.document(appDoc)

	out, err := c.run("", "apply", "-f", doc, "--yes")
	if err != nil {
		t.Fatalf("apply error = %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(c.base, "app", ".git")); err != nil {
		t.Fatalf("Expected a repository after apply: %v", err)
	}

	out, err = c.run("", "apply", "-f", doc, "--yes")
	if err != nil {
		t.Fatalf("second apply error = %v", err)
	}
	if !strings.Contains(out, "No changes") {
		t.Errorf("Expected an empty plan on the second apply, got: %s", out)
	}

	out, err = c.run("", "history", "--json")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	var runs []engine.RunRecord
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("Failed to decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].Status != engine.RunStatusSucceeded || runs[0].OperationCount != 2 {
		t.Errorf("Unexpected run: %+v", runs[0])
	}

	out, err = c.run("", "history", "--run", runs[0].ID, "--events")
	if err != nil {
		t.Fatalf("history --run error = %v", err)
	}
	if !strings.Contains(out, "git.init") {
		t.Errorf("Expected steps in run details, got: %s", out)
	}

	if _, err := os.Stat(c.db + ".lock"); !os.IsNotExist(err) {
		t.Error("Expected the lock to be released")
	}
}

func TestApply_Declined(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("n\n", "apply", "-f", c.document(appDoc))
	if !errors.Is(err, errDeclined) {
		t.Fatalf("Expected errDeclined, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.base, "app")); !os.IsNotExist(err) {
		t.Error("Expected nothing to be created when declined")
	}
}

func TestApply_BlockedByPolicy(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "apply", "-f", c.document(insecureDoc), "--yes")
	if err == nil || !strings.Contains(err.Error(), "policy violations") {
		t.Fatalf("Expected policy block, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.base, "app")); !os.IsNotExist(err) {
		t.Error("Expected nothing to be created for a blocked plan")
	}
}

func TestApply_WatchRequiresYes(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("", "apply", "-f", c.document(appDoc), "--watch"); err == nil {
		t.Error("Expected --watch without --yes to fail")
	}
}

func TestPolicies(t *testing.T) {
	c := newCLI(t)
	dir := t.TempDir()
	rego := "# Deny nothing.\npackage custom.none\n\nimport rego.v1\n\ndeny contains msg if {\n\tfalse\n\tmsg := \"never\"\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "none.rego"), []byte(rego), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := c.run("", "policies", "--policy", dir, "--json")
	if err != nil {
		t.Fatalf("policies error = %v", err)
	}
	var got []policy.Policy
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Failed to decode policies: %v\n%s", err, out)
	}

	var names []string
	for _, p := range got {
		names = append(names, p.Name)
	}
	want := []string{"no-root-remote-create", "none", "remote-https-only"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Policies mismatch (-want +got):\n%s", diff)
	}
}
