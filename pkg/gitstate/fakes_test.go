package gitstate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sethvargo/go-envconfig"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/filestate"
	"github.com/openfroyo/froyo-git/pkg/remote"
)

// platform is a stateful GitHub API fake. The authenticated user is
// octocat.
type platform struct {
	mu sync.Mutex

	repos        map[string]bool
	createStatus int
	requests     int
	calls        []string
}

func newPlatform(t *testing.T, existing ...string) (*platform, *httptest.Server) {
	t.Helper()
	p := &platform{repos: make(map[string]bool)}
	for _, r := range existing {
		p.repos[r] = true
	}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests++
	p.calls = append(p.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/user":
		_, _ = io.WriteString(w, `{"login":"octocat"}`)

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/repos/"):
		full := strings.TrimPrefix(path, "/repos/")
		if !p.repos[full] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Not Found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"full_name":"`+full+`"}`)

	case r.Method == http.MethodPost && (path == "/user/repos" || strings.HasPrefix(path, "/orgs/")):
		if p.createStatus != 0 {
			w.WriteHeader(p.createStatus)
			_, _ = io.WriteString(w, `{"message":"boom"}`)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)

		owner := "octocat"
		if path != "/user/repos" {
			owner = strings.TrimSuffix(strings.TrimPrefix(path, "/orgs/"), "/repos")
		}
		full := owner + "/" + body.Name
		p.repos[full] = true
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":`+strconv.Itoa(len(p.repos))+`,"full_name":"`+full+
			`","html_url":"https://github.com/`+full+`","clone_url":"https://github.com/`+full+`.git"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	}
}

func (p *platform) has(full string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repos[full]
}

func (p *platform) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// settingsFor points every gateway at srv.
func settingsFor(srv *httptest.Server) Settings {
	s := DefaultSettings()
	s.Gateways = func(o remote.Options) (remote.Gateway, error) {
		o.BaseURL = srv.URL
		return remote.New(o)
	}
	return s
}

type harness struct {
	t        *testing.T
	base     string
	settings Settings
	planner  *engine.Planner
	executor *engine.Executor
}

func newHarness(t *testing.T, s Settings) *harness {
	t.Helper()
	ec := &engine.ExecContext{}
	ops := engine.MustOperationsRegistry(filestate.Operations(), Operations(s))
	return &harness{
		t:        t,
		base:     t.TempDir(),
		settings: s,
		planner:  engine.NewPlanner(ops, ec),
		executor: engine.NewExecutor(ec),
	}
}

func (h *harness) tree(doc string, env map[string]string) *filestate.Item {
	h.t.Helper()
	d, err := config.NewLoader().Load(context.Background(), "test.yaml", config.FormatYAML, []byte(doc))
	if err != nil {
		h.t.Fatalf("Failed to load document: %v", err)
	}
	reg := config.MustOptionsRegistry(filestate.DefaultOptions(), Options(h.settings))
	root, err := filestate.Build(d.Root, h.base, reg, envconfig.MapLookuper(env))
	if err != nil {
		h.t.Fatalf("Failed to build tree: %v", err)
	}
	return root
}

func (h *harness) plan(root *filestate.Item, scopes ...engine.Scope) *engine.Plan {
	h.t.Helper()
	plan, err := h.planner.Plan(context.Background(), root, engine.PlanOptions{Scopes: scopes})
	if err != nil {
		h.t.Fatalf("Failed to plan: %v", err)
	}
	return plan
}

func (h *harness) apply(root *filestate.Item) *engine.RunResult {
	h.t.Helper()
	result, err := h.executor.Execute(context.Background(), h.plan(root))
	if err != nil {
		h.t.Fatalf("Failed to apply: %v", err)
	}
	return result
}

func (h *harness) path(elem ...string) string {
	return filepath.Join(append([]string{h.base}, elem...)...)
}

// kinds lists the operations of plan as "kind relpath".
func (h *harness) kinds(plan *engine.Plan) []string {
	out := make([]string, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		rel, _ := filepath.Rel(h.base, op.Target().Path())
		out = append(out, string(op.Kind())+" "+rel)
	}
	return out
}
