package gitstate

import (
	"context"
	"errors"
	"testing"

	"github.com/openfroyo/froyo-git/pkg/engine"
)

func TestCheckRemotes(t *testing.T) {
	p, srv := newPlatform(t)
	h := newHarness(t, settingsFor(srv))

	root := h.tree(`
name: workspace
children:
  - name: app
    env:
      GITHUB_API_TOKEN: tok
    git:
      remote:
        - url: https://github.com/acme/app.git
        - name: mirror
          url: https://git.example.com/acme/app.git
  - name: lib
    git:
      remote:
        url: https://gitlab.com/acme/lib.git
  - name: off
    git:
      active: false
      remote:
        url: https://github.com/acme/off.git
`, nil)

	checks := CheckRemotes(context.Background(), &engine.ExecContext{}, root, h.settings)
	if len(checks) != 2 {
		t.Fatalf("Expected 2 checks, got %d: %+v", len(checks), checks)
	}

	if checks[0].Name != "origin" || checks[0].Kind != "github" || checks[0].Err != nil {
		t.Errorf("Expected a passing github check for origin, got %+v", checks[0])
	}

	var missing *engine.MissingEnvVariableError
	if !errors.As(checks[1].Err, &missing) || missing.EnvKey != "GITLAB_API_TOKEN" {
		t.Errorf("Expected missing GITLAB_API_TOKEN, got %v", checks[1].Err)
	}

	if n := p.requestCount(); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}
