package gitstate

import (
	"context"

	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/remote"
)

// RemoteCheck is the outcome of verifying the credentials of one remote.
type RemoteCheck struct {
	Target string
	Name   string
	URL    string
	Kind   remote.Kind
	Err    error
}

// CheckRemotes verifies the token of every active remote on a known
// platform in the tree under root with an authenticated request. Remotes
// on unknown hosts are not reported.
func CheckRemotes(ctx context.Context, ec *engine.ExecContext, root engine.Target, s Settings) []RemoteCheck {
	var out []RemoteCheck
	var walk func(t engine.Target)
	walk = func(t engine.Target) {
		out = append(out, checkTarget(ctx, ec, t, s)...)
		for _, c := range t.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func checkTarget(ctx context.Context, ec *engine.ExecContext, t engine.Target, s Settings) []RemoteCheck {
	git, ok := t.Option(KeyGit).(*GitOption)
	if !ok || !git.Wanted() {
		return nil
	}
	ro, ok := git.Child(KeyRemote).(*RemoteOption)
	if !ok {
		return nil
	}
	specs, err := ro.Desired(t)
	if err != nil {
		return []RemoteCheck{{Target: t.Path(), Err: err}}
	}

	var out []RemoteCheck
	for _, spec := range specs {
		kind, ok, err := remote.DetectRemoteType(spec.Type, spec.URL)
		if err == nil && !ok {
			continue
		}
		check := RemoteCheck{Target: t.Path(), Name: spec.Name, URL: spec.URL, Kind: kind, Err: err}
		if err == nil {
			check.Err = checkRemote(ctx, ec, t, kind, spec.URL, s)
		}
		out = append(out, check)
	}
	return out
}

func checkRemote(ctx context.Context, ec *engine.ExecContext, t engine.Target, kind remote.Kind, url string, s Settings) error {
	token, ok := t.EnvParameter(kind.TokenKey())
	if !ok {
		return &engine.MissingEnvVariableError{EnvKey: kind.TokenKey(), Target: t.Path()}
	}
	gw, err := buildGateway(ctx, ec, kind, url, token, s)
	if err != nil {
		return err
	}
	return gw.CheckConnection(ctx)
}
