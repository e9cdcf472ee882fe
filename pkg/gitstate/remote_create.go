package gitstate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/remote"
)

// RemoteCreate creates the platform repositories of remotes marked
// create_remote.
type RemoteCreate struct {
	engine.BaseOperation
	pending []*candidate

	// created lists the repositories this instance created.
	created []*remote.RepositoryInfo
}

// candidate is a remote whose platform repository may need creating.
type candidate struct {
	spec    RemoteSpec
	kind    remote.Kind
	gateway remote.Gateway
}

func (c *candidate) exists(ctx context.Context) (bool, error) {
	ref, err := c.gateway.ParseRepositoryURL(c.spec.URL)
	if err != nil {
		return false, err
	}
	return c.gateway.CheckRepositoryExists(ctx, ref.Name, ref.Namespace)
}

func newRemoteCreate(t engine.Target, o config.Option, pending []*candidate) *RemoteCreate {
	op := &RemoteCreate{
		BaseOperation: engine.NewBaseOperation(KindRemoteCreate, engine.ScopeRemote, t, o),
		pending:       pending,
	}
	lines := make([]string, len(pending))
	for i, c := range pending {
		lines[i] = fmt.Sprintf("%s: %s", c.kind, c.spec.URL)
	}
	op.SetDescriptions(
		"Create remote repository on platform: "+strings.Join(lines, ", "),
		"Remote repository not created on remote platform",
		"Remote repository created on remote platform",
	)
	return op
}

// planRemoteCreate returns the creation of every create_remote repository
// the platform does not have. Tokens are resolved for all candidates before
// any request is made.
func planRemoteCreate(ctx context.Context, ec *engine.ExecContext, t engine.Target, o *RemoteOption, s Settings) (engine.Operation, error) {
	git := gitOf(o)
	if git == nil || !git.Wanted() {
		return nil, nil
	}

	specs, err := o.Desired(t)
	if err != nil {
		return nil, err
	}
	candidates, err := resolveCandidates(ctx, ec, t, specs, s)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	var pending []*candidate
	for _, c := range candidates {
		exists, err := c.exists(ctx)
		if err != nil {
			return nil, err
		}
		if !exists {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	return newRemoteCreate(t, o, pending), nil
}

func resolveCandidates(ctx context.Context, ec *engine.ExecContext, t engine.Target, specs []RemoteSpec, s Settings) ([]*candidate, error) {
	var out []*candidate
	for _, spec := range specs {
		if !spec.CreateRemote {
			continue
		}
		kind, ok, err := remote.DetectRemoteType(spec.Type, spec.URL)
		if err != nil {
			return nil, &config.ValidationError{Path: t.Path(), Message: "unsupported remote type", Err: err}
		}
		if !ok {
			t.Log(fmt.Sprintf("no platform matches %s, repository not created", spec.URL))
			continue
		}

		token, ok := t.EnvParameter(kind.TokenKey())
		if !ok {
			return nil, &engine.MissingEnvVariableError{EnvKey: kind.TokenKey(), Target: t.Path()}
		}
		gw, err := buildGateway(ctx, ec, kind, spec.URL, token, s)
		if err != nil {
			return nil, err
		}
		out = append(out, &candidate{spec: spec, kind: kind, gateway: gw})
	}
	return out, nil
}

func buildGateway(ctx context.Context, ec *engine.ExecContext, kind remote.Kind, url, token string, s Settings) (remote.Gateway, error) {
	baseURL, err := remote.BuildRemoteAPIURL(kind, url)
	if err != nil {
		return nil, err
	}
	gw, err := s.gateway(remote.Options{
		Kind:       kind,
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: ec.Client(),
		Logger:     ec.Log(),
	})
	if err != nil {
		return nil, err
	}
	if err := gw.Connect(ctx); err != nil {
		return nil, err
	}
	return gw, nil
}

func (op *RemoteCreate) Remotes() []engine.RemoteRef {
	refs := make([]engine.RemoteRef, len(op.pending))
	for i, c := range op.pending {
		refs[i] = engine.RemoteRef{Name: c.spec.Name, URL: c.spec.URL, Kind: string(c.kind), Create: true}
	}
	return refs
}

func (op *RemoteCreate) Dependencies() []engine.OperationKind {
	return []engine.OperationKind{KindRemoteAdd}
}

// Applicable re-checks the platform.
func (op *RemoteCreate) Applicable(ctx context.Context, _ *engine.ExecContext) (bool, error) {
	for _, c := range op.pending {
		exists, err := c.exists(ctx)
		if err != nil {
			return false, err
		}
		if !exists {
			return true, nil
		}
	}
	return false, nil
}

// Apply creates each missing repository. One created concurrently by
// someone else counts as success.
func (op *RemoteCreate) Apply(ctx context.Context, ec *engine.ExecContext) error {
	for _, c := range op.pending {
		info, err := c.gateway.CreateRepositoryIfNotExists(ctx, c.spec.URL, c.spec.Description, c.spec.Private)
		if err != nil {
			return err
		}
		if info != nil {
			op.created = append(op.created, info)
			ec.Log().WithTarget(op.Target().Path()).WithGateway(string(c.kind)).Infof("repository created: %s (%s)", info.FullPath, c.spec.URL)
		}
	}
	return nil
}

// Created returns the repositories Apply created.
func (op *RemoteCreate) Created() []*remote.RepositoryInfo { return op.created }
