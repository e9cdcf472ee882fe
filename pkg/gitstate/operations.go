package gitstate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/filestate"
	"github.com/openfroyo/froyo-git/pkg/gitrepo"
	"github.com/openfroyo/froyo-git/pkg/remote"
)

// Operation kinds.
const (
	KindInit         engine.OperationKind = "git.init"
	KindCreateBranch engine.OperationKind = "git.create_branch"
	KindRemoteAdd    engine.OperationKind = "git.remote_add"
	KindRemoteCreate engine.OperationKind = "git.remote_create"
)

// Init initializes the repository of a target.
type Init struct {
	engine.BaseOperation
	initialized bool
}

// NewInit plans the initialization of t's repository.
func NewInit(t engine.Target, o config.Option) *Init {
	op := &Init{BaseOperation: engine.NewBaseOperation(KindInit, engine.ScopeLocation, t, o)}
	op.SetDescriptions("Initialize .git directory", "No initialized .git directory", "Initialized .git directory")
	return op
}

func (op *Init) Dependencies() []engine.OperationKind {
	return []engine.OperationKind{filestate.KindDirectoryCreate}
}

func (op *Init) Applicable(context.Context, *engine.ExecContext) (bool, error) {
	return !gitrepo.IsValid(op.Target().Path()), nil
}

// Apply creates the repository, replacing an invalid metadata directory.
func (op *Init) Apply(_ context.Context, ec *engine.ExecContext) error {
	path := op.Target().Path()
	if gitrepo.IsValid(path) {
		return nil
	}

	_, replaced, err := gitrepo.Init(path)
	if err != nil {
		return engine.NewPermanentError("failed to initialize repository", err).
			WithResource(path).
			WithOperation(string(KindInit))
	}
	op.initialized = true

	logger := ec.Log().WithTarget(path)
	if replaced {
		logger.Warn("replaced invalid .git directory")
	}
	logger.Debug("repository initialized")
	return nil
}

// Undo removes the metadata directory this instance created.
func (op *Init) Undo(_ context.Context, ec *engine.ExecContext) error {
	if !op.initialized {
		return nil
	}
	meta := gitrepo.MetadataPath(op.Target().Path())
	if err := os.RemoveAll(meta); err != nil {
		return fmt.Errorf("removing %s: %w", meta, err)
	}
	op.initialized = false
	ec.Log().WithTarget(op.Target().Path()).Debug("repository metadata removed")
	return nil
}

// CreateBranch creates the configured branch at HEAD.
type CreateBranch struct {
	engine.BaseOperation
	branch string
}

// NewCreateBranch plans the creation of branch in t's repository.
func NewCreateBranch(t engine.Target, o config.Option, branch string) *CreateBranch {
	op := &CreateBranch{
		BaseOperation: engine.NewBaseOperation(KindCreateBranch, engine.ScopeLocation, t, o),
		branch:        branch,
	}
	op.SetDescriptions(
		"Create branch "+branch,
		"Branch "+branch+" missing",
		"Branch "+branch+" created",
	)
	return op
}

// Branch returns the branch name.
func (op *CreateBranch) Branch() string { return op.branch }

func (op *CreateBranch) Dependencies() []engine.OperationKind {
	return []engine.OperationKind{KindInit}
}

func (op *CreateBranch) Applicable(context.Context, *engine.ExecContext) (bool, error) {
	path := op.Target().Path()
	if !gitrepo.IsValid(path) {
		return false, nil
	}
	repo, err := gitrepo.Open(path)
	if err != nil {
		return false, err
	}
	has, err := repo.HasBranch(op.branch)
	if err != nil {
		return false, err
	}
	return !has, nil
}

func (op *CreateBranch) Apply(_ context.Context, ec *engine.ExecContext) error {
	path := op.Target().Path()
	repo, err := gitrepo.Open(path)
	if err != nil {
		return engine.NewPermanentError("failed to open repository", err).WithResource(path)
	}
	if has, err := repo.HasBranch(op.branch); err == nil && has {
		return nil
	}
	dropped, err := repo.CreateBranch(op.branch)
	if err != nil {
		return engine.NewPermanentError(fmt.Sprintf("failed to create branch %s", op.branch), err).
			WithResource(path).
			WithOperation(string(KindCreateBranch))
	}
	logger := ec.Log().WithTarget(path)
	if dropped != "" {
		logger.Warnf("HEAD has no commit yet: unborn branch %s replaced by %s", dropped, op.branch)
	}
	logger.Debugf("branch %s created", op.branch)
	return nil
}

// RemoteAdd makes the repository's remotes match the active remote items.
type RemoteAdd struct {
	engine.BaseOperation
	specs []RemoteSpec

	// created lists the remotes this instance added.
	created []string
}

// NewRemoteAdd plans the reconciliation of specs in t's repository.
func NewRemoteAdd(t engine.Target, o config.Option, specs []RemoteSpec) *RemoteAdd {
	op := &RemoteAdd{
		BaseOperation: engine.NewBaseOperation(KindRemoteAdd, engine.ScopeLocation, t, o),
		specs:         specs,
	}
	pairs := make([]string, len(specs))
	for i, s := range specs {
		pairs[i] = s.Name + " -> " + s.URL
	}
	op.SetDescriptions(
		"Add remote in .git directory: "+strings.Join(pairs, ", "),
		"Remote missing in .git directory",
		"Remote added in .git directory",
	)
	return op
}

// Specs returns the remotes the operation reconciles.
func (op *RemoteAdd) Specs() []RemoteSpec { return op.specs }

// Remotes lists the remotes with their detected platform, if any.
func (op *RemoteAdd) Remotes() []engine.RemoteRef {
	refs := make([]engine.RemoteRef, len(op.specs))
	for i, spec := range op.specs {
		refs[i] = engine.RemoteRef{Name: spec.Name, URL: spec.URL}
		if kind, ok, err := remote.DetectRemoteType(spec.Type, spec.URL); err == nil && ok {
			refs[i].Kind = string(kind)
		}
	}
	return refs
}

func (op *RemoteAdd) Dependencies() []engine.OperationKind {
	return []engine.OperationKind{KindInit}
}

func (op *RemoteAdd) Applicable(context.Context, *engine.ExecContext) (bool, error) {
	path := op.Target().Path()
	if !gitrepo.IsValid(path) {
		return false, nil
	}
	pending, err := mismatchedRemotes(path, op.specs)
	if err != nil {
		return false, err
	}
	return len(pending) > 0, nil
}

// Apply creates missing remotes and repoints mismatched ones.
func (op *RemoteAdd) Apply(_ context.Context, ec *engine.ExecContext) error {
	path := op.Target().Path()
	repo, err := gitrepo.Open(path)
	if err != nil {
		return engine.NewPermanentError("failed to open repository", err).WithResource(path)
	}

	logger := ec.Log().WithTarget(path)
	for _, spec := range op.specs {
		created, err := repo.SetRemote(spec.Name, spec.URL)
		if err != nil {
			return engine.NewPermanentError(fmt.Sprintf("failed to set remote %s", spec.Name), err).
				WithResource(path).
				WithOperation(string(KindRemoteAdd))
		}
		if created {
			op.created = append(op.created, spec.Name)
		}
		logger.Debugf("remote %s -> %s", spec.Name, spec.URL)
	}
	return nil
}

// Undo deletes the remotes Apply created. Updated URLs are left alone.
func (op *RemoteAdd) Undo(_ context.Context, ec *engine.ExecContext) error {
	if len(op.created) == 0 {
		return nil
	}
	path := op.Target().Path()
	repo, err := gitrepo.Open(path)
	if err != nil {
		return err
	}
	for i := len(op.created) - 1; i >= 0; i-- {
		if err := repo.DeleteRemote(op.created[i]); err != nil {
			return fmt.Errorf("deleting remote %s: %w", op.created[i], err)
		}
		ec.Log().WithTarget(path).Debugf("remote %s deleted", op.created[i])
	}
	op.created = nil
	return nil
}

// Operations is the provider of the git operation types.
func Operations(s Settings) engine.OperationsProvider {
	return operationsProvider{settings: s}
}

type operationsProvider struct {
	settings Settings
}

func (operationsProvider) Name() string { return "git" }

func (p operationsProvider) Operations() []engine.OperationType {
	return []engine.OperationType{
		{Kind: KindInit, Scope: engine.ScopeLocation},
		{Kind: KindCreateBranch, Scope: engine.ScopeLocation},
		{Kind: KindRemoteAdd, Scope: engine.ScopeLocation},
		{
			Kind:  KindRemoteCreate,
			Scope: engine.ScopeRemote,
			ForOption: func(ctx context.Context, ec *engine.ExecContext, t engine.Target, o config.Option) (engine.Operation, error) {
				ro, ok := o.(*RemoteOption)
				if !ok {
					return nil, nil
				}
				return planRemoteCreate(ctx, ec, t, ro, p.settings)
			},
		},
	}
}
