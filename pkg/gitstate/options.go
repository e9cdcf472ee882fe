package gitstate

import (
	"context"
	"fmt"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/filestate"
	"github.com/openfroyo/froyo-git/pkg/gitrepo"
)

// Option keys.
const (
	KeyGit          = "git"
	KeyMainBranch   = "main_branch"
	KeyRemote       = "remote"
	KeyActive       = "active"
	KeyRemoteName   = "name"
	KeyURL          = "url"
	KeyType         = "type"
	KeyCreateRemote = "create_remote"
	KeyPrivate      = "private"
	KeyDescription  = "description"
)

// DefaultBranch is used when main_branch is empty or cannot be resolved.
const DefaultBranch = "main"

// GitOption is the git key of a target: true, false, or a mapping with
// main_branch, remote and active.
type GitOption struct {
	config.NestedOption
	settings Settings
}

// NewGitOption creates an unset git option whose mapping keys are built
// with registry.
func NewGitOption(parent config.Option, registry *config.OptionsRegistry, s Settings) *GitOption {
	o := &GitOption{
		NestedOption: config.NewNestedOption(KeyGit, parent, config.Kinds(config.KindBool, config.KindDict), registry),
		settings:     s,
	}
	o.Bind(o)
	return o
}

// SetValue stores v; true is stored as an empty mapping.
func (o *GitOption) SetValue(v config.Value) error {
	if v.IsTrue() {
		v = config.DictValue(config.NewDict())
	}
	return o.NestedOption.SetValue(v)
}

// ShouldHaveGit reports whether the target is configured as a repository.
func (o *GitOption) ShouldHaveGit() bool {
	return o.Value().Kind() == config.KindDict
}

// Active reports the active flag, falling back to the settings default.
func (o *GitOption) Active() bool {
	return activeFlag(o.Child(KeyActive), o.settings.GitActiveDefault)
}

// Wanted reports whether the target should be a repository.
func (o *GitOption) Wanted() bool {
	return o.ShouldHaveGit() && o.Active()
}

// CreateRequiredOperation returns the repository initialization when git is
// wanted and no valid repository exists.
func (o *GitOption) CreateRequiredOperation(_ context.Context, _ *engine.ExecContext, t engine.Target, _ engine.ScopeSet) (engine.Operation, error) {
	if !o.Wanted() || gitrepo.IsValid(t.Path()) {
		return nil, nil
	}
	return NewInit(t, o), nil
}

// requireDirectory makes a target with git also ask for its directory.
func requireDirectory(d config.Dict) config.Dict {
	v, ok := d.Get(KeyGit)
	if !ok || !(v.IsTrue() || v.Kind() == config.KindDict) {
		return d
	}
	return d.With(filestate.KeyShouldExist, config.BoolValue(true))
}

// gitOf returns the git option enclosing o.
func gitOf(o config.Option) *GitOption {
	p := config.Ancestor(o, func(p config.Option) bool {
		_, ok := p.(*GitOption)
		return ok
	})
	if p == nil {
		return nil
	}
	return p.(*GitOption)
}

func activeFlag(o config.Option, def bool) bool {
	if o == nil || o.Value().IsNull() {
		return def
	}
	return o.Value().IsTrue()
}

func newFlagOption(name string) func(config.Option) config.Option {
	return func(parent config.Option) config.Option {
		o := config.NewBaseOption(name, parent, config.Kinds(config.KindBool, config.KindNull))
		return &o
	}
}

func newStringOption(name string) func(config.Option) config.Option {
	return func(parent config.Option) config.Option {
		o := config.NewBaseOption(name, parent, config.Kinds(config.KindStr, config.KindNull))
		return &o
	}
}

// callableOption holds a string or a callable. A {pattern: ...} or
// {starlark: ...} mapping is converted to a callable when set.
type callableOption struct {
	config.BaseOption
	starlark *config.StarlarkEvaluator
}

func newCallableOption(name string, parent config.Option, se *config.StarlarkEvaluator) *callableOption {
	return &callableOption{
		BaseOption: config.NewBaseOption(name, parent, config.Kinds(config.KindStr, config.KindCallable, config.KindDict)),
		starlark:   se,
	}
}

func (o *callableOption) SetValue(v config.Value) error {
	if v.Kind() == config.KindDict {
		d, _ := v.Dict()
		fn, err := config.CallableFromDict(d, o.starlark)
		if err != nil {
			return &config.ValidationError{Path: o.Path(), Message: "invalid callable", Err: err}
		}
		v = config.CallableValue(fn)
	}
	return o.BaseOption.SetValue(v)
}

// MainBranchOption names the branch the repository should have, as a string
// or a list whose first element wins.
type MainBranchOption struct {
	config.ListOption
}

// NewMainBranchOption creates an unset main_branch option.
func NewMainBranchOption(parent config.Option, se *config.StarlarkEvaluator) *MainBranchOption {
	o := &MainBranchOption{
		ListOption: config.NewListOption(KeyMainBranch, parent, config.Kinds(config.KindStr, config.KindNull),
			func(p config.Option, i int) config.Option {
				return newCallableOption(config.ItemName(i), p, se)
			}),
	}
	o.Bind(o)
	return o
}

// BranchName resolves the branch name against t.
func (o *MainBranchOption) BranchName(t config.Target) string {
	var name string
	_ = o.Value().Match(config.ValueCases{
		Str: func(s string) error {
			name = s
			return nil
		},
		List: func([]config.Value) error {
			items := o.Children()
			if len(items) == 0 {
				return nil
			}
			v, err := items[0].Value().Resolve(t)
			if err != nil {
				return err
			}
			name, _ = v.Str()
			return nil
		},
	})
	if name == "" {
		return DefaultBranch
	}
	return name
}

// CreateRequiredOperation returns a branch creation when git is wanted and
// the branch is missing, including when the repository is about to be
// initialized.
func (o *MainBranchOption) CreateRequiredOperation(_ context.Context, _ *engine.ExecContext, t engine.Target, _ engine.ScopeSet) (engine.Operation, error) {
	git := gitOf(o)
	if git == nil || !git.Wanted() {
		return nil, nil
	}

	branch := o.BranchName(t)
	if gitrepo.IsValid(t.Path()) {
		repo, err := gitrepo.Open(t.Path())
		if err != nil {
			return nil, err
		}
		has, err := repo.HasBranch(branch)
		if err != nil {
			return nil, err
		}
		if has {
			return nil, nil
		}
	}
	return NewCreateBranch(t, o, branch), nil
}

// RemoteOption lists the remotes of the repository. A single mapping is
// accepted as a one-item list.
type RemoteOption struct {
	config.ListOption
}

// NewRemoteOption creates an unset remote option whose items are built with
// registry.
func NewRemoteOption(parent config.Option, registry *config.OptionsRegistry, s Settings) *RemoteOption {
	o := &RemoteOption{
		ListOption: config.NewListOption(KeyRemote, parent, config.Kinds(config.KindDict),
			func(p config.Option, i int) config.Option {
				return NewRemoteItemOption(p, i, registry, s)
			}),
	}
	o.Bind(o)
	return o
}

func (o *RemoteOption) SetValue(v config.Value) error {
	if v.Kind() == config.KindDict {
		v = config.ListValue([]config.Value{v})
	}
	return o.ListOption.SetValue(v)
}

// Items returns the remote items in document order.
func (o *RemoteOption) Items() []*RemoteItemOption {
	var items []*RemoteItemOption
	for _, c := range o.Children() {
		if item, ok := c.(*RemoteItemOption); ok {
			items = append(items, item)
		}
	}
	return items
}

// Desired resolves the active remotes against t. Two active remotes with the
// same name are rejected.
func (o *RemoteOption) Desired(t config.Target) ([]RemoteSpec, error) {
	var specs []RemoteSpec
	seen := make(map[string]string)
	for _, item := range o.Items() {
		spec, err := item.Spec(t)
		if err != nil {
			return nil, err
		}
		if !spec.Active {
			continue
		}
		if prev, dup := seen[spec.Name]; dup {
			return nil, &config.ValidationError{
				Path:    item.Path(),
				Message: fmt.Sprintf("remote %q already configured by %s", spec.Name, prev),
			}
		}
		seen[spec.Name] = item.Path()
		specs = append(specs, spec)
	}
	return specs, nil
}

// CreateRequiredOperation returns the remote reconciliation when git is
// wanted and an active remote is missing or points elsewhere.
func (o *RemoteOption) CreateRequiredOperation(_ context.Context, _ *engine.ExecContext, t engine.Target, _ engine.ScopeSet) (engine.Operation, error) {
	git := gitOf(o)
	if git == nil || !git.Wanted() {
		return nil, nil
	}

	specs, err := o.Desired(t)
	if err != nil || len(specs) == 0 {
		return nil, err
	}

	if gitrepo.IsValid(t.Path()) {
		pending, err := mismatchedRemotes(t.Path(), specs)
		if err != nil || len(pending) == 0 {
			return nil, err
		}
	}
	return NewRemoteAdd(t, o, specs), nil
}

// mismatchedRemotes returns the specs the repository at path does not
// satisfy.
func mismatchedRemotes(path string, specs []RemoteSpec) ([]RemoteSpec, error) {
	repo, err := gitrepo.Open(path)
	if err != nil {
		return nil, err
	}
	current, err := repo.Remotes()
	if err != nil {
		return nil, err
	}

	var pending []RemoteSpec
	for _, spec := range specs {
		if url, ok := current[spec.Name]; !ok || url != spec.URL {
			pending = append(pending, spec)
		}
	}
	return pending, nil
}
