package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/filestate"
	"github.com/openfroyo/froyo-git/pkg/gitstate"
	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// runtime holds what every command needs: settings, telemetry and the
// registries the tree and the plan are built with.
type runtime struct {
	settings *Settings
	tel      *telemetry.Telemetry
	ec       *engine.ExecContext
	git      gitstate.Settings
	loader   *config.Loader
	options  *config.OptionsRegistry
	planner  *engine.Planner
	base     string
	env      envconfig.Lookuper
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()

	settings, err := LoadSettings(ctx, envconfig.OsLookuper())
	if err != nil {
		return nil, err
	}
	settings.override(cmd)

	cfg, err := telemetry.Load(ctx, nil)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	git := gitstate.DefaultSettings()
	git.GitActiveDefault = settings.GitActiveDefault
	git.RemoteActiveDefault = settings.RemoteActiveDefault
	git.Starlark = config.NewStarlarkEvaluator(settings.StarlarkTimeout)

	options, err := config.NewOptionsRegistry(filestate.DefaultOptions(), gitstate.Options(git))
	if err != nil {
		return nil, err
	}
	operations, err := engine.NewOperationsRegistry(filestate.Operations(), gitstate.Operations(git))
	if err != nil {
		return nil, err
	}

	base, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	ec := engine.NewExecContext(tel, settings.HTTPTimeout)
	return &runtime{
		settings: settings,
		tel:      tel,
		ec:       ec,
		git:      git,
		loader:   config.NewLoader(),
		options:  options,
		planner:  engine.NewPlanner(operations, ec),
		base:     base,
		env:      envconfig.OsLookuper(),
	}, nil
}

// context attaches the telemetry to ctx so gateway calls are instrumented.
func (r *runtime) context(ctx context.Context) context.Context {
	return r.tel.WithContext(ctx)
}

func (r *runtime) logger(component string) *telemetry.Logger {
	return r.tel.Logger.NewComponentLogger(component)
}

// load reads, schema-checks and builds the document at path.
func (r *runtime) load(ctx context.Context, path string) (*filestate.Item, error) {
	doc, err := r.loader.LoadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.build(ctx, doc)
}

func (r *runtime) build(ctx context.Context, doc *config.Document) (*filestate.Item, error) {
	if err := r.loader.Schemas().ValidateDocument(ctx, doc); err != nil {
		return nil, err
	}
	root, err := filestate.Build(doc.Root, r.base, r.options, r.env)
	if err != nil {
		return nil, err
	}
	root.SetLogger(r.tel.Logger)
	return root, nil
}

func (r *runtime) plan(ctx context.Context, root *filestate.Item, scopes engine.ScopeSet, dryRun bool) (*engine.Plan, error) {
	return r.planner.Plan(ctx, root, engine.PlanOptions{Scopes: scopes, DryRun: dryRun})
}

func (r *runtime) close(ctx context.Context) {
	if err := r.tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
		r.tel.Logger.WithError(err).Warn("failed to flush telemetry")
	}
}
