package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-git/pkg/config"
	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/policy"
	"github.com/openfroyo/froyo-git/pkg/stores"
)

// errDeclined is returned when the user answers no at the prompt.
var errDeclined = errors.New("apply cancelled")

func newApplyCommand() *cobra.Command {
	var (
		file        string
		autoApprove bool
		watch       bool
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the tree with a document",
		Long: `Plan the document, check the plan against the policies and execute it.

Operations run one at a time in plan order. When one fails, every applied
operation is undone in reverse order. Runs, their steps and events are
recorded in the state database.

With --watch, the document and policy files are watched and every change is
applied again until interrupted.`,
		Example: `  # Apply after confirming the plan
  froyo-git apply -f workspace.yaml

  # Apply without a prompt, with extra policies
  froyo-git apply -f workspace.yaml --yes --policy ./policies

  # Keep the tree in sync with the document
  froyo-git apply -f workspace.yaml --yes --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch && !autoApprove {
				return errors.New("--watch requires --yes")
			}

			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			ctx := rt.context(cmd.Context())

			release, err := acquireLock(rt.settings.StateDB)
			if err != nil {
				rt.close(ctx)
				return err
			}
			defer release()

			store, err := stores.Open(ctx, rt.settings.StateDB)
			if err != nil {
				rt.close(ctx)
				return err
			}
			// Telemetry flushes its buffered events into the store first.
			defer func() { _ = store.Close() }()
			defer rt.close(ctx)

			rt.ec.Journal = store
			rt.tel.Events.Subscribe(stores.EventSubscriber(store, rt.tel.Logger), nil)

			if err := rt.tel.StartMetricsServer(ctx); err != nil {
				return err
			}

			guard, err := rt.policies(ctx, policyPaths)
			if err != nil {
				return err
			}

			a := &applier{
				rt:     rt,
				guard:  guard,
				out:    cmd.OutOrStdout(),
				in:     bufio.NewReader(cmd.InOrStdin()),
				prompt: !autoApprove,
			}

			doc, err := rt.loader.LoadFile(ctx, file)
			if err != nil {
				return err
			}
			if err := a.reconcile(ctx, doc); err != nil || !watch {
				return err
			}

			return a.watch(ctx, file, policyPaths)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "document to apply")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "apply without a confirmation prompt")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-apply whenever the document or policies change")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "extra policy files or directories")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// applier runs the plan-check-execute cycle for one command invocation.
type applier struct {
	rt     *runtime
	guard  *policy.Engine
	out    io.Writer
	in     *bufio.Reader
	prompt bool
}

func (a *applier) reconcile(ctx context.Context, doc *config.Document) error {
	root, err := a.rt.build(ctx, doc)
	if err != nil {
		return err
	}
	plan, err := a.rt.plan(ctx, root, engine.AllScopes(), false)
	if err != nil {
		return err
	}

	printPlan(a.out, plan)
	if plan.IsEmpty() {
		return nil
	}

	verdict, err := a.guard.EvaluatePlan(ctx, plan, "apply")
	if err != nil {
		return err
	}
	printViolations(a.out, verdict)
	for _, v := range verdict.Violations {
		_ = a.rt.ec.Events.PublishPolicyViolation(v.Target, v.Policy, v.Message)
	}
	if !verdict.Allowed {
		return fmt.Errorf("plan blocked by %d policy violations", len(verdict.Blocking()))
	}

	if a.prompt {
		ok, err := a.confirm()
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}
	}

	result, err := engine.NewExecutor(a.rt.ec).Execute(ctx, plan)
	if result != nil {
		printResult(a.out, result)
	}
	return err
}

func (a *applier) confirm() (bool, error) {
	fmt.Fprint(a.out, "Apply these changes? [y/N] ")
	answer, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// watch re-applies the document whenever it or a policy file changes. Errors
// of a single cycle are logged and watching continues.
func (a *applier) watch(ctx context.Context, file string, policyPaths []string) error {
	logger := a.rt.logger("watch")

	paths := append(append([]string{}, a.rt.settings.PolicyPaths...), policyPaths...)
	if len(paths) > 0 {
		loader := policy.NewLoader(logger.Zerolog())
		if err := loader.Watch(ctx, paths, func(p []policy.Policy) error {
			return a.guard.ReplacePolicies(ctx, p)
		}); err != nil {
			return err
		}
		defer func() { _ = loader.StopWatching() }()
	}

	return a.rt.loader.Watch(ctx, file, a.rt.settings.WatchDebounce, logger.Zerolog(), func(ctx context.Context, doc *config.Document) error {
		return a.reconcile(ctx, doc)
	})
}
