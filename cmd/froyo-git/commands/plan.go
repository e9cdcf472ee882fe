package commands

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-git/pkg/engine"
	"github.com/openfroyo/froyo-git/pkg/policy"
)

func newPlanCommand() *cobra.Command {
	var (
		file        string
		scopes      []string
		policyPaths []string
		dot         bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the operations a document requires",
		Long: `Compute the dry-run plan of a document.

The plan lists every required operation in execution order. Nothing is
changed; planning the remote scope reads repository state from the hosting
platforms and needs their tokens. Policy violations are reported but do not
fail the command.`,
		Example: `  # Plan everything
  froyo-git plan -f workspace.yaml

  # Local changes only, no platform requests
  froyo-git plan -f workspace.yaml --scope location

  # Machine-readable plan
  froyo-git plan -f workspace.yaml --json

  # Dependency graph for Graphviz
  froyo-git plan -f workspace.yaml --dot | dot -Tsvg > plan.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := engine.ParseScopes(strings.Join(scopes, ","))
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			ctx := rt.context(cmd.Context())
			defer rt.close(ctx)

			root, err := rt.load(ctx, file)
			if err != nil {
				return err
			}
			plan, err := rt.plan(ctx, root, set, true)
			if err != nil {
				return err
			}
			if dot {
				_, err := io.WriteString(cmd.OutOrStdout(), plan.DOT)
				return err
			}

			guard, err := rt.policies(ctx, policyPaths)
			if err != nil {
				return err
			}
			verdict, err := guard.EvaluatePlan(ctx, plan, "plan")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, struct {
					ID         string               `json:"id"`
					Root       string               `json:"root"`
					Scopes     engine.ScopeSet      `json:"scopes"`
					Operations []engine.PlanLine    `json:"operations"`
					Policy     *policy.PolicyResult `json:"policy"`
				}{plan.ID, plan.Root, plan.Scopes, plan.Describe(), verdict})
			}
			printPlan(out, plan)
			printViolations(out, verdict)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "document to plan")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scopes to plan: location, content, remote (default all)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "extra policy files or directories")
	cmd.Flags().BoolVar(&dot, "dot", false, "print the dependency graph in DOT format instead")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// policies returns a policy engine with the built-in policies and those
// found under paths and the configured policy paths.
func (r *runtime) policies(ctx context.Context, paths []string) (*policy.Engine, error) {
	guard, err := policy.NewEngine(r.logger("policy").Zerolog())
	if err != nil {
		return nil, err
	}
	all := append(append([]string{}, r.settings.PolicyPaths...), paths...)
	if len(all) > 0 {
		if err := guard.LoadPolicies(ctx, all); err != nil {
			return nil, err
		}
	}
	return guard, nil
}
