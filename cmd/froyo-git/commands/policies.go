package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPoliciesCommand() *cobra.Command {
	var policyPaths []string

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the policies plans are checked against",
		Example: `  froyo-git policies
  froyo-git policies --policy ./policies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			ctx := rt.context(cmd.Context())
			defer rt.close(ctx)

			guard, err := rt.policies(ctx, policyPaths)
			if err != nil {
				return err
			}
			list := guard.ListPolicies()

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, list)
			}
			table := newTable(out, "Name", "Severity", "Enabled", "Source", "Description")
			for _, p := range list {
				source := "custom"
				if p.Builtin {
					source = "builtin"
				}
				_ = table.Append([]string{p.Name, string(p.Severity), fmt.Sprint(p.Enabled), source, p.Description})
			}
			return table.Render()
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "extra policy files or directories")

	return cmd
}
