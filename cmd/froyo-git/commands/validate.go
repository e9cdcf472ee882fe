package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-git/pkg/filestate"
	"github.com/openfroyo/froyo-git/pkg/gitstate"
)

func newValidateCommand() *cobra.Command {
	var (
		file         string
		checkRemotes bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a document",
		Long: `Validate a document without touching the filesystem.

The document is decoded, checked against the node schema and built into the
target tree, which surfaces unknown keys and type errors. With
--check-remotes, the token of every remote on GitHub or GitLab is verified
with an authenticated request.`,
		Example: `  # Validate a document
  froyo-git validate -f workspace.yaml

  # Also verify platform tokens
  froyo-git validate -f workspace.yaml --check-remotes`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			targets := 0
			_ = root.Walk(func(*filestate.Item) error {
				targets++
				return nil
			})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s: %d targets\n", successColor("valid"), file, targets)

			if !checkRemotes {
				return nil
			}

			var failed int
			for _, c := range gitstate.CheckRemotes(ctx, rt.ec, root, rt.git) {
				if c.Err != nil {
					failed++
					fmt.Fprintf(out, "  %s %s %s: %v\n", errorColor("FAIL"), c.Target, c.URL, c.Err)
					continue
				}
				fmt.Fprintf(out, "  %s %s %s (%s)\n", successColor("ok"), c.Target, c.URL, c.Kind)
			}
			if failed > 0 {
				return fmt.Errorf("%d remote checks failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "document to validate")
	cmd.Flags().BoolVar(&checkRemotes, "check-remotes", false, "verify platform tokens of remotes")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
