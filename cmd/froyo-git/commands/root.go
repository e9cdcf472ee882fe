package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	basePath   string
	stateDB    string
	verbose    bool
	jsonOutput bool

	gitActiveDefault    bool
	remoteActiveDefault bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "froyo-git",
		Short: "froyo-git - declarative repositories for directory trees",
		Long: `froyo-git reconciles a directory tree with a YAML or CUE document.

Each node of the document can ask for:
  - its directory to exist
  - a git repository with a main branch
  - local remotes, and their repositories on GitHub or GitLab

Changes are planned, ordered by their dependencies, applied one by one and
rolled back in reverse order when one fails.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&basePath, "base", "b", ".", "directory the document root is placed in")
	rootCmd.PersistentFlags().StringVar(&stateDB, "state-db", "", "run journal database (default $FROYO_GIT_STATE_DB)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&gitActiveDefault, "git-active-default", true, "active value of git blocks that do not set one")
	rootCmd.PersistentFlags().BoolVar(&remoteActiveDefault, "remote-active-default", true, "active value of remote items that do not set one")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPoliciesCommand())

	return rootCmd
}
