// Package cli implements the galleta command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func Run(info BuildInfo) ExitCode {
	rootCmd := NewRootCmd(info)
	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "galleta",
		Short:        "Role-gated conversational assistant over a PostgreSQL database.",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.Commit, info.Date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		NewServeCmd(info).Command(),
		NewAskCmd().Command(),
		NewChatCmd().Command(),
		NewTablesCmd().Command(),
		NewOverviewCmd().Command(),
		NewSetupCmd().Command(),
	)
	return rootCmd
}

// addGlobalFlags registers the flags every subcommand reads through newApp.
// Each one overrides the matching config value when set.
func addGlobalFlags(flags *pflag.FlagSet) {
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.StringP("config", "c", "", "path to a YAML config file")
	flags.String("db-driver", "", "database driver: pgx or pq (or set GALLETA_DB_DRIVER)")
	flags.String("memory", "", "conversation memory backend: memory, postgres or redis (or set GALLETA_MEMORY_BACKEND)")
	flags.Bool("strict-llm", false, "fail instead of degrading when the finalizer model is unavailable")
}
