// Package cli implements the authzctl command-line interface for managing
// the authorization store: operations, group hierarchies, permissions,
// checks, and declarative policy application.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"authzkit/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions carries the resolved store settings from the root command down
// to the subcommands.
type rootOptions struct {
	dbPath       string
	readMaxConns int
	policyPath   string
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "authzctl",
		Short:         "Authorization store CLI",
		Long:          "Command-line interface for the role and permission store: operations, groups, permissions, and authorization checks.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			slog.SetDefault(logger)

			opts.readMaxConns = cfg.ReadMaxConns
			opts.policyPath = cfg.PolicyPath
			// Precedence: flag > env > default.
			if !cmd.Flags().Changed("db") {
				opts.dbPath = cfg.DBPath
				for _, w := range cfg.Warnings {
					logger.Warn(w)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "authz.sqlite", "Path to the SQLite authorization store")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newOperationCmd(opts))
	rootCmd.AddCommand(newGroupCmd(opts))
	rootCmd.AddCommand(newEntitiesGroupCmd(opts))
	rootCmd.AddCommand(newPermissionCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newExplainCmd(opts))
	rootCmd.AddCommand(newApplyCmd(opts))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authzctl %s (%s)\n", version, commit)
		},
	}
}
