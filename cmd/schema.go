package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semanticbi/looker-sql-agent/pkg/logging"
)

// NewTablesCommand returns the "tables" command, which lists the
// Explores reachable through the configured LookML model.
func NewTablesCommand(ctx context.Context, logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the available Explores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			environ, err := LoadEnvironment()
			if err != nil {
				return fmt.Errorf("loading environment: %w", err)
			}

			db, err := openDatabase(ctx, environ, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.UsableTableNames(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// NewSchemaCommand returns the "schema" command, which prints CREATE
// TABLE style definitions (and sample rows) for Explores.
func NewSchemaCommand(ctx context.Context, logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [explore...]",
		Short: "Show schema and sample rows for Explores (all when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			environ, err := LoadEnvironment()
			if err != nil {
				return fmt.Errorf("loading environment: %w", err)
			}

			db, err := openDatabase(ctx, environ, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			var names []string
			if len(args) > 0 {
				names = args
			}
			info, err := db.TableInfo(ctx, names)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

// NewQueryCommand returns the "query" command, which runs one SQL
// statement and prints the formatted result.
func NewQueryCommand(ctx context.Context, logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a single SQL statement against the Looker instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			environ, err := LoadEnvironment()
			if err != nil {
				return fmt.Errorf("loading environment: %w", err)
			}

			db, err := openDatabase(ctx, environ, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintln(cmd.OutOrStdout(), db.Run(ctx, args[0], "all"))
			return nil
		},
	}
}
