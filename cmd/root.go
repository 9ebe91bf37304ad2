package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semanticbi/looker-sql-agent/pkg/avatica"
	"github.com/semanticbi/looker-sql-agent/pkg/logging"
	"github.com/semanticbi/looker-sql-agent/pkg/looker"
)

// Connection overrides shared by every subcommand.
var (
	sampleRowsOverride int
	includeExplores    []string
)

// NewRootCommand returns the root command with all subcommands attached
func NewRootCommand(ctx context.Context, logger *logging.Logger) *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "looker-sql-agent",
		Short: "Natural language analytics over Looker's semantic layer.",
		Long: `looker-sql-agent answers natural language questions against a Looker instance
through its Open SQL Interface. A ReAct agent inspects the LookML model's
Explores, writes Calcite SQL with the proper Looker conventions (backticked
identifiers, AGGREGATE() for measures, no joins), and executes it to ground
its answer in real query results.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().IntVar(&sampleRowsOverride, "sample-rows", -1,
		"Sample rows per Explore in schema output (overrides LOOKER_SAMPLE_ROWS, 0 disables)")
	rootCmd.PersistentFlags().StringSliceVar(&includeExplores, "include", nil,
		"Restrict the agent to the named Explores")
	rootCmd.AddCommand(NewAskCommand(ctx, logger))
	rootCmd.AddCommand(NewTablesCommand(ctx, logger))
	rootCmd.AddCommand(NewSchemaCommand(ctx, logger))
	rootCmd.AddCommand(NewQueryCommand(ctx, logger))

	return rootCmd
}

// openDatabase connects to the configured Looker instance.
func openDatabase(ctx context.Context, environ *Environment, logger *logging.Logger) (*looker.Database, error) {
	cfg := environ.LookerConfig()
	if sampleRowsOverride >= 0 {
		cfg.SampleRows = sampleRowsOverride
	}
	if len(includeExplores) > 0 {
		cfg.IncludeTables = includeExplores
	}
	connector := avatica.NewConnector(cfg, logger)
	db, err := looker.NewDatabase(ctx, connector, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to Looker: %w", err)
	}
	return db, nil
}

