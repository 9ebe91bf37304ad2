package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/chains"

	"github.com/semanticbi/looker-sql-agent/pkg/agent"
	"github.com/semanticbi/looker-sql-agent/pkg/logging"
	"github.com/semanticbi/looker-sql-agent/pkg/toolkit"
)

// NewAskCommand returns the "ask" command, which runs the ReAct agent
// against a natural language question.
func NewAskCommand(ctx context.Context, logger *logging.Logger) *cobra.Command {
	var (
		llmProvider   string
		llmModel      string
		topK          int
		maxIterations int
		verbose       bool
	)

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a natural language question using the Looker model",
		Args:  cobra.MinimumNArgs(1),
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

			if llmModel != "" {
				environ.OpenAIModel = llmModel
				environ.OllamaModel = llmModel
			}
			llm, err := buildLLM(environ, llmProvider)
			if err != nil {
				return err
			}

			opts := []agent.Option{
				agent.WithTopK(topK),
				agent.WithMaxIterations(maxIterations),
			}
			if verbose {
				opts = append(opts, agent.WithCallbacksHandler(callbacks.LogHandler{}))
			}

			executor, err := agent.CreateAgent(llm, toolkit.New(db), opts...)
			if err != nil {
				return fmt.Errorf("creating agent: %w", err)
			}

			question := strings.Join(args, " ")
			logger.Debug("running agent", "question", question, "llm", llmProvider)

			answer, err := chains.Run(ctx, executor, question)
			if err != nil {
				return fmt.Errorf("running agent: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	askCmd.Flags().StringVar(&llmProvider, "llm", "openai", `LLM provider ("openai" or "ollama")`)
	askCmd.Flags().StringVar(&llmModel, "llm-model", "", "Model name for the selected provider (overrides OPENAI_MODEL / OLLAMA_MODEL)")
	askCmd.Flags().IntVar(&topK, "top-k", agent.DefaultTopK, "Row limit the agent applies to generated queries")
	askCmd.Flags().IntVar(&maxIterations, "max-iterations", agent.DefaultMaxIterations, "Maximum agent reasoning steps")
	askCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print intermediate agent steps")

	return askCmd
}
