package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/semanticbi/looker-sql-agent/cmd"
	"github.com/semanticbi/looker-sql-agent/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.GetLogger()

	rootCmd := cmd.NewRootCommand(ctx, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
