package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticbi/looker-sql-agent/pkg/logging"
)

func TestNewRootCommand(t *testing.T) {
	rootCmd := NewRootCommand(context.Background(), logging.NewTestLogger())
	require.NotNil(t, rootCmd)
	assert.Equal(t, "looker-sql-agent", rootCmd.Use)

	var names []string
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "ask")
	assert.Contains(t, names, "tables")
	assert.Contains(t, names, "schema")
	assert.Contains(t, names, "query")

	sampleFlag := rootCmd.PersistentFlags().Lookup("sample-rows")
	require.NotNil(t, sampleFlag)
	assert.Equal(t, "-1", sampleFlag.DefValue)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("include"))
}

func TestNewAskCommandFlags(t *testing.T) {
	askCmd := NewAskCommand(context.Background(), logging.NewTestLogger())
	require.NotNil(t, askCmd)
	assert.Equal(t, "ask [question]", askCmd.Use)

	llmFlag := askCmd.Flags().Lookup("llm")
	require.NotNil(t, llmFlag)
	assert.Equal(t, "openai", llmFlag.DefValue)

	topKFlag := askCmd.Flags().Lookup("top-k")
	require.NotNil(t, topKFlag)
	assert.Equal(t, "10", topKFlag.DefValue)

	iterFlag := askCmd.Flags().Lookup("max-iterations")
	require.NotNil(t, iterFlag)
	assert.Equal(t, "15", iterFlag.DefValue)
}

func TestBuildLLMUnknownProvider(t *testing.T) {
	llm, err := buildLLM(&Environment{}, "anthropic")
	require.Error(t, err)
	assert.Nil(t, llm)
	assert.Contains(t, err.Error(), `unknown llm provider "anthropic"`)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("LOOKER_INSTANCE_URL", "https://company.cloud.looker.com/avatica")
	t.Setenv("LOOKML_MODEL_NAME", "analytics")
	t.Setenv("LOOKER_CLIENT_ID", "client_id")
	t.Setenv("LOOKER_CLIENT_SECRET", "client_secret")
	t.Setenv("LOOKER_SAMPLE_ROWS", "5")

	environ, err := LoadEnvironment()
	require.NoError(t, err)

	assert.Equal(t, "https://company.cloud.looker.com/avatica", environ.LookerInstanceURL)
	assert.Equal(t, "analytics", environ.LookmlModelName)
	assert.Equal(t, 5, environ.SampleRows)
	assert.Equal(t, "llama3", environ.OllamaModel)
	assert.Equal(t, "http://localhost:11434", environ.OllamaServerURL)

	cfg := environ.LookerConfig()
	assert.Equal(t, "https://company.cloud.looker.com/avatica", cfg.InstanceURL)
	assert.Equal(t, "analytics", cfg.ModelName)
	assert.Equal(t, "client_id", cfg.ClientID)
	assert.Equal(t, "client_secret", cfg.ClientSecret)
	assert.Equal(t, 5, cfg.SampleRows)
}
