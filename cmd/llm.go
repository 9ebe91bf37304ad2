package cmd

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// buildLLM constructs the language model for the selected provider.
func buildLLM(environ *Environment, provider string) (llms.Model, error) {
	switch provider {
	case "openai":
		opts := []openai.Option{}
		if environ.OpenAIModel != "" {
			opts = append(opts, openai.WithModel(environ.OpenAIModel))
		}
		if environ.OpenAIAPIKey != "" {
			opts = append(opts, openai.WithToken(environ.OpenAIAPIKey))
		}
		return openai.New(opts...)
	case "ollama":
		return ollama.New(
			ollama.WithModel(environ.OllamaModel),
			ollama.WithServerURL(environ.OllamaServerURL),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q: use \"openai\" or \"ollama\"", provider)
	}
}
