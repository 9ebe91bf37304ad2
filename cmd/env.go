package cmd

import (
	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/semanticbi/looker-sql-agent/pkg/looker"
)

// Environment holds the CLI configuration loaded from the OS environment
// (optionally seeded from a .env file in the working directory).
type Environment struct {
	LookerInstanceURL  string `env:"LOOKER_INSTANCE_URL"`
	LookmlModelName    string `env:"LOOKML_MODEL_NAME"`
	LookerClientID     string `env:"LOOKER_CLIENT_ID"`
	LookerClientSecret string `env:"LOOKER_CLIENT_SECRET"`
	SampleRows         int    `env:"LOOKER_SAMPLE_ROWS,default=3"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAIModel        string `env:"OPENAI_MODEL,default=gpt-4o"`
	OllamaModel        string `env:"OLLAMA_MODEL,default=llama3"`
	OllamaServerURL    string `env:"OLLAMA_HOST,default=http://localhost:11434"`
	Extras             env.EnvSet
}

// LoadEnvironment reads the process environment into an Environment. A
// missing .env file is not an error.
func LoadEnvironment() (*Environment, error) {
	_ = godotenv.Load()

	environment := &Environment{}
	extras, err := env.UnmarshalFromEnviron(environment)
	if err != nil {
		return nil, err
	}
	environment.Extras = extras
	return environment, nil
}

// LookerConfig maps the environment onto a looker.Config.
func (e *Environment) LookerConfig() looker.Config {
	return looker.Config{
		InstanceURL:  e.LookerInstanceURL,
		ModelName:    e.LookmlModelName,
		ClientID:     e.LookerClientID,
		ClientSecret: e.LookerClientSecret,
		SampleRows:   e.SampleRows,
	}
}
