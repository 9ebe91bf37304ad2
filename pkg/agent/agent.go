// Package agent builds a ReAct-style langchaingo executor over the
// Looker SQL toolkit. The prompt teaches the model Looker's Calcite
// dialect rules (backticked identifiers, AGGREGATE() for measures, no
// joins or semicolons) before the standard Thought/Action/Observation
// loop structure.
package agent

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/tools"

	"github.com/semanticbi/looker-sql-agent/pkg/toolkit"
)

//go:embed prompts/looker_instructions.tmpl
var lookerInstructions string

//go:embed prompts/react_structure.tmpl
var reactStructure string

const (
	// AgentTypeReAct is the only supported agent type.
	AgentTypeReAct = "react"

	// DefaultTopK is the row limit the prompt tells the model to apply.
	DefaultTopK = 10

	// DefaultMaxIterations bounds the Thought/Action loop.
	DefaultMaxIterations = 15
)

type options struct {
	agentType               string
	topK                    int
	maxIterations           int
	callbacksHandler        callbacks.Handler
	returnIntermediateSteps bool
}

// Option configures CreateAgent.
type Option func(*options)

// WithAgentType selects the agent type. Only AgentTypeReAct is accepted.
func WithAgentType(agentType string) Option {
	return func(o *options) { o.agentType = agentType }
}

// WithTopK sets the default row limit baked into the prompt.
func WithTopK(topK int) Option {
	return func(o *options) { o.topK = topK }
}

// WithMaxIterations caps the number of agent reasoning steps.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithCallbacksHandler attaches a callbacks handler to the executor,
// useful for streaming intermediate steps to a terminal.
func WithCallbacksHandler(handler callbacks.Handler) Option {
	return func(o *options) { o.callbacksHandler = handler }
}

// WithReturnIntermediateSteps makes the executor include the tool call
// trace in its output map.
func WithReturnIntermediateSteps() Option {
	return func(o *options) { o.returnIntermediateSteps = true }
}

// CreateAgent wires an LLM and the Looker toolkit into a ready-to-run
// executor. Each run plans SQL under the prompt's dialect rules and
// executes it through the toolkit's tools; answer questions with
// chains.Run against the returned executor.
func CreateAgent(llm llms.Model, tk *toolkit.Toolkit, opts ...Option) (*agents.Executor, error) {
	o := options{
		agentType:     AgentTypeReAct,
		topK:          DefaultTopK,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.agentType != AgentTypeReAct {
		return nil, fmt.Errorf("unsupported agent type %q: only %q is supported", o.agentType, AgentTypeReAct)
	}

	toolSet := tk.GetTools()
	prompt := buildPrompt(tk.Dialect(), o.topK, toolSet)

	agentOpts := []agents.Option{
		agents.WithPrompt(prompt),
		agents.WithParserErrorHandler(agents.NewParserErrorHandler(nil)),
		agents.WithMaxIterations(o.maxIterations),
	}
	if o.callbacksHandler != nil {
		agentOpts = append(agentOpts, agents.WithCallbacksHandler(o.callbacksHandler))
	}
	if o.returnIntermediateSteps {
		agentOpts = append(agentOpts, agents.WithReturnIntermediateSteps())
	}

	return agents.Initialize(llm, toolSet, agents.ZeroShotReactDescription, agentOpts...)
}

// buildPrompt assembles the full agent prompt: the Looker dialect
// instructions (with dialect and row limit substituted) followed by the
// ReAct interaction structure. Tool names and descriptions are bound as
// partial variables so only input and agent_scratchpad vary per step.
func buildPrompt(dialect string, topK int, toolSet []tools.Tool) prompts.PromptTemplate {
	instructions := strings.NewReplacer(
		"{dialect}", dialect,
		"{top_k}", strconv.Itoa(topK),
	).Replace(lookerInstructions)

	return prompts.PromptTemplate{
		Template:       instructions + "\n" + reactStructure,
		TemplateFormat: prompts.TemplateFormatGoTemplate,
		InputVariables: []string{"input", "agent_scratchpad"},
		PartialVariables: map[string]any{
			"tool_names":        toolNames(toolSet),
			"tool_descriptions": toolDescriptions(toolSet),
			"history":           "",
		},
	}
}

func toolNames(toolSet []tools.Tool) string {
	names := make([]string, 0, len(toolSet))
	for _, tool := range toolSet {
		names = append(names, tool.Name())
	}
	return strings.Join(names, ", ")
}

func toolDescriptions(toolSet []tools.Tool) string {
	var sb strings.Builder
	for _, tool := range toolSet {
		fmt.Fprintf(&sb, "- %s: %s\n", tool.Name(), tool.Description())
	}
	return sb.String()
}
