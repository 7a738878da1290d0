package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

// Worker is a role-specific configuration driving the shared loop.
// Differences between workers are configuration, not control flow.
type Worker interface {
	// Role returns the worker's role identifier.
	Role() string
	// SystemPrompt returns the worker's system prompt.
	SystemPrompt() string
	// FormatInput renders the input value as the opening user message.
	FormatInput(input any) string
	// Tools returns the worker's tool registry. May be empty.
	Tools() *tools.Registry
	// MaxIterations returns the iteration cap for one run.
	MaxIterations() int
	// ProcessOutput turns the final model reply, the collected tool
	// results, and the token total into a typed outcome.
	ProcessOutput(resp *provider.ChatResponse, toolResults []*tools.Result, totalTokens int) *Outcome
}

// Outcome is the single result of one loop run.
type Outcome struct {
	Success     bool
	Output      any
	Err         string
	ToolResults []*tools.Result
	TotalTokens int
}

// LoopOptions configures the shared loop.
type LoopOptions struct {
	Provider    provider.LLMProvider
	Model       string
	MaxTokens   int
	Temperature float64
}

// Loop drives a worker through bounded rounds of model call and tool
// execution until the model stops requesting tools or the cap is hit.
type Loop struct {
	provider    provider.LLMProvider
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewLoop creates a loop over the given provider.
func NewLoop(opts LoopOptions) *Loop {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Loop{
		provider:    opts.Provider,
		model:       opts.Model,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		logger:      slog.Default(),
	}
}

// Run executes one bounded loop for the worker over the input.
// Exactly one outcome per call. The conversation is fresh each run.
func (l *Loop) Run(ctx context.Context, w Worker, input any) *Outcome {
	runID := uuid.NewString()
	log := l.logger.With("run_id", runID, "role", w.Role())

	conv := NewConversation()
	conv.AddSystem(w.SystemPrompt())
	conv.AddUser(w.FormatInput(input))

	registry := w.Tools()
	defs := providerTools(registry)

	maxIterations := w.MaxIterations()
	totalTokens := 0
	var toolResults []*tools.Result

	for iteration := 0; iteration < maxIterations; iteration++ {
		log.Debug("loop iteration", "iteration", iteration+1, "max", maxIterations)

		resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    conv.ProviderMessages(),
			Tools:       defs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			log.Error("chat failed", "error", err)
			return &Outcome{
				Err:         fmt.Sprintf("chat failed: %v", err),
				ToolResults: toolResults,
				TotalTokens: totalTokens,
			}
		}

		totalTokens += resp.Usage.TotalTokens
		conv.AddAssistant(resp.Content, resp.ToolCalls)

		if !resp.HasToolCalls() {
			return w.ProcessOutput(resp, toolResults, totalTokens)
		}

		// Dispatch in the order the model requested. A failing call never
		// aborts the remaining calls in the same round.
		for _, tc := range resp.ToolCalls {
			log.Debug("executing tool", "tool", tc.Name)
			result := registry.Execute(ctx, tc.Name, tc.Arguments)
			toolResults = append(toolResults, result)
			conv.AddToolResult(tc.ID, tc.Name, result.Content(), !result.Success)
		}
	}

	log.Warn("max iterations reached", "max", maxIterations)
	return &Outcome{
		Err:         fmt.Sprintf("max iterations (%d) reached", maxIterations),
		ToolResults: toolResults,
		TotalTokens: totalTokens,
	}
}

// providerTools converts a registry into provider tool definitions.
func providerTools(registry *tools.Registry) []provider.ToolDefinition {
	if registry == nil || registry.Len() == 0 {
		return nil
	}
	list := registry.List()
	defs := make([]provider.ToolDefinition, len(list))
	for i, t := range list {
		defs[i] = provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}
	return defs
}
