// Package tools provides the tool framework and implementations for the
// pipeline workers.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Tool is the interface that all worker tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result is the uniform outcome of one tool invocation.
// Produced once per call and never mutated afterwards.
type Result struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Success creates a successful result.
func Success(tool string, output any) *Result {
	return &Result{Tool: tool, Success: true, Output: output}
}

// Failure creates a failed result.
func Failure(tool, errMsg string) *Result {
	return &Result{Tool: tool, Success: false, Err: errMsg}
}

// Content renders the result as message content for the conversation.
func (r *Result) Content() string {
	if !r.Success {
		return "Error: " + r.Err
	}
	if s, ok := r.Output.(string); ok {
		return s
	}
	out, err := json.MarshalIndent(r.Output, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", r.Output)
	}
	return string(out)
}

// Registry manages tool registration and execution.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	if _, ok := r.tools[tool.Name()]; !ok {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Definitions returns tool definitions in OpenAI format, in registration order.
func (r *Registry) Definitions() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return result
}

// Execute runs a tool by name with the given parameters.
// It never returns an error outcome outside the Result: unknown names,
// schema violations, execution errors, and panics all become failures.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (result *Result) {
	tool, ok := r.tools[name]
	if !ok {
		return Failure(name, "tool not found: "+name)
	}

	if issue := validateParams(tool.Parameters(), params); issue != "" {
		return Failure(name, issue)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Failure(name, fmt.Sprintf("tool panicked: %v", rec))
		}
	}()

	res, err := tool.Execute(ctx, params)
	if err != nil {
		return Failure(name, err.Error())
	}
	if res == nil {
		return Failure(name, "tool returned no result")
	}
	return res
}

// validateParams checks arguments against the tool's declared JSON schema.
// Returns an empty string when the arguments are valid.
func validateParams(schema, params map[string]any) string {
	if len(schema) == 0 {
		return ""
	}

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Sprintf("invalid parameter schema: %v", err)
	}
	var schemaObj any
	if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
		return fmt.Sprintf("schema unmarshal error: %v", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaObj); err != nil {
		return fmt.Sprintf("schema compile error: %v", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Sprintf("schema compile error: %v", err)
	}

	if params == nil {
		params = map[string]any{}
	}
	argBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("arguments are not valid JSON: %v", err)
	}
	var args any
	if err := json.Unmarshal(argBytes, &args); err != nil {
		return fmt.Sprintf("arguments are not valid JSON: %v", err)
	}

	if err := sch.Validate(args); err != nil {
		return fmt.Sprintf("schema validation failed: %v", err)
	}
	return ""
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
