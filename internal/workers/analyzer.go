package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

const analyzerSystemPrompt = `You are a healthcare billing rule analyst.
Identify and classify billing rules from policy document text.

## Rule Classifications
1. **mutual_exclusion**: Services that cannot be billed together
2. **overutilization**: Limits on service frequency or units
3. **service_not_covered**: Services not covered under specific conditions

## Output Format
Return a JSON array with objects containing: id, name, description, classification,
source_text, cpt_codes, icd10_codes, modifiers, conditions.

Example:
` + "```json" + `
[{"id": "RULE-001", "name": "Microsurgery Add-on Restriction",
  "description": "CPT 69990 can only be billed with approved primary procedures",
  "classification": "mutual_exclusion", "source_text": "Code 69990 is only billable...",
  "cpt_codes": ["69990"], "icd10_codes": [], "modifiers": [], "conditions": []}]
` + "```"

// Analyzer extracts and classifies billing rules from parsed document text.
type Analyzer struct {
	loop     *agent.Loop
	registry *tools.Registry
	logger   *slog.Logger
}

// NewAnalyzer creates the analysis worker.
func NewAnalyzer(loop *agent.Loop) *Analyzer {
	return &Analyzer{
		loop:     loop,
		registry: tools.NewRegistry(),
		logger:   slog.Default(),
	}
}

// Role returns the worker's role identifier.
func (a *Analyzer) Role() string { return "analyzer" }

// SystemPrompt returns the worker's system prompt.
func (a *Analyzer) SystemPrompt() string { return analyzerSystemPrompt }

// FormatInput renders the document text as the opening user message.
func (a *Analyzer) FormatInput(input any) string {
	text := ""
	switch v := input.(type) {
	case *policy.ParsedDocument:
		text = v.FullText()
	case string:
		text = v
	default:
		text = fmt.Sprint(v)
	}
	return fmt.Sprintf("Analyze the following policy document text and extract all billing rules.\n\nDocument Text:\n---\n%s\n---\n\nReturn your analysis as a JSON array.", text)
}

// Tools returns the worker's registry. The analyzer uses no tools.
func (a *Analyzer) Tools() *tools.Registry { return a.registry }

// MaxIterations returns the iteration cap.
func (a *Analyzer) MaxIterations() int { return 3 }

// ProcessOutput parses the rule array out of the final model reply.
func (a *Analyzer) ProcessOutput(resp *provider.ChatResponse, toolResults []*tools.Result, totalTokens int) *agent.Outcome {
	rules, err := parseRules(resp.Content)
	if err != nil {
		return &agent.Outcome{
			Err:         fmt.Sprintf("failed to parse rules: %v", err),
			ToolResults: toolResults,
			TotalTokens: totalTokens,
		}
	}
	return &agent.Outcome{
		Success:     true,
		Output:      rules,
		ToolResults: toolResults,
		TotalTokens: totalTokens,
	}
}

// Analyze runs the worker over a parsed document.
func (a *Analyzer) Analyze(ctx context.Context, doc *policy.ParsedDocument) ([]policy.ExtractedRule, error) {
	a.logger.Info("analyzing document", "path", doc.Path)
	outcome := a.loop.Run(ctx, a, doc)
	if !outcome.Success {
		return nil, fmt.Errorf("analysis failed: %s", outcome.Err)
	}
	rules, ok := outcome.Output.([]policy.ExtractedRule)
	if !ok {
		return nil, fmt.Errorf("analysis produced unexpected output type %T", outcome.Output)
	}
	a.logger.Info("extracted rules", "count", len(rules))
	return rules, nil
}

type ruleJSON struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Classification string   `json:"classification"`
	SourceText     string   `json:"source_text"`
	CPTCodes       []string `json:"cpt_codes"`
	ICD10Codes     []string `json:"icd10_codes"`
	Modifiers      []string `json:"modifiers"`
	Conditions     []string `json:"conditions"`
}

// parseRules decodes a JSON rule array, accepting a bare object as a
// single-element array. Missing ids and names get generated fallbacks;
// unknown classifications default to mutual_exclusion.
func parseRules(content string) ([]policy.ExtractedRule, error) {
	jsonStr := extractJSON(content)

	var items []ruleJSON
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		var single ruleJSON
		if err2 := json.Unmarshal([]byte(jsonStr), &single); err2 != nil {
			return nil, err
		}
		items = []ruleJSON{single}
	}

	rules := make([]policy.ExtractedRule, 0, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = fmt.Sprintf("RULE-%03d", i+1)
		}
		if item.Name == "" {
			item.Name = fmt.Sprintf("Rule %d", i+1)
		}
		rules = append(rules, policy.ExtractedRule{
			ID:             item.ID,
			Name:           item.Name,
			Description:    item.Description,
			Classification: policy.ParseClassification(item.Classification),
			SourceText:     item.SourceText,
			CPTCodes:       item.CPTCodes,
			ICD10Codes:     item.ICD10Codes,
			Modifiers:      item.Modifiers,
			Conditions:     item.Conditions,
		})
	}
	return rules, nil
}
