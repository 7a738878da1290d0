package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

const scorerSystemPrompt = `You are a healthcare billing rule validator.
Validate billing rules by searching for supporting evidence.

## Confidence Scoring
- 90-100%: Multiple authoritative sources confirm the rule exactly
- 70-89%: Sources generally support the rule with minor variations
- 50-69%: Limited evidence or conflicting information
- 0-49%: Weak/no evidence or contradictory information

## Output Format
Return JSON: {"confidence": 85, "sources": [{"title": "", "url": "", "snippet": "", "relevance": 0.9}], "validation_notes": ["..."]}`

// defaultConfidence is used when no confidence can be extracted at all.
const defaultConfidence = 50

var confidenceRe = regexp.MustCompile(`confidence[:\s]+(\d+)`)

// scoring is the parsed confidence payload from the model.
type scoring struct {
	Confidence      float64             `json:"confidence"`
	Sources         []scoringSourceJSON `json:"sources"`
	ValidationNotes []string            `json:"validation_notes"`
}

type scoringSourceJSON struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// Scorer assigns confidence scores to generated rules using web evidence.
type Scorer struct {
	loop     *agent.Loop
	registry *tools.Registry
	logger   *slog.Logger
}

// NewScorer creates the scoring worker.
func NewScorer(loop *agent.Loop, search *tools.WebSearchTool) *Scorer {
	return &Scorer{
		loop:     loop,
		registry: tools.NewRegistry(search),
		logger:   slog.Default(),
	}
}

// Role returns the worker's role identifier.
func (s *Scorer) Role() string { return "scorer" }

// SystemPrompt returns the worker's system prompt.
func (s *Scorer) SystemPrompt() string { return scorerSystemPrompt }

// FormatInput renders a query rule as the opening user message.
func (s *Scorer) FormatInput(input any) string {
	qr, ok := input.(policy.QueryRule)
	if !ok {
		return fmt.Sprint(input)
	}
	rule := qr.Rule
	return fmt.Sprintf(`Validate the following billing rule and calculate a confidence score.

Rule ID: %s
Name: %s
Classification: %s
Description: %s
CPT Codes: %s

Use web_search to find supporting evidence from CMS guidelines and payer policies.`,
		rule.ID, rule.Name, rule.Classification, rule.Description,
		joinOrNone(rule.CPTCodes, ", "))
}

// Tools returns the worker's registry.
func (s *Scorer) Tools() *tools.Registry { return s.registry }

// MaxIterations returns the iteration cap.
func (s *Scorer) MaxIterations() int { return 5 }

// ProcessOutput parses the scoring payload out of the final reply.
// Layered: strict JSON decode, then a numeric pattern scan, then the
// default score with a note that parsing failed.
func (s *Scorer) ProcessOutput(resp *provider.ChatResponse, toolResults []*tools.Result, totalTokens int) *agent.Outcome {
	return &agent.Outcome{
		Success:     true,
		Output:      parseScoring(resp.Content),
		ToolResults: toolResults,
		TotalTokens: totalTokens,
	}
}

// Score runs the worker over a query rule.
func (s *Scorer) Score(ctx context.Context, qr policy.QueryRule) policy.ScoredRule {
	s.logger.Info("scoring rule", "rule", qr.Rule.ID)

	var data scoring
	outcome := s.loop.Run(ctx, s, qr)
	if parsed, ok := outcome.Output.(scoring); outcome.Success && ok {
		data = parsed
	} else {
		data = scoring{
			Confidence:      defaultConfidence,
			ValidationNotes: []string{fmt.Sprintf("Scoring failed: %s", outcome.Err)},
		}
	}

	sources := make([]policy.SearchSource, 0, len(data.Sources))
	for _, src := range data.Sources {
		relevance := src.Relevance
		if relevance <= 0 || relevance > 1 {
			relevance = 0.5
		}
		sources = append(sources, policy.SearchSource{
			Title:     src.Title,
			URL:       src.URL,
			Snippet:   src.Snippet,
			Relevance: relevance,
		})
	}

	scored := policy.ScoredRule{
		Rule:            qr,
		Confidence:      policy.ClampConfidence(data.Confidence),
		Sources:         sources,
		ValidationNotes: data.ValidationNotes,
	}
	s.logger.Info("rule scored", "rule", qr.Rule.ID, "confidence", scored.Confidence)
	return scored
}

func parseScoring(content string) scoring {
	jsonStr := extractJSON(content)
	var data scoring
	if err := json.Unmarshal([]byte(jsonStr), &data); err == nil {
		if data.Confidence == 0 && !strings.Contains(jsonStr, "confidence") {
			data.Confidence = defaultConfidence
		}
		return data
	}

	// Best-effort fallback: a stray confidence figure in prose.
	if m := confidenceRe.FindStringSubmatch(strings.ToLower(content)); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return scoring{Confidence: v, ValidationNotes: []string{"Could not parse structured response"}}
		}
	}
	return scoring{Confidence: defaultConfidence, ValidationNotes: []string{"Could not parse structured response"}}
}
