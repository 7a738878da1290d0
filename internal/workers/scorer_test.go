package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

func TestParseScoringJSON(t *testing.T) {
	content := "```json\n" + `{"confidence": 85, "sources": [{"title": "CMS", "url": "https://cms.gov", "relevance": 0.9}], "validation_notes": ["ok"]}` + "\n```"

	got := parseScoring(content)
	if got.Confidence != 85 {
		t.Fatalf("expected 85, got %v", got.Confidence)
	}
	if len(got.Sources) != 1 || got.Sources[0].Title != "CMS" {
		t.Fatalf("sources not parsed: %+v", got.Sources)
	}
}

func TestParseScoringProseFallback(t *testing.T) {
	got := parseScoring("Based on my research, I estimate a confidence: 72 for this rule.")
	if got.Confidence != 72 {
		t.Fatalf("expected prose fallback 72, got %v", got.Confidence)
	}
	if len(got.ValidationNotes) != 1 {
		t.Fatal("fallback must note the parse failure")
	}
}

func TestParseScoringDefault(t *testing.T) {
	got := parseScoring("I have no idea.")
	if got.Confidence != defaultConfidence {
		t.Fatalf("expected default %d, got %v", defaultConfidence, got.Confidence)
	}
}

func TestScoreNormalizesRelevanceAndClamps(t *testing.T) {
	prov := &sequencedProvider{replies: []string{
		`{"confidence": 180, "sources": [{"title": "A", "url": "u", "relevance": 0.0}, {"title": "B", "url": "u", "relevance": 0.7}]}`,
	}}
	scorer := NewScorer(agent.NewLoop(agent.LoopOptions{Provider: prov}), tools.NewWebSearchTool(5))

	scored := scorer.Score(context.Background(), policy.QueryRule{Rule: policy.ExtractedRule{ID: "RULE-001"}})
	if scored.Confidence != 100 {
		t.Fatalf("confidence not clamped: %v", scored.Confidence)
	}
	if scored.Sources[0].Relevance != 0.5 {
		t.Fatalf("out-of-range relevance not normalized: %v", scored.Sources[0].Relevance)
	}
	if scored.Sources[1].Relevance != 0.7 {
		t.Fatalf("valid relevance altered: %v", scored.Sources[1].Relevance)
	}
}

func TestScoreWithScriptedProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a class="result__a" href="https://cms.gov/ncci">CMS NCCI</a>`))
	}))
	defer srv.Close()

	loop := agent.NewLoop(agent.LoopOptions{Provider: provider.NewScriptedProvider()})
	scorer := NewScorer(loop, tools.NewWebSearchToolWithEndpoint(srv.URL, 5))

	qr := policy.QueryRule{Rule: policy.ExtractedRule{
		ID:       "RULE-001",
		Name:     "Microsurgery Add-on Restriction",
		CPTCodes: []string{"69990"},
	}}
	scored := scorer.Score(context.Background(), qr)
	if scored.Confidence != 85 {
		t.Fatalf("expected scripted confidence 85, got %v", scored.Confidence)
	}
	if len(scored.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(scored.Sources))
	}
	if len(scored.ValidationNotes) == 0 {
		t.Fatal("expected validation notes")
	}
}
