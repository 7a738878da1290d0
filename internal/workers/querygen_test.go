package workers

import (
	"context"
	"testing"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
)

// sequencedProvider replays one canned reply per chat call.
type sequencedProvider struct {
	replies []string
	calls   int
}

func (p *sequencedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	reply := p.replies[len(p.replies)-1]
	if p.calls < len(p.replies) {
		reply = p.replies[p.calls]
	}
	p.calls++
	return &provider.ChatResponse{Content: reply, Usage: provider.Usage{TotalTokens: 10}}, nil
}

func (p *sequencedProvider) DefaultModel() string { return "sequenced" }

func TestGenerateRetriesOnWarnings(t *testing.T) {
	prov := &sequencedProvider{replies: []string{
		`{"sql": "SELECT procedure_code FROM claim_line"}`,
		`{"sql": "SELECT cpt_code FROM claim_line"}`,
	}}
	gen := NewQueryGen(agent.NewLoop(agent.LoopOptions{Provider: prov}), 3)

	qr := gen.Generate(context.Background(), policy.ExtractedRule{ID: "RULE-001", Name: "Test"})
	if qr.SQL != "SELECT cpt_code FROM claim_line" {
		t.Fatalf("expected corrected SQL, got %q", qr.SQL)
	}
	if qr.RetryCount != 1 {
		t.Fatalf("expected 1 retry, got %d", qr.RetryCount)
	}
	if len(qr.ValidationWarnings) != 0 {
		t.Fatalf("expected clean validation, got %v", qr.ValidationWarnings)
	}
}

func TestGenerateFirstAttemptClean(t *testing.T) {
	prov := &sequencedProvider{replies: []string{
		`{"sql": "SELECT claim_id FROM claim_line WHERE units > 4"}`,
	}}
	gen := NewQueryGen(agent.NewLoop(agent.LoopOptions{Provider: prov}), 3)

	qr := gen.Generate(context.Background(), policy.ExtractedRule{ID: "RULE-001"})
	if qr.RetryCount != 0 {
		t.Fatalf("clean first attempt must not count retries, got %d", qr.RetryCount)
	}
	if prov.calls != 1 {
		t.Fatalf("expected exactly one chat call, got %d", prov.calls)
	}
}

func TestGenerateExhaustionKeepsBestEffort(t *testing.T) {
	prov := &sequencedProvider{replies: []string{
		`{"sql": "SELECT procedure_code FROM claim_line"}`,
	}}
	gen := NewQueryGen(agent.NewLoop(agent.LoopOptions{Provider: prov}), 2)

	qr := gen.Generate(context.Background(), policy.ExtractedRule{ID: "RULE-001"})
	if qr.SQL == "" {
		t.Fatal("exhaustion must keep the last query")
	}
	if len(qr.ValidationWarnings) != 1 {
		t.Fatalf("expected lingering warning, got %v", qr.ValidationWarnings)
	}
	if qr.RetryCount != 2 {
		t.Fatalf("retry count must cap at max, got %d", qr.RetryCount)
	}
}

func TestGenerateWithScriptedProvider(t *testing.T) {
	gen := NewQueryGen(agent.NewLoop(agent.LoopOptions{Provider: provider.NewScriptedProvider()}), 3)

	rule := policy.ExtractedRule{
		ID:             "RULE-001",
		Name:           "Microsurgery Add-on Restriction",
		Classification: policy.MutualExclusion,
		CPTCodes:       []string{"69990"},
	}
	qr := gen.Generate(context.Background(), rule)
	if qr.SQL == "" {
		t.Fatal("expected generated SQL")
	}
	if len(qr.ValidationWarnings) != 0 {
		t.Fatalf("scripted query should validate cleanly, got %v", qr.ValidationWarnings)
	}
	if qr.SQLFormatted == "" {
		t.Fatal("expected formatted SQL")
	}
}
