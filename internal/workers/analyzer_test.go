package workers

import (
	"context"
	"testing"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
)

func TestParseRulesArray(t *testing.T) {
	content := "```json\n" + `[
		{"id": "RULE-001", "name": "First", "classification": "overutilization", "cpt_codes": ["97110"]},
		{"name": "Second", "classification": "bogus"},
		{"classification": "service_not_covered"}
	]` + "\n```"

	rules, err := parseRules(content)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	if rules[0].Classification != policy.Overutilization {
		t.Fatalf("unexpected classification %q", rules[0].Classification)
	}
	if rules[1].Classification != policy.MutualExclusion {
		t.Fatalf("unknown classification must default, got %q", rules[1].Classification)
	}
	if rules[1].ID != "RULE-002" {
		t.Fatalf("missing id must be generated, got %q", rules[1].ID)
	}
	if rules[2].Name != "Rule 3" {
		t.Fatalf("missing name must be generated, got %q", rules[2].Name)
	}
}

func TestParseRulesSingleObject(t *testing.T) {
	rules, err := parseRules(`{"id": "RULE-001", "name": "Only", "classification": "mutual_exclusion"}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].ID != "RULE-001" {
		t.Fatalf("single object not accepted: %+v", rules)
	}
}

func TestParseRulesInvalid(t *testing.T) {
	if _, err := parseRules("the document has no rules worth mentioning"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestAnalyzeWithScriptedProvider(t *testing.T) {
	loop := agent.NewLoop(agent.LoopOptions{Provider: provider.NewScriptedProvider()})
	analyzer := NewAnalyzer(loop)

	doc := &policy.ParsedDocument{
		Path:      "/tmp/policy.pdf",
		PageCount: 2,
		Pages: []policy.ParsedPage{
			{PageNumber: 1, Text: "CPT 69990 cannot be billed with non-microsurgery procedures. This is a mutual exclusion."},
			{PageNumber: 2, Text: "CPT 97110 has a maximum of 4 units per day. Cosmetic procedures are not covered."},
		},
	}

	rules, err := analyzer.Analyze(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	classes := map[policy.Classification]bool{}
	for _, r := range rules {
		classes[r.Classification] = true
	}
	if len(classes) != 3 {
		t.Fatalf("expected all three classifications, got %v", classes)
	}
}
