package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/store"
	"github.com/policyscan/policyscan/internal/tools"
)

func setupPipeline(t *testing.T, claims *store.ClaimsDB) *Pipeline {
	t.Helper()
	loop := agent.NewLoop(agent.LoopOptions{Provider: provider.NewScriptedProvider()})
	return New(loop,
		tools.NewPDFTool(),
		tools.NewOCRTool(tools.NewHTTPOCRClient("http://localhost:1", time.Second)),
		tools.NewWebSearchTool(5),
		tools.NewReportTool(),
		3,
		claims,
	)
}

func setupClaims(t *testing.T) *store.ClaimsDB {
	t.Helper()
	db, err := store.OpenClaimsDB(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.LoadSampleData(); err != nil {
		t.Fatal(err)
	}
	return db
}

func scoredRule(id, sql string) policy.ScoredRule {
	return policy.ScoredRule{
		Rule: policy.QueryRule{
			Rule: policy.ExtractedRule{ID: id},
			SQL:  sql,
		},
		Confidence: 80,
	}
}

func TestExecuteQueriesIsolatesFailures(t *testing.T) {
	pipe := setupPipeline(t, setupClaims(t))

	rules := []policy.ScoredRule{
		scoredRule("RULE-001", "SELECT claim_id FROM claim_line WHERE cpt_code = '97110' AND units > 4"),
		scoredRule("RULE-002", "SELECT nope FROM missing_table"),
		scoredRule("RULE-003", ""),
		scoredRule("RULE-004", "SELECT claim_id FROM claim_line WHERE cpt_code = '15780'"),
	}

	got := pipe.ExecuteQueries(rules)

	if got[0].QueryResult.Error != "" || got[0].QueryResult.ViolationCount != 1 {
		t.Fatalf("good query failed: %+v", got[0].QueryResult)
	}
	if got[1].QueryResult.Error == "" {
		t.Fatal("bad query must record its error")
	}
	if got[2].QueryResult.Error != "no query text" {
		t.Fatalf("empty SQL must be flagged, got %+v", got[2].QueryResult)
	}
	if got[2].QueryResult.Executed {
		t.Fatal("rule without query text must not be marked executed")
	}
	if got[3].QueryResult.ViolationCount != 1 {
		t.Fatalf("later query must run despite earlier failures: %+v", got[3].QueryResult)
	}
	for _, i := range []int{0, 1, 3} {
		if !got[i].QueryResult.Executed {
			t.Fatalf("rule %d not marked executed", i)
		}
	}
}

func TestExecuteQueriesWithoutClaimsDB(t *testing.T) {
	pipe := setupPipeline(t, nil)

	rules := []policy.ScoredRule{scoredRule("RULE-001", "SELECT claim_id FROM claim")}
	got := pipe.ExecuteQueries(rules)
	if got[0].QueryResult.Executed {
		t.Fatal("no claims db must leave results untouched")
	}
}

func TestGenerateOnlyKeepsOrder(t *testing.T) {
	pipe := setupPipeline(t, nil)

	rules := []policy.ExtractedRule{
		{ID: "RULE-001", Name: "Microsurgery", CPTCodes: []string{"69990"}},
		{ID: "RULE-002", Name: "Therapy limit", CPTCodes: []string{"97110"}},
		{ID: "RULE-003", Name: "Cosmetic exclusion", CPTCodes: []string{"15780"}},
	}

	for _, workerCount := range []int{1, 3} {
		queryRules := pipe.GenerateOnly(context.Background(), rules, workerCount)
		if len(queryRules) != 3 {
			t.Fatalf("expected 3 query rules, got %d", len(queryRules))
		}
		for i, qr := range queryRules {
			if qr.Rule.ID != rules[i].ID {
				t.Fatalf("workers=%d: order broken at %d: %s", workerCount, i, qr.Rule.ID)
			}
			if qr.SQL == "" {
				t.Fatalf("workers=%d: rule %s has no SQL", workerCount, qr.Rule.ID)
			}
		}
	}
}
