package workers

import (
	"strings"
	"testing"
)

func TestExtractJSONFenced(t *testing.T) {
	content := "Here is the result:\n```json\n{\"a\": 1}\n```\nDone."
	if got := extractJSON(content); got != `{"a": 1}` {
		t.Fatalf("unexpected extraction %q", got)
	}
}

func TestExtractJSONPlain(t *testing.T) {
	if got := extractJSON(`  {"a": 1}  `); got != `{"a": 1}` {
		t.Fatalf("unexpected extraction %q", got)
	}
}

func TestExtractSQLFromJSONField(t *testing.T) {
	sql, err := extractSQL(`{"sql": "SELECT claim_id FROM claim", "explanation": "x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if sql != "SELECT claim_id FROM claim" {
		t.Fatalf("unexpected sql %q", sql)
	}
}

func TestExtractSQLFromFencedBlock(t *testing.T) {
	sql, err := extractSQL("Use this query:\n```sql\nSELECT claim_id FROM claim\n```")
	if err != nil {
		t.Fatal(err)
	}
	if sql != "SELECT claim_id FROM claim" {
		t.Fatalf("unexpected sql %q", sql)
	}
}

func TestExtractSQLFromRawText(t *testing.T) {
	sql, err := extractSQL("  select claim_id from claim where units > 4  ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.ToLower(sql), "select") {
		t.Fatalf("unexpected sql %q", sql)
	}

	sql, err = extractSQL("WITH daily AS (SELECT 1) SELECT * FROM daily")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sql, "WITH") {
		t.Fatalf("unexpected sql %q", sql)
	}
}

func TestExtractSQLFailure(t *testing.T) {
	if _, err := extractSQL("I could not come up with a query."); err == nil {
		t.Fatal("expected extraction error")
	}
}
