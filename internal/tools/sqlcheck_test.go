package tools

import (
	"context"
	"strings"
	"testing"
)

func TestValidateCleanQuery(t *testing.T) {
	tool := NewSQLTool()

	v := tool.Validate("SELECT claim_id, cpt_code FROM claim_line WHERE units > 4")
	if !v.Valid {
		t.Fatalf("expected valid, got error %q", v.Err)
	}
	if len(v.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", v.Warnings)
	}
	if len(v.TablesUsed) != 1 || v.TablesUsed[0] != "claim_line" {
		t.Fatalf("unexpected tables: %v", v.TablesUsed)
	}
}

func TestValidateUnknownTable(t *testing.T) {
	tool := NewSQLTool()

	v := tool.Validate("SELECT x FROM billing_events")
	if !v.Valid {
		t.Fatalf("unknown table must warn, not fail: %q", v.Err)
	}
	foundTable := false
	for _, w := range v.Warnings {
		if w == "unknown table: billing_events" {
			foundTable = true
		}
	}
	if !foundTable {
		t.Fatalf("expected unknown table warning, got %v", v.Warnings)
	}
}

func TestValidateUnknownColumn(t *testing.T) {
	tool := NewSQLTool()

	v := tool.Validate("SELECT procedure_code FROM claim_line")
	if !v.Valid {
		t.Fatalf("unknown column must warn, not fail: %q", v.Err)
	}
	if len(v.Warnings) != 1 || v.Warnings[0] != "unknown column: procedure_code" {
		t.Fatalf("expected unknown column warning, got %v", v.Warnings)
	}
}

func TestValidateResolvesAliases(t *testing.T) {
	tool := NewSQLTool()

	v := tool.Validate("SELECT cl.cpt_code FROM claim_line cl JOIN claim c ON cl.claim_id = c.claim_id")
	if !v.Valid {
		t.Fatalf("expected valid, got %q", v.Err)
	}
	if len(v.Warnings) != 0 {
		t.Fatalf("aliased columns flagged: %v", v.Warnings)
	}
	if len(v.TablesUsed) != 2 {
		t.Fatalf("expected both tables, got %v", v.TablesUsed)
	}
}

func TestValidateSyntaxError(t *testing.T) {
	tool := NewSQLTool()

	v := tool.Validate("SELEC claim_id FRM claim")
	if v.Valid {
		t.Fatal("unparsable SQL must be invalid")
	}
	if !strings.Contains(v.Err, "SQL syntax error") {
		t.Fatalf("expected syntax error message, got %q", v.Err)
	}
}

func TestSQLToolExecute(t *testing.T) {
	tool := NewSQLTool()

	result, err := tool.Execute(context.Background(), map[string]any{
		"sql": "SELECT claim_id FROM claim",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Err)
	}

	result, err = tool.Execute(context.Background(), map[string]any{
		"sql": "not a query at all",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure for bad SQL")
	}
	if result.Output == nil {
		t.Fatal("failed validation should still carry the validation output")
	}
}

func TestFormatPassesThroughUnparsable(t *testing.T) {
	tool := NewSQLTool()

	raw := "definitely not sql"
	if got := tool.Format(raw); got != raw {
		t.Fatalf("expected passthrough, got %q", got)
	}

	formatted := tool.Format("SELECT claim_id FROM claim")
	if !strings.Contains(strings.ToLower(formatted), "select") {
		t.Fatalf("unexpected formatted query %q", formatted)
	}
}
