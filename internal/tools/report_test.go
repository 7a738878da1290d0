package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/policyscan/policyscan/internal/policy"
)

func sampleView() *policy.ReportView {
	return &policy.ReportView{
		PolicyName:      "Acme Billing Policy",
		SourcePath:      "/tmp/acme.pdf",
		GeneratedAt:     "2024-06-01 10:30:00",
		TotalPages:      12,
		ProcessingTime:  "42.5s",
		TotalViolations: 1,
		Rules: []policy.RuleView{
			{
				ID:             "RULE-001",
				Name:           "Microsurgery add-on billed alone",
				Description:    "69990 requires a qualifying primary procedure",
				Classification: "mutual_exclusion",
				Label:          "mutual exclusion",
				CPTCodes:       []string{"69990"},
				SQL:            "select claim_id from claim_line where cpt_code = '69990'",
				Confidence:     85,
				Sources:        []policy.SourceView{{Title: "CMS NCCI Manual", URL: "https://cms.gov/ncci"}},
				QueryExecuted:  true,
				ViolationCount: 1,
				Columns:        []string{"claim_id"},
				Violations:     []map[string]any{{"claim_id": "CLM001"}},
			},
			{
				ID:             "RULE-002",
				Name:           "Therapy unit limit",
				Classification: "overutilization",
				Label:          "overutilization",
				SQL:            "select claim_id from claim_line where units > 4",
				Confidence:     70,
				QueryExecuted:  true,
			},
		},
	}
}

func TestRenderWritesReport(t *testing.T) {
	tool := NewReportTool()
	out := filepath.Join(t.TempDir(), "nested", "report.html")

	result, err := tool.Render(sampleView(), out)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("render failed: %q", result.Err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	for _, want := range []string{
		"Acme Billing Policy",
		"Microsurgery add-on billed alone",
		"badge-mutual_exclusion",
		"85%",
		"CLM001",
		"CMS NCCI Manual",
		"No violations found in claims database",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderEscapesContent(t *testing.T) {
	tool := NewReportTool()
	out := filepath.Join(t.TempDir(), "report.html")

	view := sampleView()
	view.Rules[0].Description = `<script>alert("x")</script>`
	result, err := tool.Render(view, out)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("render failed: %q", result.Err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "<script>alert") {
		t.Fatal("description not escaped")
	}
}

func TestExecuteRedirectsToRender(t *testing.T) {
	tool := NewReportTool()

	result, err := tool.Execute(context.Background(), map[string]any{"output_path": "x.html"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("agent path must not render")
	}
}
