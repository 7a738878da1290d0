package tools

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/policyscan/policyscan/internal/policy"
)

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

// ReportTool renders the policy report view to an HTML file.
type ReportTool struct{}

// NewReportTool creates a new HTML report tool.
func NewReportTool() *ReportTool {
	return &ReportTool{}
}

// Name returns the tool identifier.
func (t *ReportTool) Name() string { return "html_report" }

// Description returns the tool description for the LLM.
func (t *ReportTool) Description() string {
	return "Generate an HTML report from extracted rules and their queries."
}

// Parameters returns the JSON Schema for tool parameters.
func (t *ReportTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"output_path": map[string]any{
				"type":        "string",
				"description": "Path to save the HTML report.",
			},
		},
		"required": []any{"output_path"},
	}
}

// Execute is the agent-path entry. Report data does not round-trip through
// the conversation; the reporting worker calls Render directly.
func (t *ReportTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	return Failure(t.Name(), "html_report is invoked directly by the reporting worker"), nil
}

// Render writes the report view as HTML to outputPath.
func (t *ReportTool) Render(view *policy.ReportView, outputPath string) (*Result, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return Failure(t.Name(), fmt.Sprintf("render report: %v", err)), nil
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Failure(t.Name(), fmt.Sprintf("create output dir: %v", err)), nil
		}
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return Failure(t.Name(), fmt.Sprintf("write report: %v", err)), nil
	}
	abs, err := filepath.Abs(outputPath)
	if err != nil {
		abs = outputPath
	}
	return Success(t.Name(), map[string]any{"path": abs, "size": buf.Len()}), nil
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Policy Report - {{.PolicyName}}</title>
    <style>
        :root {
            --primary: #2563eb; --success: #16a34a; --warning: #ca8a04; --danger: #dc2626;
            --gray-100: #f3f4f6; --gray-200: #e5e7eb; --gray-700: #374151; --gray-900: #111827;
        }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6; color: var(--gray-900); max-width: 1200px; margin: 0 auto; padding: 2rem; background: var(--gray-100); }
        .header { background: white; padding: 2rem; border-radius: 8px; margin-bottom: 2rem; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
        h1 { color: var(--primary); margin: 0 0 0.5rem 0; }
        .meta { color: var(--gray-700); font-size: 0.9rem; }
        .stats { display: flex; gap: 2rem; margin-top: 1rem; }
        .stat { background: var(--gray-100); padding: 0.5rem 1rem; border-radius: 4px; }
        .stat-value { font-size: 1.5rem; font-weight: bold; color: var(--primary); }
        .stat-label { font-size: 0.75rem; color: var(--gray-700); }
        .rule { background: white; padding: 1.5rem; border-radius: 8px; margin-bottom: 1.5rem; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
        .rule h2 { margin: 0 0 1rem 0; display: flex; align-items: center; gap: 0.5rem; }
        .badge { display: inline-block; padding: 0.25rem 0.75rem; border-radius: 9999px; font-size: 0.75rem; font-weight: 600; text-transform: uppercase; }
        .badge-mutual_exclusion { background: #dbeafe; color: #1d4ed8; }
        .badge-overutilization { background: #fef3c7; color: #92400e; }
        .badge-service_not_covered { background: #fee2e2; color: #991b1b; }
        .confidence { display: flex; align-items: center; gap: 0.5rem; margin: 1rem 0; }
        .confidence-bar { flex: 1; height: 8px; background: var(--gray-200); border-radius: 4px; overflow: hidden; max-width: 200px; }
        .confidence-fill { height: 100%; background: var(--primary); }
        .sql-block { background: var(--gray-900); color: #e5e7eb; padding: 1rem; border-radius: 4px; overflow-x: auto;
            font-family: 'Monaco', 'Menlo', monospace; font-size: 0.875rem; white-space: pre; }
        .sources { margin-top: 1rem; padding-top: 1rem; border-top: 1px solid var(--gray-200); }
        .sources h3 { font-size: 0.875rem; color: var(--gray-700); margin: 0 0 0.5rem 0; }
        .sources ul { margin: 0; padding-left: 1.5rem; font-size: 0.875rem; }
        .sources a { color: var(--primary); }
        .violations { margin-top: 1rem; padding: 1rem; background: #fef2f2; border-radius: 4px; border-left: 4px solid var(--danger); }
        .violations h3 { margin: 0 0 0.5rem 0; color: var(--danger); font-size: 0.9rem; }
        .violations-table { width: 100%; border-collapse: collapse; font-size: 0.8rem; margin-top: 0.5rem; }
        .violations-table th { background: var(--gray-200); padding: 0.5rem; text-align: left; border-bottom: 1px solid var(--gray-700); }
        .violations-table td { padding: 0.5rem; border-bottom: 1px solid var(--gray-200); }
        .no-violations { color: var(--success); padding: 0.5rem; background: #f0fdf4; border-radius: 4px; margin-top: 1rem; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.PolicyName}}</h1>
        <p class="meta">Generated: {{.GeneratedAt}}</p>
        <div class="stats">
            <div class="stat"><div class="stat-value">{{len .Rules}}</div><div class="stat-label">Rules</div></div>
            <div class="stat"><div class="stat-value">{{.TotalViolations}}</div><div class="stat-label">Violations Found</div></div>
            <div class="stat"><div class="stat-value">{{.TotalPages}}</div><div class="stat-label">Pages</div></div>
        </div>
    </div>
    {{range .Rules}}
    <div class="rule">
        <h2>{{.Name}}<span class="badge badge-{{.Classification}}">{{.Label}}</span></h2>
        <p>{{.Description}}</p>
        <div class="confidence">
            <span>Confidence:</span>
            <div class="confidence-bar"><div class="confidence-fill" style="width: {{printf "%.0f" .Confidence}}%"></div></div>
            <span>{{printf "%.0f" .Confidence}}%</span>
        </div>
        <h3>SQL Implementation</h3>
        <div class="sql-block">{{.SQL}}</div>
        {{if .QueryExecuted}}
            {{if gt .ViolationCount 0}}
            <div class="violations">
                <h3>&#9888; {{.ViolationCount}} Violation(s) Found</h3>
                <table class="violations-table">
                    <thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
                    <tbody>
                    {{$cols := .Columns}}
                    {{range .Violations}}
                        {{$row := .}}
                        <tr>{{range $cols}}<td>{{index $row .}}</td>{{end}}</tr>
                    {{end}}
                    </tbody>
                </table>
                {{if gt .ViolationCount 10}}<p style="font-size:0.8rem;color:#374151;">Showing first 10 of {{.ViolationCount}} violations</p>{{end}}
            </div>
            {{else}}
            <div class="no-violations">&#10003; No violations found in claims database</div>
            {{end}}
        {{end}}
        {{if .Sources}}
        <div class="sources">
            <h3>Validation Sources</h3>
            <ul>{{range .Sources}}<li><a href="{{.URL}}" target="_blank">{{.Title}}</a></li>{{end}}</ul>
        </div>
        {{end}}
    </div>
    {{end}}
</body>
</html>`
