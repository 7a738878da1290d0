package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

const reporterSystemPrompt = `You are a report generation specialist.
Your task is to compile billing rules into a formatted HTML report.

## Report Requirements

1. Include all extracted rules with their classifications
2. Show SQL implementations with proper formatting
3. Display confidence scores with visual indicators
4. List validation sources with links
5. Provide summary statistics

Use the html_report tool to generate the final HTML file.`

// Reporter assembles the final report and renders it to HTML. The primary
// path calls the report tool directly with already-scored rules.
type Reporter struct {
	loop       *agent.Loop
	registry   *tools.Registry
	reportTool *tools.ReportTool
	logger     *slog.Logger
}

// NewReporter creates the reporting worker.
func NewReporter(loop *agent.Loop, reportTool *tools.ReportTool) *Reporter {
	return &Reporter{
		loop:       loop,
		registry:   tools.NewRegistry(reportTool),
		reportTool: reportTool,
		logger:     slog.Default(),
	}
}

// Role returns the worker's role identifier.
func (r *Reporter) Role() string { return "reporter" }

// SystemPrompt returns the worker's system prompt.
func (r *Reporter) SystemPrompt() string { return reporterSystemPrompt }

// FormatInput renders the report data as the opening user message.
func (r *Reporter) FormatInput(input any) string {
	return fmt.Sprintf("Generate an HTML report for the policy analysis. Report data: %v", input)
}

// Tools returns the worker's registry.
func (r *Reporter) Tools() *tools.Registry { return r.registry }

// MaxIterations returns the iteration cap.
func (r *Reporter) MaxIterations() int { return 3 }

// ProcessOutput succeeds when a html_report tool call succeeded.
func (r *Reporter) ProcessOutput(resp *provider.ChatResponse, toolResults []*tools.Result, totalTokens int) *agent.Outcome {
	for _, result := range toolResults {
		if result.Tool == "html_report" && result.Success {
			return &agent.Outcome{
				Success:     true,
				Output:      result.Output,
				ToolResults: toolResults,
				TotalTokens: totalTokens,
			}
		}
	}
	return &agent.Outcome{
		Err:         "HTML report generation failed",
		ToolResults: toolResults,
		TotalTokens: totalTokens,
	}
}

// GenerateReport builds the report from scored rules and renders it to
// outputPath.
func (r *Reporter) GenerateReport(ctx context.Context, policyName, sourcePath string, rules []policy.ScoredRule, outputPath string, totalPages int, processingTime time.Duration) (*policy.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.logger.Info("generating report", "policy", policyName)

	totalViolations := 0
	for _, rule := range rules {
		totalViolations += rule.QueryResult.ViolationCount
	}

	report := &policy.Report{
		PolicyName:      policyName,
		SourcePath:      sourcePath,
		GeneratedAt:     time.Now(),
		Rules:           rules,
		TotalPages:      totalPages,
		ProcessingTime:  processingTime,
		TotalViolations: totalViolations,
	}

	result, err := r.reportTool.Render(report.View(), outputPath)
	if err != nil {
		return report, fmt.Errorf("render report: %w", err)
	}
	if !result.Success {
		return report, fmt.Errorf("render report: %s", result.Err)
	}

	r.logger.Info("report generated", "path", outputPath)
	return report, nil
}
