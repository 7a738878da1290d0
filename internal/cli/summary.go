package cli

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/policyscan/policyscan/internal/policy"
)

// printReportSummary prints a per-rule digest after a pipeline run.
func printReportSummary(view *policy.ReportView) {
	fmt.Printf("\n%s (%d pages, %s)\n", color.CyanString(view.PolicyName), view.TotalPages, view.ProcessingTime)
	for _, rule := range view.Rules {
		conf := color.GreenString("%.0f%%", rule.Confidence)
		if rule.Confidence < 70 {
			conf = color.YellowString("%.0f%%", rule.Confidence)
		}
		if rule.Confidence < 50 {
			conf = color.RedString("%.0f%%", rule.Confidence)
		}
		fmt.Printf("  %s  %-40s %-20s %s", rule.ID, truncate(rule.Name, 40), rule.Label, conf)
		if rule.QueryExecuted {
			if rule.ViolationCount > 0 {
				fmt.Printf("  %s", color.RedString("%d violations", rule.ViolationCount))
			} else {
				fmt.Printf("  %s", color.GreenString("no violations"))
			}
		}
		fmt.Println()
	}
	if view.TotalViolations > 0 {
		fmt.Printf("\n%s\n", color.RedString("Total violations: %d", view.TotalViolations))
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
