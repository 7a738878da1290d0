package policy

// ReportView is the flattened, display-ready projection of a Report that
// the HTML renderer consumes.
type ReportView struct {
	PolicyName      string
	SourcePath      string
	GeneratedAt     string
	TotalPages      int
	ProcessingTime  string
	TotalViolations int
	Rules           []RuleView
}

// RuleView is one rule flattened for display.
type RuleView struct {
	ID             string
	Name           string
	Description    string
	Classification string
	Label          string
	CPTCodes       []string
	SourceText     string
	SQL            string
	Confidence     float64
	Sources        []SourceView
	ViolationCount int
	Violations     []map[string]any
	Columns        []string
	QueryExecuted  bool
}

// SourceView is one evidence link flattened for display.
type SourceView struct {
	Title string
	URL   string
}

// maxDisplayedViolations caps the violation rows shown per rule.
const maxDisplayedViolations = 10

// View builds the display projection for rendering.
func (r *Report) View() *ReportView {
	view := &ReportView{
		PolicyName:      r.PolicyName,
		SourcePath:      r.SourcePath,
		GeneratedAt:     r.GeneratedAt.Format("2006-01-02 15:04:05"),
		TotalPages:      r.TotalPages,
		ProcessingTime:  r.ProcessingTime.Round(100_000_000).String(),
		TotalViolations: r.TotalViolations,
		Rules:           make([]RuleView, 0, len(r.Rules)),
	}
	for _, sr := range r.Rules {
		rule := sr.Rule.Rule
		violations := sr.QueryResult.Violations
		if len(violations) > maxDisplayedViolations {
			violations = violations[:maxDisplayedViolations]
		}
		sources := make([]SourceView, 0, len(sr.Sources))
		for _, s := range sr.Sources {
			sources = append(sources, SourceView{Title: s.Title, URL: s.URL})
		}
		view.Rules = append(view.Rules, RuleView{
			ID:             rule.ID,
			Name:           rule.Name,
			Description:    rule.Description,
			Classification: string(rule.Classification),
			Label:          classificationLabel(rule.Classification),
			CPTCodes:       rule.CPTCodes,
			SourceText:     rule.SourceText,
			SQL:            sr.Rule.SQLFormatted,
			Confidence:     sr.Confidence,
			Sources:        sources,
			ViolationCount: sr.QueryResult.ViolationCount,
			Violations:     violations,
			Columns:        sr.QueryResult.Columns,
			QueryExecuted:  sr.QueryResult.Executed,
		})
	}
	return view
}

func classificationLabel(c Classification) string {
	switch c {
	case Overutilization:
		return "overutilization"
	case ServiceNotCovered:
		return "service not covered"
	default:
		return "mutual exclusion"
	}
}
