// Package policy defines the domain model shared across the pipeline stages.
package policy

import (
	"strings"
	"time"
)

// Classification labels a billing rule by the kind of restriction it imposes.
type Classification string

const (
	// MutualExclusion marks services that cannot be billed together.
	MutualExclusion Classification = "mutual_exclusion"
	// Overutilization marks limits on service frequency or units.
	Overutilization Classification = "overutilization"
	// ServiceNotCovered marks services not covered under specific conditions.
	ServiceNotCovered Classification = "service_not_covered"
)

// ParseClassification maps a raw string to a known classification.
// Unknown values default to MutualExclusion.
func ParseClassification(s string) Classification {
	switch Classification(strings.TrimSpace(strings.ToLower(s))) {
	case Overutilization:
		return Overutilization
	case ServiceNotCovered:
		return ServiceNotCovered
	default:
		return MutualExclusion
	}
}

// OCRBox is a single recognized text region on a page.
type OCRBox struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box,omitempty"`
}

// ParsedPage holds the recognized content of one document page.
type ParsedPage struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Boxes      []OCRBox `json:"boxes,omitempty"`
}

// ParsedDocument holds the recognized content of a whole document.
type ParsedDocument struct {
	Path      string       `json:"path"`
	PageCount int          `json:"page_count"`
	Pages     []ParsedPage `json:"pages"`
}

// FullText joins all page texts with blank lines between pages.
func (d *ParsedDocument) FullText() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n\n")
}

// ExtractedRule is a billing rule identified in a policy document.
// Immutable once produced by the analysis stage.
type ExtractedRule struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Classification Classification `json:"classification"`
	SourceText     string         `json:"source_text"`
	CPTCodes       []string       `json:"cpt_codes"`
	ICD10Codes     []string       `json:"icd10_codes"`
	Modifiers      []string       `json:"modifiers"`
	Conditions     []string       `json:"conditions"`
}

// QueryRule wraps an ExtractedRule with its generated claims query.
type QueryRule struct {
	Rule               ExtractedRule `json:"rule"`
	SQL                string        `json:"sql"`
	SQLFormatted       string        `json:"sql_formatted"`
	ValidationWarnings []string      `json:"validation_warnings,omitempty"`
	RetryCount         int           `json:"retry_count"`
}

// SearchSource is a web evidence source backing a rule's confidence score.
type SearchSource struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// QueryResult records the outcome of running a rule's query against the
// claims database. The zero value means the query was never executed.
type QueryResult struct {
	Executed       bool             `json:"executed"`
	ViolationCount int              `json:"violation_count"`
	Violations     []map[string]any `json:"violations,omitempty"`
	Columns        []string         `json:"columns,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// ScoredRule wraps a QueryRule with its confidence score and evidence.
// QueryResult is filled in later by the orchestrator when a claims
// database is attached.
type ScoredRule struct {
	Rule            QueryRule      `json:"rule"`
	Confidence      float64        `json:"confidence"`
	Sources         []SearchSource `json:"sources,omitempty"`
	ValidationNotes []string       `json:"validation_notes,omitempty"`
	QueryResult     QueryResult    `json:"query_result"`
}

// ClampConfidence bounds a raw confidence value to [0, 100].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Report aggregates everything produced for one policy document.
type Report struct {
	PolicyName      string        `json:"policy_name"`
	SourcePath      string        `json:"source_path"`
	GeneratedAt     time.Time     `json:"generated_at"`
	Rules           []ScoredRule  `json:"rules"`
	TotalPages      int           `json:"total_pages"`
	ProcessingTime  time.Duration `json:"processing_time"`
	TotalViolations int           `json:"total_violations"`
}
