package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/tools"
)

// claimsSchemaDoc is the schema description shown to the model.
const claimsSchemaDoc = `-- Patient information
CREATE TABLE patient (
    patient_id VARCHAR(50) PRIMARY KEY,
    dob DATE NOT NULL,
    gender CHAR(1) CHECK (gender IN ('M', 'F', 'U'))
);

-- Provider information
CREATE TABLE provider (
    npi VARCHAR(10) PRIMARY KEY,
    tin VARCHAR(20) NOT NULL
);

-- Claim header
CREATE TABLE claim (
    claim_id VARCHAR(50) PRIMARY KEY,
    patient_id VARCHAR(50) NOT NULL REFERENCES patient(patient_id),
    provider_npi VARCHAR(10) NOT NULL REFERENCES provider(npi),
    claim_date DATE NOT NULL
);

-- Claim line details
CREATE TABLE claim_line (
    line_id VARCHAR(50) PRIMARY KEY,
    claim_id VARCHAR(50) NOT NULL REFERENCES claim(claim_id),
    dos DATE NOT NULL,
    pos VARCHAR(10),
    icd10 VARCHAR(10),
    cpt_code VARCHAR(10) NOT NULL,
    units INTEGER DEFAULT 1,
    amount DECIMAL(10, 2),
    modifiers VARCHAR(2)
);`

const querygenSystemPromptFmt = `You are a SQL expert specializing in healthcare claims database queries.
Generate SQL queries that implement billing rules.

## Database Schema
%s

## Requirements
1. Generate SELECT queries that identify claims violating the rule
2. Use proper JOIN syntax and EXISTS clauses for complex conditions

## Output Format
Return JSON: {"sql": "SELECT...", "explanation": "..."}
If validator returns errors, fix and retry (up to %d attempts).`

// QueryGen generates claims queries for extracted rules with a bounded
// self-correction loop driven by schema validation warnings.
type QueryGen struct {
	loop       *agent.Loop
	registry   *tools.Registry
	sqlTool    *tools.SQLTool
	maxRetries int
	logger     *slog.Logger
}

// NewQueryGen creates the query generation worker.
func NewQueryGen(loop *agent.Loop, maxRetries int) *QueryGen {
	if maxRetries < 0 {
		maxRetries = 0
	}
	sqlTool := tools.NewSQLTool()
	return &QueryGen{
		loop:       loop,
		registry:   tools.NewRegistry(sqlTool),
		sqlTool:    sqlTool,
		maxRetries: maxRetries,
		logger:     slog.Default(),
	}
}

// Role returns the worker's role identifier.
func (g *QueryGen) Role() string { return "querygen" }

// SystemPrompt returns the worker's system prompt.
func (g *QueryGen) SystemPrompt() string {
	return fmt.Sprintf(querygenSystemPromptFmt, claimsSchemaDoc, g.maxRetries)
}

// FormatInput renders a rule as the opening user message.
func (g *QueryGen) FormatInput(input any) string {
	rule, ok := input.(policy.ExtractedRule)
	if !ok {
		return fmt.Sprint(input)
	}
	return fmt.Sprintf(`Generate SQL to identify claims violating this billing rule:

Rule ID: %s
Name: %s
Classification: %s
Description: %s
CPT Codes: %s
ICD-10 Codes: %s
Modifiers: %s
Conditions: %s
Source Text: %s

Generate SQL and use sql_validator to validate it.`,
		rule.ID, rule.Name, rule.Classification, rule.Description,
		joinOrNone(rule.CPTCodes, ", "), joinOrNone(rule.ICD10Codes, ", "),
		joinOrNone(rule.Modifiers, ", "), joinOrNone(rule.Conditions, "; "),
		rule.SourceText)
}

// Tools returns the worker's registry.
func (g *QueryGen) Tools() *tools.Registry { return g.registry }

// MaxIterations returns the iteration cap.
func (g *QueryGen) MaxIterations() int { return 10 }

// ProcessOutput extracts the generated query text from the final reply.
func (g *QueryGen) ProcessOutput(resp *provider.ChatResponse, toolResults []*tools.Result, totalTokens int) *agent.Outcome {
	sql, err := extractSQL(resp.Content)
	if err != nil {
		return &agent.Outcome{
			Err:         fmt.Sprintf("failed to extract SQL: %v", err),
			ToolResults: toolResults,
			TotalTokens: totalTokens,
		}
	}
	return &agent.Outcome{
		Success:     true,
		Output:      sql,
		ToolResults: toolResults,
		TotalTokens: totalTokens,
	}
}

// Generate runs up to maxRetries+1 attempts for one rule. Zero validation
// warnings end the loop immediately; exhaustion returns the best-known
// query with the last warning list. The retry count only grows when
// another attempt actually follows, so it never exceeds maxRetries.
func (g *QueryGen) Generate(ctx context.Context, rule policy.ExtractedRule) policy.QueryRule {
	g.logger.Info("generating SQL", "rule", rule.ID)

	var sql string
	warnings := []string{}
	retries := 0

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		outcome := g.loop.Run(ctx, g, rule)
		if !outcome.Success {
			g.logger.Warn("SQL generation attempt failed", "rule", rule.ID, "attempt", attempt+1, "error", outcome.Err)
			if attempt < g.maxRetries {
				retries = attempt + 1
			}
			continue
		}

		sql, _ = outcome.Output.(string)
		validation := g.sqlTool.Validate(sql)
		if validation.Valid {
			warnings = validation.Warnings
			if len(warnings) == 0 {
				g.logger.Info("SQL validated", "rule", rule.ID, "retries", retries)
				break
			}
			g.logger.Warn("SQL has warnings", "rule", rule.ID, "warnings", warnings)
		} else {
			g.logger.Warn("SQL failed to parse", "rule", rule.ID, "error", validation.Err)
		}
		if attempt < g.maxRetries {
			retries = attempt + 1
		}
	}

	return policy.QueryRule{
		Rule:               rule,
		SQL:                sql,
		SQLFormatted:       g.sqlTool.Format(sql),
		ValidationWarnings: warnings,
		RetryCount:         retries,
	}
}

func joinOrNone(items []string, sep string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, sep)
}
