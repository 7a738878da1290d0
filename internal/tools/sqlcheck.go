package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// claimsSchema is the fixed claims database layout that generated queries
// are checked against.
var claimsSchema = map[string][]string{
	"patient":    {"patient_id", "dob", "gender"},
	"provider":   {"npi", "tin"},
	"claim":      {"claim_id", "patient_id", "provider_npi", "claim_date"},
	"claim_line": {"line_id", "claim_id", "dos", "pos", "icd10", "cpt_code", "units", "amount", "modifiers"},
}

// SQLValidation is the outcome of checking one query against the schema.
type SQLValidation struct {
	Valid       bool     `json:"is_valid"`
	SQL         string   `json:"sql"`
	TablesUsed  []string `json:"tables_used"`
	ColumnsUsed []string `json:"columns_used"`
	Warnings    []string `json:"warnings"`
	Err         string   `json:"error,omitempty"`
}

// SQLTool validates generated SQL against the claims schema.
// Unknown tables and columns become warnings; only text that fails to
// parse at all is a hard error.
type SQLTool struct {
	schema map[string][]string
}

// NewSQLTool creates a SQL validation tool over the claims schema.
func NewSQLTool() *SQLTool {
	return &SQLTool{schema: claimsSchema}
}

// Name returns the tool identifier.
func (t *SQLTool) Name() string { return "sql_validator" }

// Description returns the tool description for the LLM.
func (t *SQLTool) Description() string {
	return "Validate SQL syntax and check table and column references against the claims database schema."
}

// Parameters returns the JSON Schema for tool parameters.
func (t *SQLTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "SQL query to validate.",
			},
		},
		"required": []any{"sql"},
	}
}

// Execute validates the query in the sql parameter.
func (t *SQLTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	sql := GetString(params, "sql", "")
	if sql == "" {
		return Failure(t.Name(), "missing required parameter: sql"), nil
	}
	validation := t.Validate(sql)
	if !validation.Valid {
		return &Result{Tool: t.Name(), Success: false, Output: validation, Err: validation.Err}, nil
	}
	return Success(t.Name(), validation), nil
}

// Validate parses the query and cross-checks every referenced table and
// column against the claims schema.
func (t *SQLTool) Validate(sql string) *SQLValidation {
	v := &SQLValidation{SQL: sql, Warnings: []string{}}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		v.Err = fmt.Sprintf("SQL syntax error: %v", err)
		return v
	}

	aliases := t.collectTables(stmt, v)
	t.checkColumns(stmt, aliases, v)

	v.Valid = true
	return v
}

// collectTables walks the statement for table references, recording
// unknown tables and returning an alias to table name map.
func (t *SQLTool) collectTables(stmt sqlparser.Statement, v *SQLValidation) map[string]string {
	aliases := make(map[string]string)
	seen := make(map[string]bool)

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		ate, ok := node.(*sqlparser.AliasedTableExpr)
		if !ok {
			return true, nil
		}
		tn, ok := ate.Expr.(sqlparser.TableName)
		if !ok {
			return true, nil
		}
		name := strings.ToLower(tn.Name.String())
		alias := strings.ToLower(ate.As.String())
		if alias == "" {
			alias = name
		}
		aliases[alias] = name
		if !seen[name] {
			seen[name] = true
			v.TablesUsed = append(v.TablesUsed, name)
			if _, known := t.schema[name]; !known {
				v.Warnings = append(v.Warnings, "unknown table: "+name)
			}
		}
		return true, nil
	}, stmt)

	sort.Strings(v.TablesUsed)
	return aliases
}

// checkColumns walks the statement for column references and verifies each
// against the schema, resolving qualifiers through the alias map.
func (t *SQLTool) checkColumns(stmt sqlparser.Statement, aliases map[string]string, v *SQLValidation) {
	seen := make(map[string]bool)

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		col, ok := node.(*sqlparser.ColName)
		if !ok {
			return true, nil
		}
		name := strings.ToLower(col.Name.String())
		if seen[name] {
			return true, nil
		}
		seen[name] = true
		v.ColumnsUsed = append(v.ColumnsUsed, name)

		qualifier := strings.ToLower(col.Qualifier.Name.String())
		table := aliases[qualifier]

		found := false
		if cols, known := t.schema[table]; known {
			found = contains(cols, name)
		} else {
			for _, cols := range t.schema {
				if contains(cols, name) {
					found = true
					break
				}
			}
		}
		if !found {
			v.Warnings = append(v.Warnings, "unknown column: "+name)
		}
		return true, nil
	}, stmt)

	sort.Strings(v.ColumnsUsed)
}

// Format pretty-prints the query. Unparsable text is returned unchanged.
func (t *SQLTool) Format(sql string) string {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return sql
	}
	return sqlparser.String(stmt)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
