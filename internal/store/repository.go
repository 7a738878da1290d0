// Package store provides SQLite persistence for extracted rules and the
// claims database used for query execution.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/policyscan/policyscan/internal/policy"

	_ "modernc.org/sqlite"
)

const rulesSchema = `
CREATE TABLE IF NOT EXISTS rules (
	id TEXT PRIMARY KEY,
	vendor TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	classification TEXT NOT NULL,
	source_text TEXT,
	sql_query TEXT,
	sql_formatted TEXT,
	confidence REAL DEFAULT 50.0,
	validation_notes TEXT,
	sources TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rule_cpt_codes (
	rule_id TEXT NOT NULL,
	cpt_code TEXT NOT NULL,
	PRIMARY KEY (rule_id, cpt_code),
	FOREIGN KEY (rule_id) REFERENCES rules(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rule_icd10_codes (
	rule_id TEXT NOT NULL,
	icd10_code TEXT NOT NULL,
	PRIMARY KEY (rule_id, icd10_code),
	FOREIGN KEY (rule_id) REFERENCES rules(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rule_modifiers (
	rule_id TEXT NOT NULL,
	modifier TEXT NOT NULL,
	PRIMARY KEY (rule_id, modifier),
	FOREIGN KEY (rule_id) REFERENCES rules(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_rules_vendor ON rules(vendor);
CREATE INDEX IF NOT EXISTS idx_rules_classification ON rules(classification);
CREATE INDEX IF NOT EXISTS idx_rules_confidence ON rules(confidence);
CREATE INDEX IF NOT EXISTS idx_cpt_codes ON rule_cpt_codes(cpt_code);
CREATE INDEX IF NOT EXISTS idx_icd10_codes ON rule_icd10_codes(icd10_code);
CREATE INDEX IF NOT EXISTS idx_modifiers ON rule_modifiers(modifier);

CREATE VIRTUAL TABLE IF NOT EXISTS rules_fts USING fts5(
	id, name, description, source_text,
	content='rules', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS rules_ai AFTER INSERT ON rules BEGIN
	INSERT INTO rules_fts(rowid, id, name, description, source_text)
	VALUES (NEW.rowid, NEW.id, NEW.name, NEW.description, NEW.source_text);
END;

CREATE TRIGGER IF NOT EXISTS rules_ad AFTER DELETE ON rules BEGIN
	INSERT INTO rules_fts(rules_fts, rowid, id, name, description, source_text)
	VALUES ('delete', OLD.rowid, OLD.id, OLD.name, OLD.description, OLD.source_text);
END;

CREATE TRIGGER IF NOT EXISTS rules_au AFTER UPDATE ON rules BEGIN
	INSERT INTO rules_fts(rules_fts, rowid, id, name, description, source_text)
	VALUES ('delete', OLD.rowid, OLD.id, OLD.name, OLD.description, OLD.source_text);
	INSERT INTO rules_fts(rowid, id, name, description, source_text)
	VALUES (NEW.rowid, NEW.id, NEW.name, NEW.description, NEW.source_text);
END;
`

// RuleRepository stores scored billing rules with indexed and full-text
// search over them.
type RuleRepository struct {
	db *sql.DB
}

// OpenRuleRepository opens (or creates) the rule database at path and
// applies the schema. Pass ":memory:" for an in-memory database.
func OpenRuleRepository(path string) (*RuleRepository, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open rules db: %w", err)
	}
	if _, err := db.Exec(rulesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &RuleRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *RuleRepository) Close() error {
	return r.db.Close()
}

// Save upserts a scored rule under the given vendor. Code lists are
// replaced wholesale so re-saving a rule is idempotent.
func (r *RuleRepository) Save(vendor string, scored policy.ScoredRule) (string, error) {
	rule := scored.Rule.Rule

	notes, err := json.Marshal(scored.ValidationNotes)
	if err != nil {
		return "", fmt.Errorf("marshal validation notes: %w", err)
	}
	sources, err := json.Marshal(scored.Sources)
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	// Upsert rather than INSERT OR REPLACE: REPLACE deletes the old row
	// without firing the delete trigger, leaving rules_fts out of sync.
	_, err = tx.Exec(`INSERT INTO rules
		(id, vendor, name, description, classification, source_text,
		 sql_query, sql_formatted, confidence, validation_notes, sources, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vendor = excluded.vendor,
			name = excluded.name,
			description = excluded.description,
			classification = excluded.classification,
			source_text = excluded.source_text,
			sql_query = excluded.sql_query,
			sql_formatted = excluded.sql_formatted,
			confidence = excluded.confidence,
			validation_notes = excluded.validation_notes,
			sources = excluded.sources,
			updated_at = excluded.updated_at`,
		rule.ID, vendor, rule.Name, rule.Description, string(rule.Classification),
		rule.SourceText, scored.Rule.SQL, scored.Rule.SQLFormatted,
		scored.Confidence, string(notes), string(sources),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("save rule %s: %w", rule.ID, err)
	}

	junctions := []struct {
		table, column string
		values        []string
	}{
		{"rule_cpt_codes", "cpt_code", rule.CPTCodes},
		{"rule_icd10_codes", "icd10_code", rule.ICD10Codes},
		{"rule_modifiers", "modifier", rule.Modifiers},
	}
	for _, j := range junctions {
		if _, err := tx.Exec("DELETE FROM "+j.table+" WHERE rule_id = ?", rule.ID); err != nil {
			return "", fmt.Errorf("clear %s: %w", j.table, err)
		}
		for _, v := range j.values {
			if _, err := tx.Exec("INSERT INTO "+j.table+" (rule_id, "+j.column+") VALUES (?, ?)", rule.ID, v); err != nil {
				return "", fmt.Errorf("insert %s: %w", j.table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return rule.ID, nil
}

// SaveAll saves every rule and returns the saved IDs.
func (r *RuleRepository) SaveAll(vendor string, rules []policy.ScoredRule) ([]string, error) {
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		id, err := r.Save(vendor, rule)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SearchFilter narrows a repository search. Zero-valued fields are
// ignored.
type SearchFilter struct {
	CPTCodes       []string
	ICD10Codes     []string
	Classification policy.Classification
	Vendor         string
	Text           string
	MinConfidence  float64
}

// Search returns rules matching every set filter, highest confidence
// first. Text runs an FTS5 match over name, description and source text.
func (r *RuleRepository) Search(filter SearchFilter) ([]policy.ScoredRule, error) {
	conditions := []string{"r.confidence >= ?"}
	args := []any{filter.MinConfidence}
	var joins []string

	if len(filter.CPTCodes) > 0 {
		joins = append(joins, "JOIN rule_cpt_codes cpt ON r.id = cpt.rule_id")
		conditions = append(conditions, "cpt.cpt_code IN ("+placeholders(len(filter.CPTCodes))+")")
		for _, c := range filter.CPTCodes {
			args = append(args, c)
		}
	}
	if len(filter.ICD10Codes) > 0 {
		joins = append(joins, "JOIN rule_icd10_codes icd ON r.id = icd.rule_id")
		conditions = append(conditions, "icd.icd10_code IN ("+placeholders(len(filter.ICD10Codes))+")")
		for _, c := range filter.ICD10Codes {
			args = append(args, c)
		}
	}
	if filter.Classification != "" {
		conditions = append(conditions, "r.classification = ?")
		args = append(args, string(filter.Classification))
	}
	if filter.Vendor != "" {
		conditions = append(conditions, "r.vendor = ?")
		args = append(args, filter.Vendor)
	}
	if filter.Text != "" {
		joins = append(joins, "JOIN rules_fts fts ON r.id = fts.id")
		conditions = append(conditions, "rules_fts MATCH ?")
		args = append(args, filter.Text)
	}

	query := "SELECT DISTINCT r.id, r.vendor, r.name, r.description, r.classification, " +
		"r.source_text, r.sql_query, r.sql_formatted, r.confidence, r.validation_notes, r.sources " +
		"FROM rules r " + strings.Join(joins, " ") +
		" WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY r.confidence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search rules: %w", err)
	}
	defer rows.Close()

	var results []policy.ScoredRule
	for rows.Next() {
		scored, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, scored)
	}
	return results, rows.Err()
}

func (r *RuleRepository) scanRule(rows *sql.Rows) (policy.ScoredRule, error) {
	var (
		scored      policy.ScoredRule
		class       string
		description sql.NullString
		sourceText  sql.NullString
		sqlQuery    sql.NullString
		sqlFmt      sql.NullString
		notesJSON   sql.NullString
		sourcesJSON sql.NullString
		vendor      string
	)
	rule := &scored.Rule.Rule
	err := rows.Scan(&rule.ID, &vendor, &rule.Name, &description, &class,
		&sourceText, &sqlQuery, &sqlFmt, &scored.Confidence, &notesJSON, &sourcesJSON)
	if err != nil {
		return scored, fmt.Errorf("scan rule: %w", err)
	}
	rule.Description = description.String
	rule.Classification = policy.Classification(class)
	rule.SourceText = sourceText.String
	scored.Rule.SQL = sqlQuery.String
	scored.Rule.SQLFormatted = sqlFmt.String
	if notesJSON.Valid && notesJSON.String != "" {
		if err := json.Unmarshal([]byte(notesJSON.String), &scored.ValidationNotes); err != nil {
			return scored, fmt.Errorf("decode validation notes for %s: %w", rule.ID, err)
		}
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &scored.Sources); err != nil {
			return scored, fmt.Errorf("decode sources for %s: %w", rule.ID, err)
		}
	}

	rule.CPTCodes, err = r.codeList("rule_cpt_codes", "cpt_code", rule.ID)
	if err != nil {
		return scored, err
	}
	rule.ICD10Codes, err = r.codeList("rule_icd10_codes", "icd10_code", rule.ID)
	if err != nil {
		return scored, err
	}
	rule.Modifiers, err = r.codeList("rule_modifiers", "modifier", rule.ID)
	if err != nil {
		return scored, err
	}
	return scored, nil
}

func (r *RuleRepository) codeList(table, column, ruleID string) ([]string, error) {
	rows, err := r.db.Query("SELECT "+column+" FROM "+table+" WHERE rule_id = ? ORDER BY "+column, ruleID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// RepositoryStats summarizes the stored rules.
type RepositoryStats struct {
	TotalRules        int            `json:"total_rules"`
	ByClassification  map[string]int `json:"by_classification"`
	ByVendor          map[string]int `json:"by_vendor"`
	AverageConfidence float64        `json:"average_confidence"`
}

// Stats aggregates rule counts and the average confidence, rounded to
// one decimal.
func (r *RuleRepository) Stats() (*RepositoryStats, error) {
	stats := &RepositoryStats{
		ByClassification: map[string]int{},
		ByVendor:         map[string]int{},
	}

	if err := r.db.QueryRow("SELECT COUNT(*) FROM rules").Scan(&stats.TotalRules); err != nil {
		return nil, fmt.Errorf("count rules: %w", err)
	}

	if err := r.groupCount("classification", stats.ByClassification); err != nil {
		return nil, err
	}
	if err := r.groupCount("vendor", stats.ByVendor); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := r.db.QueryRow("SELECT AVG(confidence) FROM rules").Scan(&avg); err != nil {
		return nil, fmt.Errorf("average confidence: %w", err)
	}
	stats.AverageConfidence = float64(int(avg.Float64*10+0.5)) / 10
	return stats, nil
}

func (r *RuleRepository) groupCount(column string, out map[string]int) error {
	rows, err := r.db.Query("SELECT " + column + ", COUNT(*) FROM rules GROUP BY " + column)
	if err != nil {
		return fmt.Errorf("group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		out[key] = count
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
