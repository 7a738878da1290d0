package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/policyscan/policyscan/internal/policy"

	_ "modernc.org/sqlite"
)

const claimsSchema = `
CREATE TABLE IF NOT EXISTS patient (
	patient_id TEXT PRIMARY KEY,
	dob DATE,
	gender TEXT
);

CREATE TABLE IF NOT EXISTS provider (
	npi TEXT PRIMARY KEY,
	tin TEXT
);

CREATE TABLE IF NOT EXISTS claim (
	claim_id TEXT PRIMARY KEY,
	patient_id TEXT,
	provider_npi TEXT,
	FOREIGN KEY (patient_id) REFERENCES patient(patient_id),
	FOREIGN KEY (provider_npi) REFERENCES provider(npi)
);

CREATE TABLE IF NOT EXISTS claim_line (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	claim_id TEXT,
	dos DATE,
	pos TEXT,
	icd10 TEXT,
	cpt_code TEXT,
	units INTEGER DEFAULT 1,
	amount REAL,
	modifiers TEXT,
	FOREIGN KEY (claim_id) REFERENCES claim(claim_id)
);

CREATE INDEX IF NOT EXISTS idx_claim_line_claim_id ON claim_line(claim_id);
CREATE INDEX IF NOT EXISTS idx_claim_line_cpt ON claim_line(cpt_code);
CREATE INDEX IF NOT EXISTS idx_claim_line_dos ON claim_line(dos);
`

// defaultRowLimit caps result sets from rule queries that carry no LIMIT
// of their own.
const defaultRowLimit = 100

// ClaimsDB is the claims database that rule queries run against.
type ClaimsDB struct {
	db *sql.DB
}

// OpenClaimsDB opens (or creates) the claims database at path and applies
// the schema. Pass ":memory:" for an in-memory database.
func OpenClaimsDB(path string) (*ClaimsDB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open claims db: %w", err)
	}
	if _, err := db.Exec(claimsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &ClaimsDB{db: db}, nil
}

// Close closes the underlying database.
func (c *ClaimsDB) Close() error {
	return c.db.Close()
}

// Execute runs a rule's SQL against the claims data. Query failures are
// reported inside the result rather than as an error so one bad rule
// never aborts a batch.
func (c *ClaimsDB) Execute(query string) policy.QueryResult {
	result := policy.QueryResult{Executed: true}

	if !strings.Contains(strings.ToLower(query), "limit") {
		query = strings.TrimSuffix(strings.TrimSpace(query), ";") + fmt.Sprintf(" LIMIT %d", defaultRowLimit)
	}

	rows, err := c.db.Query(query)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Columns = columns

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			result.Error = err.Error()
			return result
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Violations = append(result.Violations, row)
	}
	if err := rows.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	result.ViolationCount = len(result.Violations)
	return result
}

// LoadSampleData seeds a small claims data set for demonstrations and
// tests. It is a no-op when claims already exist. The set includes lines
// that violate common billing rules: an unbundled add-on code, a therapy
// line over its unit limit, and a cosmetic procedure.
func (c *ClaimsDB) LoadSampleData() error {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM claim").Scan(&count); err != nil {
		return fmt.Errorf("count claims: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sample load: %w", err)
	}
	defer tx.Rollback()

	patients := [][]any{
		{"P001", "1985-03-15", "M"},
		{"P002", "1990-07-22", "F"},
		{"P003", "1978-11-30", "M"},
		{"P004", "2000-01-10", "F"},
	}
	for _, p := range patients {
		if _, err := tx.Exec("INSERT INTO patient VALUES (?, ?, ?)", p...); err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}
	}

	providers := [][]any{
		{"1234567890", "12-3456789"},
		{"0987654321", "98-7654321"},
	}
	for _, p := range providers {
		if _, err := tx.Exec("INSERT INTO provider VALUES (?, ?)", p...); err != nil {
			return fmt.Errorf("insert provider: %w", err)
		}
	}

	claims := [][]any{
		{"CLM001", "P001", "1234567890"},
		{"CLM002", "P002", "1234567890"},
		{"CLM003", "P003", "0987654321"},
		{"CLM004", "P004", "0987654321"},
		{"CLM005", "P001", "1234567890"},
		{"CLM006", "P002", "0987654321"},
	}
	for _, cl := range claims {
		if _, err := tx.Exec("INSERT INTO claim VALUES (?, ?, ?)", cl...); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
	}

	lines := [][]any{
		// 69990 without its primary procedure.
		{"CLM001", "2024-01-15", "11", "H35.30", "69990", 1, 500.00, nil},
		// 69990 alongside the primary procedure.
		{"CLM002", "2024-01-16", "11", "H35.30", "61304", 1, 2000.00, nil},
		{"CLM002", "2024-01-16", "11", "H35.30", "69990", 1, 500.00, nil},
		// 97110 over the 4-unit limit.
		{"CLM003", "2024-01-17", "11", "M54.5", "97110", 6, 180.00, nil},
		{"CLM004", "2024-01-18", "11", "M54.5", "97110", 3, 90.00, nil},
		// Cosmetic procedure.
		{"CLM005", "2024-01-19", "11", "L90.5", "15780", 1, 1500.00, nil},
		{"CLM006", "2024-01-20", "11", "J06.9", "99213", 1, 150.00, nil},
	}
	for _, l := range lines {
		_, err := tx.Exec("INSERT INTO claim_line (claim_id, dos, pos, icd10, cpt_code, units, amount, modifiers) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", l...)
		if err != nil {
			return fmt.Errorf("insert claim line: %w", err)
		}
	}

	return tx.Commit()
}

// ClaimsStats reports table row counts.
type ClaimsStats struct {
	Patients   int `json:"patients"`
	Providers  int `json:"providers"`
	Claims     int `json:"claims"`
	ClaimLines int `json:"claim_lines"`
}

// Stats counts rows per table.
func (c *ClaimsDB) Stats() (*ClaimsStats, error) {
	stats := &ClaimsStats{}
	targets := []struct {
		table string
		dest  *int
	}{
		{"patient", &stats.Patients},
		{"provider", &stats.Providers},
		{"claim", &stats.Claims},
		{"claim_line", &stats.ClaimLines},
	}
	for _, t := range targets {
		if err := c.db.QueryRow("SELECT COUNT(*) FROM " + t.table).Scan(t.dest); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return stats, nil
}
