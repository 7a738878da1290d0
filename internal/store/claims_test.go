package store

import (
	"path/filepath"
	"testing"
)

func setupClaims(t *testing.T) *ClaimsDB {
	t.Helper()
	db, err := OpenClaimsDB(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadSampleData(t *testing.T) {
	db := setupClaims(t)

	if err := db.LoadSampleData(); err != nil {
		t.Fatal(err)
	}
	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Patients != 4 || stats.Providers != 2 || stats.Claims != 6 || stats.ClaimLines != 7 {
		t.Fatalf("unexpected sample counts: %+v", stats)
	}

	// Loading twice must not duplicate.
	if err := db.LoadSampleData(); err != nil {
		t.Fatal(err)
	}
	stats, err = db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Claims != 6 {
		t.Fatalf("sample data duplicated: %+v", stats)
	}
}

func TestExecuteFindsViolations(t *testing.T) {
	db := setupClaims(t)
	if err := db.LoadSampleData(); err != nil {
		t.Fatal(err)
	}

	result := db.Execute(`SELECT cl.claim_id FROM claim_line cl
		WHERE cl.cpt_code = '69990'
		AND NOT EXISTS (
			SELECT 1 FROM claim_line cl2
			WHERE cl2.claim_id = cl.claim_id AND cl2.cpt_code = '61304'
		)`)
	if !result.Executed || result.Error != "" {
		t.Fatalf("query failed: %+v", result)
	}
	if result.ViolationCount != 1 {
		t.Fatalf("expected 1 violation, got %d", result.ViolationCount)
	}
	if result.Violations[0]["claim_id"] != "CLM001" {
		t.Fatalf("expected CLM001, got %v", result.Violations[0])
	}
}

func TestExecuteAppendsLimit(t *testing.T) {
	db := setupClaims(t)
	if err := db.LoadSampleData(); err != nil {
		t.Fatal(err)
	}

	result := db.Execute("SELECT claim_id FROM claim;")
	if result.Error != "" {
		t.Fatalf("query failed: %s", result.Error)
	}
	if result.ViolationCount != 6 {
		t.Fatalf("expected 6 rows, got %d", result.ViolationCount)
	}

	limited := db.Execute("SELECT claim_id FROM claim LIMIT 2")
	if limited.ViolationCount != 2 {
		t.Fatalf("explicit limit ignored, got %d rows", limited.ViolationCount)
	}
}

func TestExecuteCapturesErrors(t *testing.T) {
	db := setupClaims(t)

	result := db.Execute("SELECT nope FROM missing_table")
	if !result.Executed {
		t.Fatal("expected executed flag set")
	}
	if result.Error == "" {
		t.Fatal("expected an error for unknown table")
	}
	if result.ViolationCount != 0 {
		t.Fatalf("expected no rows, got %d", result.ViolationCount)
	}
}
