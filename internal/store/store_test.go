package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

// newFixture creates a small FTL-style database on disk and returns its path.
func newFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pihole-FTL.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE counters (id INTEGER PRIMARY KEY, value INTEGER)`,
		`CREATE TABLE queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER, type INTEGER, status INTEGER,
			domain TEXT, client TEXT, forward TEXT,
			reply_type INTEGER, reply_time REAL)`,
		`INSERT INTO counters (id, value) VALUES (0, 1000), (1, 250)`,
		`INSERT INTO queries (timestamp, type, status, domain, client, forward, reply_type, reply_time) VALUES
			(100, 1, 2, 'a.example', '10.0.0.2', '8.8.8.8', 4, 0.01),
			(101, 1, 2, 'b.example', '10.0.0.2', '8.8.8.8', 4, 0.03),
			(102, 2, 2, 'c.example', '10.0.0.3', NULL, 4, NULL),
			(103, 1, 3, 'a.example', '10.0.0.3', NULL, NULL, NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture exec: %v", err)
		}
	}
	return path
}

func openFixture(t *testing.T) *DB {
	t.Helper()
	d, err := Open(newFixture(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"))
	if err == nil {
		t.Fatal("Open on missing file: expected error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestOpen_IsReadOnly(t *testing.T) {
	d := openFixture(t)
	if _, err := d.db.Exec(`INSERT INTO counters (id, value) VALUES (9, 9)`); err == nil {
		t.Fatal("write through a read-only handle should fail")
	}
}

func TestScalar(t *testing.T) {
	d := openFixture(t)

	v, ok, err := d.Scalar(context.Background(), SQLCounterTotal)
	if err != nil {
		t.Fatalf("Scalar: %v", err)
	}
	if !ok || v != 1000 {
		t.Errorf("counter total = (%d, %v), want (1000, true)", v, ok)
	}
}

func TestScalar_NullResult(t *testing.T) {
	d := openFixture(t)

	// MAX over no matching rows is NULL, not an error.
	v, ok, err := d.Scalar(context.Background(),
		"SELECT MAX(id) FROM queries WHERE timestamp > 99999")
	if err != nil {
		t.Fatalf("Scalar: %v", err)
	}
	if ok || v != 0 {
		t.Errorf("NULL scalar = (%d, %v), want (0, false)", v, ok)
	}
}

func TestScalar_BadSQL(t *testing.T) {
	d := openFixture(t)

	_, _, err := d.Scalar(context.Background(), "SELECT value FROM no_such_table")
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	if !errors.Is(err, ErrQuery) {
		t.Errorf("error = %v, want ErrQuery", err)
	}
}

func TestLabelCounts_SkipsNullLabels(t *testing.T) {
	d := openFixture(t)

	got, err := d.LabelCounts(context.Background(),
		`SELECT forward, COUNT(*) FROM queries GROUP BY forward ORDER BY forward`)
	if err != nil {
		t.Fatalf("LabelCounts: %v", err)
	}
	// The NULL forward group (2 rows) is dropped; only 8.8.8.8 remains.
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1: %+v", len(got), got)
	}
	if got[0].Label != "8.8.8.8" || got[0].Count != 2 {
		t.Errorf("row = %+v, want {8.8.8.8 2}", got[0])
	}
}

func TestCountsByInt_SkipsNullKeys(t *testing.T) {
	d := openFixture(t)

	got, err := d.CountsByInt(context.Background(),
		`SELECT reply_type, COUNT(*) FROM queries GROUP BY reply_type`)
	if err != nil {
		t.Fatalf("CountsByInt: %v", err)
	}
	if got[4] != 3 {
		t.Errorf("reply_type 4 count = %d, want 3", got[4])
	}
	if len(got) != 1 {
		t.Errorf("got %d keys, want 1 (NULL key skipped): %v", len(got), got)
	}
}

func TestFloats_SkipsNullValues(t *testing.T) {
	d := openFixture(t)

	got, err := d.Floats(context.Background(), `SELECT reply_time FROM queries ORDER BY id`)
	if err != nil {
		t.Fatalf("Floats: %v", err)
	}
	want := []float64{0.01, 0.03}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRoDSN(t *testing.T) {
	if got := roDSN("/etc/pihole/pihole-FTL.db"); got != "file:/etc/pihole/pihole-FTL.db?mode=ro" {
		t.Errorf("roDSN = %q", got)
	}
	// Explicit file: URIs pass through untouched.
	if got := roDSN("file:/tmp/x.db?mode=rw"); got != "file:/tmp/x.db?mode=rw" {
		t.Errorf("roDSN passthrough = %q", got)
	}
	// Spaces are escaped, path separators kept.
	if got := roDSN("/data/my db/ftl.db"); got != "file:/data/my%20db/ftl.db?mode=ro" {
		t.Errorf("roDSN escaped = %q", got)
	}
}
