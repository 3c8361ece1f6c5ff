package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// busyTimeoutMS bounds how long a query waits on a locked database before
// failing. FTL writes to the same file, so brief lock contention is normal.
const busyTimeoutMS = 10_000

var (
	// ErrUnavailable reports a database file that is missing or unopenable.
	// A scrape cycle hitting this on the primary store publishes a failure;
	// on the gravity store it selects the fallback derivation instead.
	ErrUnavailable = errors.New("store: database unavailable")

	// ErrQuery reports a failed query or row scan. Callers treat it as
	// recoverable: the affected metric group is skipped, the rest proceed.
	ErrQuery = errors.New("store: query failed")
)

// DB is a read-only handle on one SQLite database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the database at path in read-only mode and verifies it responds.
// The returned handle is safe for concurrent use, though the scrape engine
// confines all access to the scheduler goroutine.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w (%v)", path, ErrUnavailable, err)
	}

	slog.Debug("store: opening read-only", "path", path)
	db, err := sql.Open("sqlite", roDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w (%v)", path, ErrUnavailable, err)
	}

	// Pragma via Exec so it works regardless of driver DSN conventions.
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma %s: %w (%v)", path, ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w (%v)", path, ErrUnavailable, err)
	}

	return &DB{db: db, path: path}, nil
}

// roDSN builds a file: URI that forces read-only mode. A path that is already
// a file: URI is passed through untouched so tests can supply their own modes.
func roDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	escaped := strings.ReplaceAll(url.PathEscape(path), "%2F", "/")
	return "file:" + escaped + "?mode=ro"
}

// Close releases the underlying connection pool.
func (d *DB) Close() error { return d.db.Close() }

// Path returns the filesystem path the handle was opened with.
func (d *DB) Path() string { return d.path }

// Scalar runs a single-value query and returns the result as int64.
// A NULL result (e.g. MAX() over an empty table) is returned as (0, false).
func (d *DB) Scalar(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var v sql.NullInt64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrQuery, firstKeyword(query), err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return v.Int64, true, nil
}

// LabelCount is one (label, count) row from a grouped query.
type LabelCount struct {
	Label string
	Count int64
}

// LabelCounts runs a two-column (text, count) query, preserving row order.
// NULL labels are skipped; FTL leaves e.g. the forward column NULL for
// queries that were answered locally.
func (d *DB) LabelCounts(ctx context.Context, query string, args ...any) ([]LabelCount, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQuery, firstKeyword(query), err)
	}
	defer rows.Close()

	var out []LabelCount
	for rows.Next() {
		var label sql.NullString
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQuery, err)
		}
		if !label.Valid {
			continue
		}
		out = append(out, LabelCount{Label: label.String, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQuery, err)
	}
	return out, nil
}

// CountsByInt runs a two-column (integer key, count) query into a map.
// NULL keys are skipped (reply_type is NULL on very old FTL rows).
func (d *DB) CountsByInt(ctx context.Context, query string, args ...any) (map[int64]int64, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQuery, firstKeyword(query), err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var key sql.NullInt64
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQuery, err)
		}
		if !key.Valid {
			continue
		}
		out[key.Int64] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQuery, err)
	}
	return out, nil
}

// Floats runs a single-column float query, skipping NULL values.
func (d *DB) Floats(ctx context.Context, query string, args ...any) ([]float64, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQuery, firstKeyword(query), err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQuery, err)
		}
		if !v.Valid {
			continue
		}
		out = append(out, v.Float64)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrQuery, err)
	}
	return out, nil
}

// Query exposes the raw rows interface for the few call sites that scan
// shapes the typed helpers do not cover (e.g. the three-column top-sources
// query). Errors are wrapped as ErrQuery like the helpers.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQuery, firstKeyword(query), err)
	}
	return rows, nil
}

// firstKeyword trims a query down to something short enough for an error
// message without reproducing the whole statement.
func firstKeyword(query string) string {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return strings.TrimSpace(query)
	}
	return fields[0] + " " + fields[1]
}
