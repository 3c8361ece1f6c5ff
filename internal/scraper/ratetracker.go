package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/piholestats/pihole-sqlite-exporter/internal/store"
)

// cursorMode selects how the tracker measures "new query rows since last
// observation".
type cursorMode int

const (
	// modeUnknown means detection has not succeeded yet; the tracker
	// re-probes the schema on the next update.
	modeUnknown cursorMode = iota

	// modeRowID uses MAX(rowid) on the queries table (preferred).
	modeRowID

	// modeIDColumn uses MAX(id) for schemas that expose an explicit id
	// column but no usable rowid.
	modeIDColumn

	// modeCounter falls back to FTL's lifetime total-queries counter when
	// the schema exposes no row identifier at all.
	modeCounter
)

// rateTracker computes the request-rate delta between consecutive scrapes.
//
// The cursor mode is probed once and kept for the process lifetime; only a
// failed probe is retried. The tracked cursor is monotonic from the
// tracker's point of view: a smaller value from the store (table vacuumed or
// rotated, counters reset) is treated as a discontinuity: the baseline
// resets and the delta for that cycle is zero, never negative.
//
// The tracker is only ever called from inside a scrape cycle, so the
// engine's overlap guard is its concurrency guard too.
type rateTracker struct {
	mode cursorMode

	lastTime   time.Time
	lastCursor int64
	haveCursor bool
}

// update reads the current cursor and returns new-queries-per-second since
// the previous successful observation. The first observation returns 0.
// State is updated only when the cursor read succeeds.
func (t *rateTracker) update(ctx context.Context, db *store.DB, now time.Time) (float64, error) {
	if t.mode == modeUnknown {
		t.mode = detectCursorMode(ctx, db)
	}

	cursor, err := t.readCursor(ctx, db)
	if err != nil {
		return 0, err
	}

	if !t.haveCursor {
		t.lastTime, t.lastCursor, t.haveCursor = now, cursor, true
		slog.Debug("scraper: request-rate baseline recorded", "cursor", cursor)
		return 0, nil
	}

	var delta int64
	switch {
	case cursor < t.lastCursor:
		// Discontinuity: the store reported a smaller identifier than the
		// stored cursor. Reset the baseline rather than emit a negative.
		slog.Info("scraper: request-rate cursor went backwards, resetting baseline",
			"previous", t.lastCursor, "current", cursor)
	default:
		delta = cursor - t.lastCursor
	}

	elapsed := now.Sub(t.lastTime)
	if elapsed < time.Second {
		elapsed = time.Second
	}

	t.lastTime, t.lastCursor = now, cursor
	return float64(delta) / elapsed.Seconds(), nil
}

// readCursor fetches the current cursor value for the active mode. A NULL
// result (empty queries table) reads as zero.
func (t *rateTracker) readCursor(ctx context.Context, db *store.DB) (int64, error) {
	var q string
	switch t.mode {
	case modeRowID:
		q = store.SQLMaxRowID
	case modeIDColumn:
		q = store.SQLMaxIDColumn
	default:
		q = store.SQLCounterTotal
	}
	v, _, err := db.Scalar(ctx, q)
	return v, err
}

// detectCursorMode probes the schema once: rowid first, then an explicit id
// column, then the counter fallback. Returns modeUnknown only when probing
// itself failed, so the next cycle re-probes.
func detectCursorMode(ctx context.Context, db *store.DB) cursorMode {
	if _, _, err := db.Scalar(ctx, store.SQLMaxRowID); err == nil {
		slog.Debug("scraper: request-rate cursor mode", "mode", "rowid")
		return modeRowID
	}

	rows, err := db.Query(ctx, store.SQLQueriesSchema)
	if err != nil {
		slog.Warn("scraper: cursor probe failed, will re-probe next cycle", "err", err)
		return modeUnknown
	}
	defer rows.Close()

	// PRAGMA table_info columns: cid, name, type, notnull, dflt_value, pk.
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			slog.Warn("scraper: cursor probe scan failed, will re-probe next cycle", "err", err)
			return modeUnknown
		}
		if name == "id" {
			slog.Debug("scraper: request-rate cursor mode", "mode", "id")
			return modeIDColumn
		}
	}
	if err := rows.Err(); err != nil {
		slog.Warn("scraper: cursor probe failed, will re-probe next cycle", "err", err)
		return modeUnknown
	}

	slog.Info("scraper: no row identifier on queries table, using counter fallback")
	return modeCounter
}
