package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/piholestats/pihole-sqlite-exporter/internal/config"
	"github.com/piholestats/pihole-sqlite-exporter/internal/snapshot"
	"github.com/piholestats/pihole-sqlite-exporter/internal/store"
)

// ErrScrapeSkipped reports that a cycle was declined because a previous one
// is still in flight. Informational: the existing snapshot stays untouched.
var ErrScrapeSkipped = errors.New("scraper: cycle skipped, scrape in progress")

// Engine runs scrape cycles and publishes snapshots into a Holder. All
// database access happens in the calling goroutine (the scheduler's); HTTP
// readers only ever touch the holder.
type Engine struct {
	holder  *snapshot.Holder
	cfg     atomic.Pointer[config.ExporterConfig]
	tracker rateTracker

	inFlight atomic.Bool
	skipped  atomic.Int64

	now func() time.Time // injectable for deterministic tests
}

// New creates an Engine publishing into holder with the given settings.
func New(cfg *config.ExporterConfig, holder *snapshot.Holder) *Engine {
	e := &Engine{holder: holder, now: time.Now}
	e.cfg.Store(cfg)
	return e
}

// ApplyConfig swaps in reloaded settings. Takes effect from the next cycle;
// an in-flight cycle finishes with the settings it started with.
func (e *Engine) ApplyConfig(cfg *config.ExporterConfig) {
	e.cfg.Store(cfg)
	slog.Info("scraper: settings applied",
		"top_n", cfg.TopN,
		"hostname_label", cfg.HostnameLabel,
		"lifetime_destinations", cfg.LifetimeDestinations,
		"freshness_factor", cfg.FreshnessFactor,
	)
}

// SkippedTotal returns how many cycles the overlap guard has declined.
func (e *Engine) SkippedTotal() int64 { return e.skipped.Load() }

// FreshnessBound returns the maximum snapshot age /healthz accepts under
// the currently applied settings.
func (e *Engine) FreshnessBound() time.Duration { return e.cfg.Load().FreshnessBound() }

// ScrapeAndUpdate runs one scrape cycle and publishes the result.
//
// The cycle starts from a clone of the previous snapshot, so a metric group
// whose query fails keeps its last known values while the others refresh.
// A total failure (primary database unopenable) publishes the previous
// values with only the success flag, time and duration updated. In both
// cases the publish is a single atomic swap.
func (e *Engine) ScrapeAndUpdate(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.skipped.Add(1)
		slog.Info("scraper: cycle skipped, previous scrape still in progress")
		return ErrScrapeSkipped
	}
	defer e.inFlight.Store(false)

	cfg := e.cfg.Load()
	start := e.now()

	next := snapshot.New(cfg.HostnameLabel)
	if prev := e.holder.Load(); prev != nil {
		next = prev.Clone()
		next.Hostname = cfg.HostnameLabel
	}

	publish := func(success bool) {
		now := e.now()
		next.LastScrapeTime = now
		next.LastScrapeDuration = now.Sub(start)
		next.LastScrapeSuccess = success
		e.holder.Store(next)
	}

	db, err := store.Open(cfg.FTLDBPath)
	if err != nil {
		slog.Error("scraper: primary store unavailable", "path", cfg.FTLDBPath, "err", err)
		publish(false)
		return fmt.Errorf("scrape: %w", err)
	}
	defer db.Close()

	sod := startOfDay(e.now(), cfg.Location()).Unix()
	dayAgo := e.now().Add(-24 * time.Hour).Unix()
	slog.Debug("scraper: cycle start", "host", cfg.HostnameLabel, "sod", sod, "tz", cfg.Timezone)

	failed := 0
	group := func(name string, fn func() error) {
		if err := fn(); err != nil {
			failed++
			slog.Warn("scraper: metric group failed, keeping previous values",
				"group", name, "err", err)
		}
	}

	group("lifetime_counters", func() error { return loadLifetimeCounters(ctx, db, next) })
	group("clients_ever_seen", func() error { return loadClientsEverSeen(ctx, db, next) })
	group("today_counters", func() error { return loadTodayCounters(ctx, db, next, sod) })
	group("unique_counts", func() error { return loadUniqueCounts(ctx, db, next, dayAgo) })
	group("query_types", func() error { return loadQueryTypes(ctx, db, next, sod) })
	group("reply_types", func() error { return loadReplyTypes(ctx, db, next, sod) })
	group("forwarded_cached", func() error { return loadForwardedCached(ctx, db, next, sod) })
	group("forward_destinations", func() error { return loadForwardDestinations(ctx, db, next, sod) })
	group("top_lists", func() error { return loadTopLists(ctx, db, next, sod, cfg.TopN) })
	if cfg.LifetimeDestinations {
		group("lifetime_destinations", func() error { return loadLifetimeDestinations(ctx, db, next) })
	} else {
		next.LifetimeDestinations = map[string]float64{}
	}
	group("domains_blocked", func() error { return loadDomainsBlocked(ctx, cfg, db, next) })
	group("request_rate", func() error {
		rate, err := e.tracker.update(ctx, db, e.now())
		if err != nil {
			return err
		}
		next.RequestRate = rate
		return nil
	})

	publish(failed == 0)
	if failed > 0 {
		slog.Warn("scraper: cycle published with failed metric groups",
			"failed_groups", failed, "duration", next.LastScrapeDuration)
	} else {
		slog.Debug("scraper: cycle published", "duration", next.LastScrapeDuration)
	}
	return nil
}

// startOfDay returns midnight of now's day in loc.
func startOfDay(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

// --- metric groups ----------------------------------------------------------

func loadLifetimeCounters(ctx context.Context, db *store.DB, s *snapshot.Snapshot) error {
	total, _, err := db.Scalar(ctx, store.SQLCounterTotal)
	if err != nil {
		return err
	}
	blocked, _, err := db.Scalar(ctx, store.SQLCounterBlocked)
	if err != nil {
		return err
	}
	s.Status = 1
	s.TotalQueriesLifetime = float64(total)
	s.BlockedQueriesLifetime = float64(blocked)
	return nil
}

func loadClientsEverSeen(ctx context.Context, db *store.DB, s *snapshot.Snapshot) error {
	n, _, err := db.Scalar(ctx, store.SQLClientsEverSeen)
	if err != nil {
		return err
	}
	s.ClientsEverSeen = float64(n)
	return nil
}

func loadTodayCounters(ctx context.Context, db *store.DB, s *snapshot.Snapshot, sod int64) error {
	queries, _, err := db.Scalar(ctx, store.SQLQueriesToday, sod)
	if err != nil {
		return err
	}
	blocked, _, err := db.Scalar(ctx, store.SQLBlockedToday, sod)
	if err != nil {
		return err
	}
	s.DNSQueriesToday = float64(queries)
	s.AdsBlockedToday = float64(blocked)
	if queries > 0 {
		s.AdsPercentageToday = float64(blocked) / float64(queries) * 100
	} else {
		s.AdsPercentageToday = 0
	}
	return nil
}

func loadUniqueCounts(ctx context.Context, db *store.DB, s *snapshot.Snapshot, dayAgo int64) error {
	clients, _, err := db.Scalar(ctx, store.SQLUniqueClients, dayAgo)
	if err != nil {
		return err
	}
	domains, _, err := db.Scalar(ctx, store.SQLUniqueDomains, dayAgo)
	if err != nil {
		return err
	}
	s.UniqueClients = float64(clients)
	s.UniqueDomains = float64(domains)
	return nil
}

func loadQueryTypes(ctx context.Context, db *store.DB, s *snapshot.Snapshot, sod int64) error {
	counts, err := db.CountsByInt(ctx, store.SQLQueryTypes, sod)
	if err != nil {
		return err
	}
	// Rebuild the full label set zero-filled so labels that stopped
	// appearing read 0 instead of lingering at a stale count.
	types := make(map[string]float64, len(store.QueryTypeNames))
	for id, name := range store.QueryTypeNames {
		types[name] = float64(counts[id])
	}
	s.QueryTypes = types
	return nil
}

func loadReplyTypes(ctx context.Context, db *store.DB, s *snapshot.Snapshot, sod int64) error {
	counts, err := db.CountsByInt(ctx, store.SQLReplyTypes, sod)
	if err != nil {
		return err
	}
	replies := make(map[string]float64, len(store.ReplyTypeNames))
	for id, name := range store.ReplyTypeNames {
		replies[name] = float64(counts[id])
	}
	s.ReplyTypes = replies
	return nil
}

func loadForwardedCached(ctx context.Context, db *store.DB, s *snapshot.Snapshot, sod int64) error {
	forwarded, _, err := db.Scalar(ctx, store.SQLForwardedToday, sod)
	if err != nil {
		return err
	}
	cached, _, err := db.Scalar(ctx, store.SQLCachedToday, sod)
	if err != nil {
		return err
	}
	s.QueriesForwarded = float64(forwarded)
	s.QueriesCached = float64(cached)
	return nil
}

// loadForwardDestinations computes today's per-upstream request counts and
// response-time mean/variance, plus the synthetic "cache" and "blocklist"
// destinations so dashboards see where every query ended up.
func loadForwardDestinations(ctx context.Context, db *store.DB, s *snapshot.Snapshot, sod int64) error {
	dests, err := db.LabelCounts(ctx, store.SQLForwardDestsToday, sod)
	if err != nil {
		return err
	}

	out := make([]snapshot.Destination, 0, len(dests)+2)
	for _, d := range dests {
		times, err := db.Floats(ctx, store.SQLForwardReplyTimes, sod, d.Label)
		if err != nil {
			return err
		}
		var w welford
		for _, rt := range times {
			w.add(rt)
		}
		out = append(out, snapshot.Destination{
			Name:                 d.Label,
			Count:                float64(d.Count),
			ResponseTimeMean:     w.mean,
			ResponseTimeVariance: w.variance(),
		})
	}

	cached, _, err := db.Scalar(ctx, store.SQLCachedToday, sod)
	if err != nil {
		return err
	}
	blocked, _, err := db.Scalar(ctx, store.SQLBlockedToday, sod)
	if err != nil {
		return err
	}
	out = append(out,
		snapshot.Destination{Name: "cache", Count: float64(cached)},
		snapshot.Destination{Name: "blocklist", Count: float64(blocked)},
	)

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.ForwardDestinations = out
	return nil
}

func loadTopLists(ctx context.Context, db *store.DB, s *snapshot.Snapshot, sod int64, topN int) error {
	ads, err := db.LabelCounts(ctx, store.SQLTopAds, sod, topN)
	if err != nil {
		return err
	}
	queries, err := db.LabelCounts(ctx, store.SQLTopQueries, sod, topN)
	if err != nil {
		return err
	}
	sources, err := loadTopSources(ctx, db, sod, topN)
	if err != nil {
		return err
	}

	s.TopAds = toLabeledCounts(ads)
	s.TopQueries = toLabeledCounts(queries)
	s.TopSources = sources
	return nil
}

func loadTopSources(ctx context.Context, db *store.DB, sod int64, topN int) ([]snapshot.Source, error) {
	rows, err := db.Query(ctx, store.SQLTopSources, sod, topN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []snapshot.Source
	for rows.Next() {
		var src snapshot.Source
		var count int64
		if err := rows.Scan(&src.IP, &src.Name, &count); err != nil {
			return nil, fmt.Errorf("%w: scan top sources: %v", store.ErrQuery, err)
		}
		src.Count = float64(count)
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: top sources rows: %v", store.ErrQuery, err)
	}
	return out, nil
}

func toLabeledCounts(in []store.LabelCount) []snapshot.LabeledCount {
	out := make([]snapshot.LabeledCount, len(in))
	for i, lc := range in {
		out[i] = snapshot.LabeledCount{Label: lc.Label, Count: float64(lc.Count)}
	}
	return out
}

func loadLifetimeDestinations(ctx context.Context, db *store.DB, s *snapshot.Snapshot) error {
	dests, err := db.LabelCounts(ctx, store.SQLLifetimeForwardDests)
	if err != nil {
		return err
	}
	cache, _, err := db.Scalar(ctx, store.SQLLifetimeCache)
	if err != nil {
		return err
	}
	blocked, _, err := db.Scalar(ctx, store.SQLLifetimeBlocked)
	if err != nil {
		return err
	}

	lifetime := make(map[string]float64, len(dests)+2)
	for _, d := range dests {
		lifetime[d.Label] = float64(d.Count)
	}
	lifetime["cache"] = float64(cache)
	lifetime["blocklist"] = float64(blocked)
	s.LifetimeDestinations = lifetime
	return nil
}

// loadDomainsBlocked prefers the gravity database; when that file is absent
// or unreadable it falls back to counting distinct blocked domain ids in the
// primary store, flagged as lower precision. Only a failing fallback counts
// as a group failure.
func loadDomainsBlocked(ctx context.Context, cfg *config.ExporterConfig, db *store.DB, s *snapshot.Snapshot) error {
	if cfg.GravityDBPath != "" {
		gravity, err := store.Open(cfg.GravityDBPath)
		if err == nil {
			defer gravity.Close()
			if n, _, err := gravity.Scalar(ctx, store.SQLGravityCount); err == nil {
				s.DomainsBeingBlocked = float64(n)
				s.DomainsLowPrecision = false
				return nil
			} else {
				slog.Info("scraper: gravity query failed, falling back", "err", err)
			}
		} else {
			slog.Info("scraper: gravity database unavailable, falling back",
				"path", cfg.GravityDBPath, "err", err)
		}
	}

	n, _, err := db.Scalar(ctx, store.SQLDomainByIDCount)
	if err != nil {
		return err
	}
	s.DomainsBeingBlocked = float64(n)
	s.DomainsLowPrecision = true
	return nil
}
