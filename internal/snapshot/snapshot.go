package snapshot

import (
	"sync/atomic"
	"time"
)

// LabeledCount is one entry of an ordered top-N list.
type LabeledCount struct {
	Label string
	Count float64
}

// Source is one entry of the top-sources list. Name is the resolved client
// name from FTL's client table, empty when unknown.
type Source struct {
	IP    string
	Name  string
	Count float64
}

// Destination holds today's per-upstream statistics. Variance is the
// population variance of the reply times (divide by n), computed with a
// numerically stable streaming formula.
type Destination struct {
	Name                 string
	Count                float64
	ResponseTimeMean     float64
	ResponseTimeVariance float64
}

// Snapshot is one point-in-time view of all exported values. Once published
// through a Holder it must not be mutated; build a new one instead.
type Snapshot struct {
	Hostname string

	// Status mirrors the original exporter's pihole_status gauge: 1 once
	// the FTL counters table has been read successfully.
	Status float64

	// Today counters, bounded by the configured time zone's start of day.
	DNSQueriesToday    float64
	AdsBlockedToday    float64
	AdsPercentageToday float64
	QueriesForwarded   float64
	QueriesCached      float64

	// Distinct counts over the trailing 24 hours, plus the all-time client
	// table size.
	UniqueClients   float64
	UniqueDomains   float64
	ClientsEverSeen float64

	// DomainsBeingBlocked comes from the gravity table when the secondary
	// database is readable; otherwise the lower-precision fallback count of
	// distinct blocked domain ids, flagged by DomainsLowPrecision.
	DomainsBeingBlocked float64
	DomainsLowPrecision bool

	// Per-type tallies, rebuilt fresh each cycle with the full label set
	// zero-filled so stale series cannot linger.
	QueryTypes map[string]float64
	ReplyTypes map[string]float64

	// Top-N lists, ordered by descending count, ties broken by label.
	TopAds     []LabeledCount
	TopQueries []LabeledCount
	TopSources []Source

	// ForwardDestinations holds today's per-upstream stats including the
	// synthetic "cache" and "blocklist" destinations.
	ForwardDestinations []Destination

	// Lifetime totals are monotonically non-decreasing counters taken from
	// FTL's own counters table.
	TotalQueriesLifetime   float64
	BlockedQueriesLifetime float64

	// LifetimeDestinations is populated only when the full-log scan toggle
	// is enabled; empty otherwise.
	LifetimeDestinations map[string]float64

	// RequestRate is new queries per second over the last inter-scrape
	// window, never negative.
	RequestRate float64

	// Scrape metadata. LastScrapeSuccess is true only when every metric
	// group of the cycle succeeded.
	LastScrapeTime     time.Time
	LastScrapeDuration time.Duration
	LastScrapeSuccess  bool
}

// New returns an empty snapshot for the given host label with all maps
// allocated.
func New(hostname string) *Snapshot {
	return &Snapshot{
		Hostname:             hostname,
		QueryTypes:           make(map[string]float64),
		ReplyTypes:           make(map[string]float64),
		LifetimeDestinations: make(map[string]float64),
	}
}

// Clone returns a deep copy safe to mutate while the original stays
// published.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.QueryTypes = copyMap(s.QueryTypes)
	c.ReplyTypes = copyMap(s.ReplyTypes)
	c.LifetimeDestinations = copyMap(s.LifetimeDestinations)
	c.TopAds = append([]LabeledCount(nil), s.TopAds...)
	c.TopQueries = append([]LabeledCount(nil), s.TopQueries...)
	c.TopSources = append([]Source(nil), s.TopSources...)
	c.ForwardDestinations = append([]Destination(nil), s.ForwardDestinations...)
	return &c
}

// Age returns how long ago the snapshot was published.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.LastScrapeTime)
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Holder publishes snapshots to concurrent readers. Store replaces the
// current snapshot with a single pointer swap; Load never blocks and never
// observes a partially built value. Load returns nil until the first cycle
// completes.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

// Load returns the current snapshot, or nil before the first publish.
// Callers must treat the result as read-only.
func (h *Holder) Load() *Snapshot { return h.p.Load() }

// Store publishes snap as the current snapshot.
func (h *Holder) Store(snap *Snapshot) { h.p.Store(snap) }
