package store

import (
	"strconv"
	"strings"
)

// BlockedStatuses are the FTL status codes that count as a blocked query
// (gravity, regex, exact and CNAME-depth blocks, plus the special statuses
// FTL assigns to database-busy and external blocks).
var BlockedStatuses = []int{1, 4, 5, 6, 7, 8, 9, 10, 11, 15}

// blockedList is the comma-joined status set, baked into the IN clauses
// below. SQLite cannot bind a list, and the set is a compile-time constant.
var blockedList = func() string {
	parts := make([]string, len(BlockedStatuses))
	for i, s := range BlockedStatuses {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}()

// QueryTypeNames maps FTL query type ids to exposition labels. The label
// set is recomputed fresh each scrape cycle, zero-filled from this map.
var QueryTypeNames = map[int64]string{
	1:  "A",
	2:  "AAAA",
	3:  "ANY",
	4:  "SRV",
	5:  "SOA",
	6:  "PTR",
	7:  "TXT",
	8:  "NAPTR",
	9:  "MX",
	10: "DS",
	11: "RRSIG",
	12: "DNSKEY",
	13: "NS",
	14: "OTHER",
	15: "SVCB",
	16: "HTTPS",
}

// ReplyTypeNames maps FTL reply type ids to exposition labels.
var ReplyTypeNames = map[int64]string{
	0:  "unknown",
	1:  "no_data",
	2:  "nx_domain",
	3:  "cname",
	4:  "ip",
	5:  "domain",
	6:  "rr_name",
	7:  "serv_fail",
	8:  "refused",
	9:  "not_imp",
	10: "other",
	11: "dnssec",
	12: "none",
	13: "blob",
}

// Lifetime counters maintained by FTL itself (counters table).
const (
	SQLCounterTotal   = "SELECT value FROM counters WHERE id = 0"
	SQLCounterBlocked = "SELECT value FROM counters WHERE id = 1"
)

// Whole-table counts.
const (
	SQLClientsEverSeen = "SELECT COUNT(*) FROM client_by_id"
	SQLDomainByIDCount = "SELECT COUNT(*) FROM domain_by_id"
	SQLGravityCount    = "SELECT COUNT(*) FROM gravity"
)

// Today counters, bounded by the start-of-day timestamp parameter.
const (
	SQLQueriesToday   = "SELECT COUNT(*) FROM queries WHERE timestamp >= ?"
	SQLForwardedToday = "SELECT COUNT(*) FROM queries WHERE timestamp >= ? AND status = 2"
	SQLCachedToday    = "SELECT COUNT(*) FROM queries WHERE timestamp >= ? AND status = 3"
	SQLUniqueClients  = "SELECT COUNT(DISTINCT client) FROM queries WHERE timestamp >= ?"
	SQLUniqueDomains  = "SELECT COUNT(DISTINCT domain) FROM queries WHERE timestamp >= ?"
)

// SQLBlockedToday counts today's blocked queries.
var SQLBlockedToday = "SELECT COUNT(*) FROM queries WHERE timestamp >= ? AND status IN (" + blockedList + ")"

// Grouped tallies per query/reply type.
const (
	SQLQueryTypes = `
SELECT type, COUNT(*) AS cnt
FROM queries
WHERE timestamp >= ?
GROUP BY type`

	SQLReplyTypes = `
SELECT reply_type, COUNT(*) AS cnt
FROM queries
WHERE timestamp >= ?
GROUP BY reply_type`
)

// Forward destination statistics. Counts come from the grouped query; the
// per-destination reply times feed the streaming mean/variance accumulator.
const (
	SQLForwardDestsToday = `
SELECT forward, COUNT(*) AS cnt
FROM queries
WHERE timestamp >= ?
  AND status = 2
  AND forward IS NOT NULL
GROUP BY forward`

	SQLForwardReplyTimes = `
SELECT reply_time
FROM queries
WHERE timestamp >= ?
  AND status = 2
  AND forward = ?
  AND reply_time IS NOT NULL`
)

// Lifetime per-destination counters (full query-log scans, behind the
// lifetime_destinations toggle).
const (
	SQLLifetimeForwardDests = `
SELECT forward, COUNT(*)
FROM queries
WHERE status = 2
  AND forward IS NOT NULL
GROUP BY forward`

	SQLLifetimeCache = "SELECT COUNT(*) FROM queries WHERE status = 3"
)

// SQLLifetimeBlocked counts blocked queries over the whole log.
var SQLLifetimeBlocked = "SELECT COUNT(*) FROM queries WHERE status IN (" + blockedList + ")"

// Top-N lists, ordered by descending count with the label as tie-breaker so
// truncation is deterministic. LIMIT binds the configured N.
var (
	SQLTopAds = `
SELECT domain, COUNT(*) AS cnt
FROM queries
WHERE timestamp >= ?
  AND status IN (` + blockedList + `)
GROUP BY domain
ORDER BY cnt DESC, domain ASC
LIMIT ?`

	SQLTopQueries = `
SELECT domain, COUNT(*) AS cnt
FROM queries
WHERE timestamp >= ?
GROUP BY domain
ORDER BY cnt DESC, domain ASC
LIMIT ?`

	SQLTopSources = `
SELECT q.client, COALESCE(c.name, ''), COUNT(*) AS cnt
FROM queries q
LEFT JOIN client_by_id c ON c.ip = q.client
WHERE q.timestamp >= ?
GROUP BY q.client, c.name
ORDER BY cnt DESC, q.client ASC
LIMIT ?`
)

// Request-rate cursor probing.
const (
	SQLMaxRowID      = "SELECT MAX(rowid) FROM queries"
	SQLMaxIDColumn   = "SELECT MAX(id) FROM queries"
	SQLQueriesSchema = "PRAGMA table_info(queries)"
)
