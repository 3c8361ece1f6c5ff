// Package store is the read-only adapter over Pi-hole's SQLite databases.
//
// Open(path) opens a database in read-only mode (file: URI with mode=ro), so
// accidental writes are impossible, and verifies it is reachable with a ping.
// A missing or unopenable file is reported as ErrUnavailable; individual
// query failures are reported as ErrQuery and are recoverable: the scrape
// engine skips the affected metric group and continues.
//
// queries.go holds the SQL text for the FTL schema (queries, counters,
// client_by_id, domain_by_id tables) and the gravity schema, together with
// the blocked-status set and the query/reply type label maps. Column names
// are an external contract owned by Pi-hole FTL.
package store
