// Package exporter renders snapshots into the Prometheus exposition format.
//
// Collector is a custom prometheus.Collector that rebuilds every series from
// the current snapshot on each Collect call, const metrics only, so label
// sets follow the snapshot exactly and stale series drop out by themselves.
//
// Handler wires the collector behind chi routes:
//
//	GET /metrics — exposition text; pure snapshot read, never touches SQLite
//	GET /healthz — 200 only if the last scrape succeeded and the snapshot is
//	               within the freshness bound, else 503
//	GET /readyz  — 200 once any scrape cycle has completed, else 503
//	GET /        — tiny index page
package exporter
