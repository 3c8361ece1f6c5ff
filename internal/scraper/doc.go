// Package scraper reads Pi-hole's databases and publishes metric snapshots.
//
// Engine.ScrapeAndUpdate runs one scrape cycle: it opens the FTL database
// read-only, runs each metric group fault-isolated (a failed group keeps its
// previous values and degrades the success flag, the rest proceed), updates
// the request-rate tracker and atomically publishes the merged snapshot.
// Only one cycle runs at a time: a cycle arriving while another is in
// flight is counted and skipped, never queued.
//
// Scheduler drives the engine on a fixed start-to-start interval on its own
// goroutine and stops within one tick of context cancellation.
package scraper
