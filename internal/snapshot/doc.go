// Package snapshot holds the latest fully-computed set of metric values.
//
// A Snapshot is built by the scrape engine, published through a Holder with
// a single atomic pointer swap, and from then on treated as immutable: HTTP
// readers load the pointer and never observe fields from different scrape
// cycles mixed together. The engine starts each cycle from Clone() of the
// previous snapshot so metric groups whose queries fail carry forward their
// last known values instead of disappearing.
package snapshot
