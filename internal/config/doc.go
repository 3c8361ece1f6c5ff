// Package config loads and validates the exporter's YAML configuration.
//
// Load(path) reads the file, fills defaults for absent fields and validates
// structural constraints. Watch(ctx, path, onChange) hot-reloads the file on
// write; only the fields the scrape engine can apply at runtime (top-N,
// hostname label, lifetime toggle, freshness factor) take effect without a
// restart; listen address and scrape interval are fixed at startup.
package config
