package exporter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/piholestats/pihole-sqlite-exporter/internal/snapshot"
)

// Health reports the scrape state the probe handlers need. Implemented by
// the scraper engine.
type Health interface {
	SkippedTotal() int64
	FreshnessBound() time.Duration
}

// Handler serves the exporter's HTTP surface. Every route is a pure read of
// the published snapshot; no request ever blocks on an in-progress scrape
// or touches a database.
type Handler struct {
	holder  *snapshot.Holder
	health  Health
	metrics http.Handler

	now func() time.Time // injectable for deterministic tests
}

// NewHandler builds the handler and its dedicated metrics registry. The
// registry holds only the snapshot collector, matching the original
// exporter's standalone registry without process/runtime collectors.
func NewHandler(holder *snapshot.Holder, health Health) *Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(holder, health.SkippedTotal))

	return &Handler{
		holder:  holder,
		health:  health,
		metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		now:     time.Now,
	}
}

// Routes returns the chi router for the exporter's three endpoints plus a
// small index page.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.index)
	r.Get("/metrics", h.metrics.ServeHTTP)
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	return r
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html><head><title>Pi-hole SQLite Exporter</title></head>
<body><h1>Pi-hole SQLite Exporter</h1><p><a href="/metrics">Metrics</a></p></body></html>
`)
}

// healthz reports degraded scrape health: failure when no scrape has ever
// succeeded, when the last cycle failed (fully or partially), or when the
// snapshot has aged past the freshness bound.
func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	snap := h.holder.Load()
	switch {
	case snap == nil:
		plainText(w, http.StatusServiceUnavailable, "no scrape has completed")
	case !snap.LastScrapeSuccess:
		plainText(w, http.StatusServiceUnavailable, "last scrape failed")
	case snap.Age(h.now()) > h.health.FreshnessBound():
		plainText(w, http.StatusServiceUnavailable,
			fmt.Sprintf("snapshot stale: age %s exceeds bound %s",
				snap.Age(h.now()).Truncate(time.Millisecond), h.health.FreshnessBound()))
	default:
		plainText(w, http.StatusOK, "ok")
	}
}

// readyz turns ready once any scrape cycle has completed, regardless of its
// outcome: readiness means "the loop is running", health means "the data
// is good".
func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if h.holder.Load() == nil {
		plainText(w, http.StatusServiceUnavailable, "no scrape has completed")
		return
	}
	plainText(w, http.StatusOK, "ok")
}

func plainText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
}
