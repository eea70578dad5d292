package server

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/middleware"
)

// NewRouter builds the rankserver HTTP handler.
//
// Route table:
//
//	GET    /api/v1/series         → assembled series (cached)
//	GET    /api/v1/keyword-sets   → known keyword sets
//	GET    /api/v1/cache/stats    → cache hit/miss counters
//	DELETE /api/v1/cache          → drop every cached series
//	GET    /health/live           → liveness
//	GET    /health/ready          → readiness (database, redis)
//	GET    /metrics               → prometheus
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Timeout → mux
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/series", h.Series)
	mux.HandleFunc("GET /api/v1/keyword-sets", h.KeywordSets)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(timeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
