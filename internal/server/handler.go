// Package server exposes the assembled rank series over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/series"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
)

type SeriesBuilder interface {
	Build(ctx context.Context, keywords []string) (series.Result, error)
}

type KeywordSetLister interface {
	ListKeywordSets(ctx context.Context) ([]ranking.KeywordSet, error)
}

type Handler struct {
	builder SeriesBuilder
	sets    KeywordSetLister
	cache   *series.Cache
	logger  *slog.Logger
}

// New creates a Handler. cache may be nil, which disables caching.
func New(builder SeriesBuilder, sets KeywordSetLister, cache *series.Cache) *Handler {
	return &Handler{
		builder: builder,
		sets:    sets,
		cache:   cache,
		logger:  slog.Default().With("component", "series-handler"),
	}
}

// Series serves GET /api/v1/series. Each keywords parameter is one keyword
// of the set, in order; with none, every keyword set is returned.
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	keywords := r.URL.Query()["keywords"]
	for _, kw := range keywords {
		if kw == "" {
			h.writeError(w, http.StatusBadRequest, "keywords must not be empty")
			return
		}
	}

	build := func() (series.Result, error) {
		return h.builder.Build(ctx, keywords)
	}
	var (
		result   series.Result
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrBuild(ctx, keywords, build)
	} else {
		result, err = build()
	}
	if err != nil {
		log.Error("series build failed", "keywords", ranking.NormalizeKeywords(keywords), "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "series build failed")
		return
	}

	log.Info("series served",
		"keywords", ranking.NormalizeKeywords(keywords),
		"keyword_sets", len(result),
		"cache_hit", cacheHit,
	)
	h.writeJSON(w, http.StatusOK, result)
}

// KeywordSets serves GET /api/v1/keyword-sets.
func (h *Handler) KeywordSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.sets.ListKeywordSets(r.Context())
	if err != nil {
		h.logger.Error("listing keyword sets failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "listing keyword sets failed")
		return
	}
	type item struct {
		ID       int64    `json:"id"`
		Label    string   `json:"label"`
		Keywords []string `json:"keywords"`
	}
	out := make([]item, 0, len(sets))
	for _, ks := range sets {
		out = append(out, item{ID: ks.ID, Label: ks.Label(), Keywords: ks.Keywords()})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate serves DELETE /api/v1/cache.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
