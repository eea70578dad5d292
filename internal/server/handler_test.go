package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/series"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/middleware"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}

	ks, _ := st.ResolveKeywordSet(ctx, []string{"go", "rank"})
	older := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	r1, _, _ := st.ResolveRun(ctx, ks.ID, ranking.RunKey(older), older)
	r2, _, _ := st.ResolveRun(ctx, ks.ID, ranking.RunKey(newer), newer)
	a, _, _ := st.ResolveDocument(ctx, ranking.Document{URL: "https://a", Title: "A"})
	b, _, _ := st.ResolveDocument(ctx, ranking.Document{URL: "https://b", Title: "B"})
	st.InsertRankEntry(ctx, r1.ID, b.ID, 1)
	st.InsertRankEntry(ctx, r2.ID, a.ID, 3)
	return st
}

func newTestRouter(t *testing.T, st *store.Store, cache *series.Cache) http.Handler {
	t.Helper()
	checker := health.NewChecker()
	checker.Register("database", health.PingCheck(st, health.StatusDown))
	h := New(series.NewAssembler(st, nil), st, cache)
	return NewRouter(h, checker, metrics.New(), 5*time.Second)
}

func TestSeriesEndpoint(t *testing.T) {
	router := newTestRouter(t, seededStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/series?keywords=go&keywords=rank", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request ID header")
	}
	var body map[string]struct {
		Dates  []time.Time       `json:"dates"`
		Series map[string][]*int `json:"series"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	got, ok := body["[1]go\trank"]
	if !ok {
		t.Fatalf("missing keyword set in %s", rec.Body)
	}
	if len(got.Dates) != 2 {
		t.Errorf("expected 2 dates, got %d", len(got.Dates))
	}
	if a := got.Series["[1]A"]; len(a) != 2 || a[0] == nil || *a[0] != 3 || a[1] != nil {
		t.Errorf("unexpected series for A: %v", a)
	}
	if !strings.Contains(rec.Body.String(), "null") {
		t.Error("absent ranks must be encoded as null")
	}
}

func TestSeriesRejectsEmptyKeyword(t *testing.T) {
	router := newTestRouter(t, seededStore(t), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/series?keywords=", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

type failingBuilder struct{}

func (failingBuilder) Build(context.Context, []string) (series.Result, error) {
	return nil, apperrors.Persistence("querying series rows", errors.New("disk I/O error"))
}

func TestSeriesMapsStoreFailure(t *testing.T) {
	st := seededStore(t)
	h := New(failingBuilder{}, st, nil)
	rec := httptest.NewRecorder()
	h.Series(rec, httptest.NewRequest(http.MethodGet, "/api/v1/series", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestKeywordSetsEndpoint(t *testing.T) {
	router := newTestRouter(t, seededStore(t), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/keyword-sets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sets []struct {
		ID       int64    `json:"id"`
		Label    string   `json:"label"`
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sets); err != nil {
		t.Fatal(err)
	}
	if len(sets) != 1 || sets[0].Label != "[1]go\trank" || len(sets[0].Keywords) != 2 {
		t.Errorf("unexpected keyword sets %+v", sets)
	}
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	router := newTestRouter(t, seededStore(t), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("unexpected stats body %s", rec.Body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, seededStore(t), nil)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
