package walker

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	pages  []int // entries per page
	failAt int   // 1-based page that errors; 0 never
	tokens []string
	blank  map[int]bool // 0-based pages whose entries carry no URL
	repeat map[int]bool // 0-based pages that repeat page 0's URLs
}

func (f *fakeSource) page(i int) (*ranking.Page, error) {
	if f.failAt == i+1 {
		return nil, errors.New("503 from upstream")
	}
	p := &ranking.Page{}
	for n := 0; n < f.pages[i]; n++ {
		var url string
		switch {
		case f.blank[i]:
		case f.repeat[i]:
			url = "https://e.test/0/" + strconv.Itoa(n)
		default:
			url = "https://e.test/" + strconv.Itoa(i) + "/" + strconv.Itoa(n)
		}
		p.Entries = append(p.Entries, ranking.Entry{URL: url, Title: "t"})
	}
	if i+1 < len(f.pages) {
		p.NextToken = strconv.Itoa(i + 1)
	}
	return p, nil
}

func (f *fakeSource) FetchFirstPage(context.Context, []string) (*ranking.Page, error) {
	return f.page(0)
}

func (f *fakeSource) FetchNextPage(_ context.Context, token string) (*ranking.Page, error) {
	f.tokens = append(f.tokens, token)
	i, _ := strconv.Atoi(token)
	return f.page(i)
}

// countingSink ranks every entry and records the rank it was handed.
type countingSink struct {
	max    int
	handed []int
}

func (s *countingSink) MaxRank() int { return s.max }

func (s *countingSink) IngestPage(_ context.Context, entries []ranking.Entry, rankSoFar int) (int, error) {
	s.handed = append(s.handed, rankSoFar)
	rank := rankSoFar
	for range entries {
		rank++
		if rank >= s.max {
			return s.max, nil
		}
	}
	return rank, nil
}

func newTestWalker(src ranking.ResultSource, cfg Config) (*Walker, *[]time.Duration) {
	w := New(src, cfg)
	var slept []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return w, &slept
}

func TestWalkCarriesRankAcrossPages(t *testing.T) {
	src := &fakeSource{pages: []int{3, 3, 2}}
	sink := &countingSink{max: 100}
	w, slept := newTestWalker(src, Config{SourceName: "html", Delay: time.Second})

	rank, err := w.Walk(context.Background(), []string{"go"}, sink)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if rank != 8 {
		t.Errorf("expected rank 8, got %d", rank)
	}
	if got := sink.handed; len(got) != 3 || got[0] != 0 || got[1] != 3 || got[2] != 6 {
		t.Errorf("unexpected rankSoFar sequence %v", got)
	}
	if len(*slept) != 2 {
		t.Errorf("expected a delay before pages 2 and 3 only, got %v", *slept)
	}
}

func TestWalkStopsAtMaxRank(t *testing.T) {
	src := &fakeSource{pages: []int{3, 3, 3}}
	w, _ := newTestWalker(src, Config{})

	rank, err := w.Walk(context.Background(), nil, &countingSink{max: 5})
	if err != nil || rank != 5 {
		t.Fatalf("expected rank 5, got %d %v", rank, err)
	}
	if len(src.tokens) != 1 {
		t.Errorf("expected page 3 never fetched, tokens %v", src.tokens)
	}
}

func TestWalkStopsOnEmptyPage(t *testing.T) {
	src := &fakeSource{pages: []int{2, 0, 4}}
	w, _ := newTestWalker(src, Config{})
	rank, err := w.Walk(context.Background(), nil, &countingSink{max: 50})
	if err != nil || rank != 2 {
		t.Errorf("expected rank 2, got %d %v", rank, err)
	}
}

func TestWalkStopsOnPageWithoutUsableEntries(t *testing.T) {
	src := &fakeSource{pages: []int{1, 2, 2}, blank: map[int]bool{1: true}}
	sink := &countingSink{max: 20}
	w, _ := newTestWalker(src, Config{})

	rank, err := w.Walk(context.Background(), nil, sink)
	if err != nil || rank != 1 {
		t.Fatalf("expected rank 1, got %d %v", rank, err)
	}
	if len(sink.handed) != 1 {
		t.Errorf("expected only the first page ingested, got %v", sink.handed)
	}
	if len(src.tokens) != 1 {
		t.Errorf("expected page 3 never fetched, tokens %v", src.tokens)
	}
}

func TestWalkHandsOnlyUsableEntries(t *testing.T) {
	src := &fakeSource{pages: []int{3}}
	page, _ := src.page(0)
	page.Entries[1].URL = ""
	w, _ := newTestWalker(staticSource{page}, Config{})

	rank, err := w.Walk(context.Background(), nil, &countingSink{max: 20})
	if err != nil || rank != 2 {
		t.Errorf("expected rank 2, got %d %v", rank, err)
	}
}

type staticSource struct{ page *ranking.Page }

func (s staticSource) FetchFirstPage(context.Context, []string) (*ranking.Page, error) {
	return s.page, nil
}

func (s staticSource) FetchNextPage(context.Context, string) (*ranking.Page, error) {
	return nil, errors.New("no next page")
}

func TestWalkFetchFailureKeepsRank(t *testing.T) {
	m := metrics.New()
	src := &fakeSource{pages: []int{4, 4, 4}, failAt: 2}
	var observed []int
	w, _ := newTestWalker(src, Config{
		SourceName: "api",
		Metrics:    m,
		Observer:   func(_ context.Context, _ *ranking.Page, rankSoFar int) { observed = append(observed, rankSoFar) },
	})

	rank, err := w.Walk(context.Background(), nil, &countingSink{max: 50})
	if !errors.Is(err, apperrors.ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
	if rank != 4 {
		t.Errorf("expected rank 4 kept, got %d", rank)
	}
	if len(observed) != 1 || observed[0] != 0 {
		t.Errorf("expected observer called once at rank 0, got %v", observed)
	}
	if got := testutil.ToFloat64(m.FetchFailuresTotal.WithLabelValues("api")); got != 1 {
		t.Errorf("expected 1 fetch failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues("api")); got != 1 {
		t.Errorf("expected 1 page fetched, got %v", got)
	}
}

func TestWalkCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{pages: []int{2, 2}}
	w := New(src, Config{Delay: time.Hour})
	sink := &countingSink{max: 50}
	go cancel()

	rank, err := w.Walk(ctx, nil, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rank != 2 {
		t.Errorf("expected rank 2 from first page, got %d", rank)
	}
}

func TestPrefetchStopsAtDistinctCount(t *testing.T) {
	src := &fakeSource{pages: []int{10, 10, 10, 10}}
	w, _ := newTestWalker(src, Config{})
	pages, err := w.Prefetch(context.Background(), nil, 15)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("expected 2 pages for 15 entries, got %d", len(pages))
	}
}

func TestPrefetchCountsDuplicatesOnce(t *testing.T) {
	src := &fakeSource{pages: []int{10, 10, 10, 10}, repeat: map[int]bool{1: true}}
	w, _ := newTestWalker(src, Config{})
	pages, err := w.Prefetch(context.Background(), nil, 15)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if len(pages) != 3 {
		t.Errorf("expected a third page when page 2 repeats page 1, got %d", len(pages))
	}
}

func TestPrefetchStopsOnPageWithoutUsableEntries(t *testing.T) {
	src := &fakeSource{pages: []int{5, 5, 5}, blank: map[int]bool{1: true}}
	w, _ := newTestWalker(src, Config{})
	pages, err := w.Prefetch(context.Background(), nil, 100)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("expected prefetch to stop after the blank page, got %d pages", len(pages))
	}
}

func TestPrefetchReturnsPagesBeforeFailure(t *testing.T) {
	src := &fakeSource{pages: []int{10, 10, 10}, failAt: 3}
	w, _ := newTestWalker(src, Config{})
	pages, err := w.Prefetch(context.Background(), nil, 100)
	if !errors.Is(err, apperrors.ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure, got %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("expected 2 pages kept, got %d", len(pages))
	}
}
