package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
)

// fakeSearchAPI serves total results in pages of size num.
func fakeSearchAPI(t *testing.T, total int, seen *[]apiRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		*seen = append(*seen, apiRequest{q.Get("q"), q.Get("start"), q.Get("key"), q.Get("lr")})
		mu.Unlock()

		start, _ := strconv.Atoi(q.Get("start"))
		num, _ := strconv.Atoi(q.Get("num"))
		var items []map[string]string
		for i := start; i < start+num && i <= total; i++ {
			items = append(items, map[string]string{
				"title":        fmt.Sprintf("Result %d", i),
				"formattedUrl": fmt.Sprintf("https://example.com/%d", i),
			})
		}
		resp := map[string]any{"items": items, "queries": map[string]any{}}
		if start+num <= total {
			resp["queries"] = map[string]any{
				"nextPage": []map[string]int{{"startIndex": start + num}},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

type apiRequest struct{ q, start, key, lr string }

func newAPITestSource(endpoint string, maxRank, pageLimit int) *APISource {
	return NewAPI(config.APISourceConfig{
		Endpoint:  endpoint,
		APIKey:    "test-key",
		EngineID:  "engine",
		Language:  "lang_ja",
		PageSize:  10,
		PageLimit: pageLimit,
	}, maxRank)
}

func TestAPISourcePaginatesUntilRankBound(t *testing.T) {
	var seen []apiRequest
	srv := fakeSearchAPI(t, 100, &seen)
	defer srv.Close()
	src := newAPITestSource(srv.URL, 20, 10)

	page, err := src.FetchFirstPage(context.Background(), []string{"go", "rank"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 10 || page.Entries[0].URL != "https://example.com/1" {
		t.Fatalf("unexpected first page %+v", page.Entries)
	}
	if len(page.Raw) == 0 {
		t.Error("expected raw payload kept")
	}
	if page.NextToken == "" {
		t.Fatal("expected a next page")
	}

	second, err := src.FetchNextPage(context.Background(), page.NextToken)
	if err != nil {
		t.Fatal(err)
	}
	if second.Entries[0].URL != "https://example.com/11" {
		t.Errorf("unexpected second page %+v", second.Entries[0])
	}
	if second.NextToken != "" {
		t.Errorf("start index 21 exceeds max rank 20, expected no next page, got %q", second.NextToken)
	}

	if len(seen) != 2 || seen[0].q != "go rank" || seen[0].key != "test-key" || seen[0].lr != "lang_ja" || seen[1].start != "11" {
		t.Errorf("unexpected requests %+v", seen)
	}
}

func TestAPISourcePageLimit(t *testing.T) {
	var seen []apiRequest
	srv := fakeSearchAPI(t, 100, &seen)
	defer srv.Close()
	src := newAPITestSource(srv.URL, 100, 2)

	page, err := src.FetchFirstPage(context.Background(), []string{"go"})
	if err != nil {
		t.Fatal(err)
	}
	page, err = src.FetchNextPage(context.Background(), page.NextToken)
	if err != nil {
		t.Fatal(err)
	}
	if page.NextToken != "" {
		t.Errorf("expected page limit to end pagination, got %q", page.NextToken)
	}
}

func TestAPISourceLastPage(t *testing.T) {
	var seen []apiRequest
	srv := fakeSearchAPI(t, 4, &seen)
	defer srv.Close()

	page, err := newAPITestSource(srv.URL, 20, 10).FetchFirstPage(context.Background(), []string{"go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Entries) != 4 || page.NextToken != "" {
		t.Errorf("expected 4 entries and no next page, got %d / %q", len(page.Entries), page.NextToken)
	}
}

func TestAPISourceBadToken(t *testing.T) {
	src := newAPITestSource("http://127.0.0.1:0", 20, 10)
	if _, err := src.FetchNextPage(context.Background(), "start=abc&page=2"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestReplayServesPagesInOrder(t *testing.T) {
	raw := [][]byte{
		[]byte(`{"items":[{"title":"A","formattedUrl":"https://a"}],"queries":{"nextPage":[{"startIndex":2}]}}`),
		[]byte(`{"items":[{"title":"B","formattedUrl":"https://b"}],"queries":{}}`),
	}
	r, err := ReplayFromResponses(raw)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 pages, got %d", r.Len())
	}
	first, _ := r.FetchFirstPage(context.Background(), nil)
	if first.Entries[0].Title != "A" || first.NextToken == "" {
		t.Fatalf("unexpected first page %+v", first)
	}
	second, err := r.FetchNextPage(context.Background(), first.NextToken)
	if err != nil {
		t.Fatal(err)
	}
	if second.Entries[0].Title != "B" || second.NextToken != "" {
		t.Errorf("unexpected second page %+v", second)
	}
	if _, err := r.FetchNextPage(context.Background(), "9"); err == nil {
		t.Error("expected error for out of range token")
	}
}
