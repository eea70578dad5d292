// Package source implements ranking.ResultSource for the two supported
// providers: scraping the HTML result pages of a search engine, and the
// Custom Search JSON API. A Replay source serves previously fetched pages.
package source

import (
	"fmt"
	"io"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
)

const (
	KindHTML   = "html"
	KindAPI    = "api"
	KindReplay = "replay"
)

// New builds the ResultSource named by kind. maxRank bounds how far the API
// source paginates.
func New(kind string, cfg config.SourceConfig, maxRank int) (ranking.ResultSource, error) {
	switch kind {
	case KindHTML:
		return NewHTML(cfg.HTML), nil
	case KindAPI:
		return NewAPI(cfg.API, maxRank), nil
	default:
		return nil, fmt.Errorf("unknown result source %q", kind)
	}
}

// readBody reads at most limit bytes of a successful response.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}
	if limit <= 0 {
		limit = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
