package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
)

// apiResponse is the subset of the Custom Search response the tracker reads.
type apiResponse struct {
	Items []struct {
		Title        string `json:"title"`
		FormattedURL string `json:"formattedUrl"`
		Link         string `json:"link"`
	} `json:"items"`
	Queries struct {
		NextPage []struct {
			StartIndex int `json:"startIndex"`
		} `json:"nextPage"`
	} `json:"queries"`
}

// APISource pages through the Custom Search JSON API.
//
// The continuation token carries the query, the next start index and the
// page count, so the source itself holds no per-walk state. Pagination ends
// when the response has no nextPage, when the next start index exceeds the
// rank bound, or after PageLimit pages.
type APISource struct {
	cfg     config.APISourceConfig
	maxRank int
	client  *http.Client
	logger  *slog.Logger
}

func NewAPI(cfg config.APISourceConfig, maxRank int) *APISource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &APISource{
		cfg:     cfg,
		maxRank: maxRank,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "api-source"),
	}
}

func (s *APISource) FetchFirstPage(ctx context.Context, keywords []string) (*ranking.Page, error) {
	return s.fetch(ctx, ranking.Query(keywords), 1, 1)
}

func (s *APISource) FetchNextPage(ctx context.Context, token string) (*ranking.Page, error) {
	v, err := url.ParseQuery(token)
	if err != nil {
		return nil, fmt.Errorf("decoding continuation token: %w", err)
	}
	start, err := strconv.Atoi(v.Get("start"))
	if err != nil {
		return nil, fmt.Errorf("decoding continuation token start: %w", err)
	}
	pageNo, err := strconv.Atoi(v.Get("page"))
	if err != nil {
		return nil, fmt.Errorf("decoding continuation token page: %w", err)
	}
	return s.fetch(ctx, v.Get("q"), start, pageNo)
}

func (s *APISource) fetch(ctx context.Context, query string, start, pageNo int) (*ranking.Page, error) {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	params := url.Values{
		"key":   {s.cfg.APIKey},
		"cx":    {s.cfg.EngineID},
		"q":     {query},
		"num":   {strconv.Itoa(s.cfg.PageSize)},
		"start": {strconv.Itoa(start)},
	}
	if s.cfg.Language != "" {
		params.Set("lr", s.cfg.Language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		// The URL carries the API key; report the endpoint only.
		return nil, fmt.Errorf("GET %s (start=%d): %w", s.cfg.Endpoint, start, unwrapURLError(err))
	}
	defer resp.Body.Close()
	body, err := readBody(resp, 0)
	if err != nil {
		return nil, fmt.Errorf("GET %s (start=%d): %w", s.cfg.Endpoint, start, err)
	}

	page, next, err := ParseAPIResponse(body)
	if err != nil {
		return nil, err
	}
	switch {
	case next == 0:
	case s.maxRank > 0 && next > s.maxRank:
		s.logger.Debug("next start index beyond rank bound", "next_start", next, "max_rank", s.maxRank)
	case s.cfg.PageLimit > 0 && pageNo >= s.cfg.PageLimit:
		s.logger.Debug("page limit reached", "pages", pageNo)
	default:
		page.NextToken = url.Values{
			"q":     {query},
			"start": {strconv.Itoa(next)},
			"page":  {strconv.Itoa(pageNo + 1)},
		}.Encode()
	}
	s.logger.Debug("api page fetched", "start", start, "entries", len(page.Entries), "has_next", page.NextToken != "")
	return page, nil
}

// ParseAPIResponse decodes one Custom Search response into a Page, returning
// the next start index, or 0 when the response has no next page. The raw
// payload is kept on the Page for snapshot export.
func ParseAPIResponse(raw []byte) (*ranking.Page, int, error) {
	var r apiResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, 0, fmt.Errorf("decoding api response: %w", err)
	}
	page := &ranking.Page{Raw: json.RawMessage(raw)}
	for _, item := range r.Items {
		link := item.FormattedURL
		if link == "" {
			link = item.Link
		}
		page.Entries = append(page.Entries, ranking.Entry{URL: link, Title: item.Title})
	}
	next := 0
	if len(r.Queries.NextPage) > 0 {
		next = r.Queries.NextPage[0].StartIndex
	}
	return page, next, nil
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
