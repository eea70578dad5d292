package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// redirectPrefix wraps result links on the scraped page.
const redirectPrefix = "/url?q="

// HTMLSource scrapes ranked results from HTML search result pages.
//
// A result block is an element whose class attribute equals the configured
// selector exactly. Its first div must contain both an anchor and an h3;
// blocks missing either are not results (ads, carousels) and are skipped.
// The continuation token is the absolute URL of the next-page link.
type HTMLSource struct {
	cfg    config.HTMLSourceConfig
	base   *url.URL
	client *http.Client
	logger *slog.Logger
}

func NewHTML(cfg config.HTMLSourceConfig) *HTMLSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		base = &url.URL{}
	}
	return &HTMLSource{
		cfg:    cfg,
		base:   base,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default().With("component", "html-source"),
	}
}

func (s *HTMLSource) FetchFirstPage(ctx context.Context, keywords []string) (*ranking.Page, error) {
	u := s.base.ResolveReference(&url.URL{Path: s.cfg.SearchPath})
	u.RawQuery = url.Values{"q": {ranking.Query(keywords)}}.Encode()
	return s.fetch(ctx, u.String())
}

func (s *HTMLSource) FetchNextPage(ctx context.Context, token string) (*ranking.Page, error) {
	return s.fetch(ctx, token)
}

func (s *HTMLSource) fetch(ctx context.Context, target string) (*ranking.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp, s.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}

	page, err := s.Parse(body)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("page scraped", "url", target, "entries", len(page.Entries), "has_next", page.NextToken != "")
	return page, nil
}

// Parse extracts the entries and continuation token from one result page.
func (s *HTMLSource) Parse(body []byte) (*ranking.Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing result page: %w", err)
	}
	page := &ranking.Page{Body: body}
	selector := strings.TrimSpace(s.cfg.ResultSelector)

	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if selector != "" && strings.TrimSpace(attr(n, "class")) == selector {
			if e, ok := s.entryFromBlock(n); ok {
				page.Entries = append(page.Entries, e)
			}
			return false
		}
		if page.NextToken == "" && n.DataAtom == atom.A && s.cfg.NextPageLabel != "" &&
			attr(n, "aria-label") == s.cfg.NextPageLabel {
			if href := attr(n, "href"); href != "" {
				page.NextToken = s.resolve(href)
			}
		}
		return true
	})
	return page, nil
}

func (s *HTMLSource) entryFromBlock(block *html.Node) (ranking.Entry, bool) {
	inner := first(block, atom.Div)
	if inner == nil {
		return ranking.Entry{}, false
	}
	a := first(inner, atom.A)
	h3 := first(inner, atom.H3)
	if a == nil || h3 == nil {
		return ranking.Entry{}, false
	}
	return ranking.Entry{
		URL:   extractLink(attr(a, "href")),
		Title: strings.TrimSpace(text(h3)),
	}, true
}

func (s *HTMLSource) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return s.base.ResolveReference(ref).String()
}

// extractLink unwraps a redirect link: the prefix is removed, the remainder
// is cut at the first '&' and its percent escapes decoded. A literal '+'
// stays a '+'. Links without the prefix are returned unchanged.
func extractLink(href string) string {
	link, ok := strings.CutPrefix(href, redirectPrefix)
	if !ok {
		return href
	}
	if i := strings.IndexByte(link, '&'); i >= 0 {
		link = link[:i]
	}
	if unescaped, err := url.PathUnescape(link); err == nil {
		return unescaped
	}
	return link
}

// walk visits n and its descendants depth first; visit returns false to
// skip a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// first returns the first descendant element of n with tag a.
func first(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := first(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}
