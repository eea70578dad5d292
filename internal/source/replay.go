package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
)

// Replay serves a fixed sequence of pages, in order, regardless of the
// keywords asked for. It re-ingests a snapshot and feeds prefetched pages
// to the walker.
type Replay struct {
	pages []*ranking.Page
}

// NewReplay wraps pages. Their own NextTokens are replaced by positions in
// the sequence.
func NewReplay(pages []*ranking.Page) *Replay {
	out := make([]*ranking.Page, len(pages))
	for i, p := range pages {
		cp := *p
		cp.NextToken = ""
		if i+1 < len(pages) {
			cp.NextToken = strconv.Itoa(i + 1)
		}
		out[i] = &cp
	}
	return &Replay{pages: out}
}

// ReplayFromResponses builds a Replay from raw Custom Search responses.
func ReplayFromResponses(responses [][]byte) (*Replay, error) {
	pages := make([]*ranking.Page, 0, len(responses))
	for i, raw := range responses {
		page, _, err := ParseAPIResponse(raw)
		if err != nil {
			return nil, fmt.Errorf("response %d: %w", i, err)
		}
		pages = append(pages, page)
	}
	return NewReplay(pages), nil
}

func (r *Replay) FetchFirstPage(_ context.Context, _ []string) (*ranking.Page, error) {
	if len(r.pages) == 0 {
		return &ranking.Page{}, nil
	}
	return r.pages[0], nil
}

func (r *Replay) FetchNextPage(_ context.Context, token string) (*ranking.Page, error) {
	i, err := strconv.Atoi(token)
	if err != nil || i <= 0 || i >= len(r.pages) {
		return nil, fmt.Errorf("replay: invalid page token %q", token)
	}
	return r.pages[i], nil
}

// Len returns the number of pages.
func (r *Replay) Len() int { return len(r.pages) }
