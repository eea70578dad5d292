// Package ranking defines the domain types of the rank tracker: keyword sets,
// runs, documents and the rank entries that bind them, plus the ResultSource
// contract that supplies ranked candidates page by page.
package ranking

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// keywordSeparator joins keywords into the KeywordSet natural key.
const keywordSeparator = "\t"

// KeywordSet is an interned keyword list. Two sets are the same entity iff
// their Normalized keys are byte-identical.
type KeywordSet struct {
	ID         int64  `json:"id"`
	Normalized string `json:"keywords"`
}

// Keywords splits the normalized key back into its keywords.
func (k KeywordSet) Keywords() []string {
	if k.Normalized == "" {
		return nil
	}
	return strings.Split(k.Normalized, keywordSeparator)
}

// Label is the display label used for charts and series output.
func (k KeywordSet) Label() string {
	return "[" + itoa(k.ID) + "]" + k.Normalized
}

// Run is one ingestion attempt for a KeywordSet. Key is the Run's natural key
// within its KeywordSet.
type Run struct {
	ID           int64     `json:"id"`
	KeywordSetID int64     `json:"keyword_set_id"`
	Key          string    `json:"key"`
	RanAt        time.Time `json:"ran_at"`
}

// Document is a ranked page, identified by its URL.
type Document struct {
	ID     int64  `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	IsMine bool   `json:"is_mine"`
}

// Label is the display label used for series output; the ID prefix keeps
// labels unique when two documents share a title.
func (d Document) Label() string {
	return "[" + itoa(d.ID) + "]" + d.Title
}

// RankEntry binds one Document to one rank within one Run.
type RankEntry struct {
	ID         int64 `json:"id"`
	RunID      int64 `json:"run_id"`
	DocumentID int64 `json:"document_id"`
	Rank       int   `json:"rank"`
}

// Entry is one raw candidate extracted from a result page, in on-page order.
type Entry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Page is one page of ranked candidates. NextToken is empty when the source
// has no further page. Raw holds a JSON provider payload for snapshot export
// and Body the fetched HTML document for archiving; either may be nil.
type Page struct {
	Entries   []Entry         `json:"entries"`
	NextToken string          `json:"next_token,omitempty"`
	Raw       json.RawMessage `json:"-"`
	Body      []byte          `json:"-"`
}

// ResultSource supplies pages of ranked candidates for a keyword query.
type ResultSource interface {
	FetchFirstPage(ctx context.Context, keywords []string) (*Page, error)
	FetchNextPage(ctx context.Context, token string) (*Page, error)
}

// NormalizeKeywords produces the KeywordSet natural key. Keyword order is
// significant and preserved.
func NormalizeKeywords(keywords []string) string {
	return strings.Join(keywords, keywordSeparator)
}

// JoinForFilename joins keywords with underscores for archive file names.
func JoinForFilename(keywords []string) string {
	return strings.Join(keywords, "_")
}

// Query builds the search query string sent to a ResultSource.
func Query(keywords []string) string {
	return strings.Join(keywords, " ")
}

// IsMine reports whether url belongs to the operator's site: myURL must be
// non-empty and a substring of url.
func IsMine(url, myURL string) bool {
	return myURL != "" && strings.Contains(url, myURL)
}

// RunKey formats t as the default Run natural key, with microseconds.
func RunKey(t time.Time) string {
	return t.Format(RunKeyLayout)
}

// RunKeyLayout is the timestamp layout of default Run keys and of snapshot
// ranking_datetime values.
const RunKeyLayout = "2006-01-02 15:04:05.000000"
