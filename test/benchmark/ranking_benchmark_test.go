package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/series"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/tracker"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"
)

func newStore(b *testing.B) *store.Store {
	b.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { db.Close() })
	st := store.New(db)
	if err := st.CreateSchema(context.Background()); err != nil {
		b.Fatal(err)
	}
	return st
}

// pages builds numPages pages of perPage entries; every third entry repeats
// an earlier URL so the dedup path is exercised.
func pages(numPages, perPage int) []*ranking.Page {
	out := make([]*ranking.Page, numPages)
	n := 0
	for p := range out {
		entries := make([]ranking.Entry, perPage)
		for i := range entries {
			id := n
			if n%3 == 2 {
				id = n - 1
			}
			entries[i] = ranking.Entry{URL: fmt.Sprintf("https://site%d.test/", id), Title: fmt.Sprintf("Result %d", id)}
			n++
		}
		out[p] = &ranking.Page{Entries: entries}
	}
	return out
}

// BenchmarkTrack measures one ingestion run end to end over in-memory SQLite
// for different depths.
func BenchmarkTrack(b *testing.B) {
	for _, maxRank := range []int{20, 100} {
		b.Run(fmt.Sprintf("max_rank_%d", maxRank), func(b *testing.B) {
			st := newStore(b)
			recorded := pages(maxRank/10+2, 10)
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
			i := 0
			tr := tracker.New(st, tracker.Config{
				Sources: config.Default().Source,
				NewSource: func(string, int) (ranking.ResultSource, error) {
					return source.NewReplay(recorded), nil
				},
				Now: func() time.Time { return base.Add(time.Duration(i) * time.Second) },
			})
			req := &ranking.TrackRequest{Keywords: []string{"bench"}, MaxRank: maxRank, MyURL: "site1.", Source: source.KindHTML}
			b.ReportAllocs()
			b.ResetTimer()
			for ; i < b.N; i++ {
				if _, err := tr.Track(context.Background(), req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSeriesBuild measures series assembly for a keyword set with a
// growing number of recorded runs.
func BenchmarkSeriesBuild(b *testing.B) {
	for _, runs := range []int{10, 100} {
		b.Run(fmt.Sprintf("runs_%d", runs), func(b *testing.B) {
			st := newStore(b)
			recorded := pages(3, 10)
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
			for r := 0; r < runs; r++ {
				at := base.Add(time.Duration(r) * time.Hour)
				tr := tracker.New(st, tracker.Config{
					Sources: config.Default().Source,
					NewSource: func(string, int) (ranking.ResultSource, error) {
						return source.NewReplay(recorded), nil
					},
					Now: func() time.Time { return at },
				})
				if _, err := tr.Track(context.Background(), &ranking.TrackRequest{
					Keywords: []string{"bench"}, MaxRank: 20, Source: source.KindHTML,
				}); err != nil {
					b.Fatal(err)
				}
			}
			asm := series.NewAssembler(st, nil)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := asm.Build(context.Background(), []string{"bench"}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkHTMLParse measures result-page extraction.
func BenchmarkHTMLParse(b *testing.B) {
	cfg := config.Default().Source.HTML
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, `<div class="%s"><div><a href="/url?q=https://site%d.test/&sa=U"><h3>Result %d</h3></a></div></div>`,
			cfg.ResultSelector, i, i)
	}
	fmt.Fprintf(&sb, `<a aria-label="%s" href="/search?q=x&start=10">next</a></body></html>`, cfg.NextPageLabel)
	body := []byte(sb.String())
	src := source.NewHTML(cfg)

	b.ReportAllocs()
	b.SetBytes(int64(len(body)))
	for i := 0; i < b.N; i++ {
		page, err := src.Parse(body)
		if err != nil {
			b.Fatal(err)
		}
		if len(page.Entries) != 10 {
			b.Fatalf("expected 10 entries, got %d", len(page.Entries))
		}
	}
}
