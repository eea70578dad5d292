// Package snapshot writes and reads the on-disk artifacts of a run: the
// fetched HTML pages, and a JSON snapshot of raw API responses that can be
// re-ingested later.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

// Snapshot is the persisted form of one run's raw API responses.
type Snapshot struct {
	RankingDatetime string            `json:"ranking_datetime"`
	Response        []json.RawMessage `json:"response"`
}

// RanAt parses RankingDatetime in the local time zone.
func (s *Snapshot) RanAt() (time.Time, error) {
	t, err := time.ParseInLocation(ranking.RunKeyLayout, s.RankingDatetime, time.Local)
	if err != nil {
		return time.Time{}, apperrors.Newf(apperrors.ErrInvalidInput, 400,
			"snapshot ranking_datetime %q: %v", s.RankingDatetime, err)
	}
	return t, nil
}

// Responses returns the raw responses in page order.
func (s *Snapshot) Responses() [][]byte {
	out := make([][]byte, len(s.Response))
	for i, r := range s.Response {
		out[i] = r
	}
	return out
}

// Path returns <dir>/YYYY-MM-DD/Data/response-<keywords>-<YYYYmmddHHMMSS>.json.
func Path(dir string, keywords []string, ranAt time.Time) string {
	name := "response-" + ranking.JoinForFilename(keywords) + "-" + ranAt.Format("20060102150405") + ".json"
	return filepath.Join(dir, ranAt.Format("2006-01-02"), "Data", name)
}

// Write stores the raw payloads of pages as a snapshot and returns its path.
// Pages without a raw payload are skipped.
func Write(dir string, keywords []string, ranAt time.Time, pages []*ranking.Page) (string, error) {
	snap := Snapshot{
		RankingDatetime: ranAt.Format(ranking.RunKeyLayout),
		Response:        make([]json.RawMessage, 0, len(pages)),
	}
	for _, p := range pages {
		if len(p.Raw) > 0 {
			snap.Response = append(snap.Response, p.Raw)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	path := Path(dir, keywords, ranAt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "decoding snapshot %s: %v", path, err)
	}
	return &snap, nil
}
