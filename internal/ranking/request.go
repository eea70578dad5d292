package ranking

// TrackRequest describes one ingestion invocation.
type TrackRequest struct {
	Keywords []string `json:"keywords"`
	MaxRank  int      `json:"max_rank"`
	MyURL    string   `json:"my_url"`
	// Source is "html" or "api". It is ignored when ReplayPath is set.
	Source string `json:"source"`
	// Drop resets the schema before ingesting. With no keywords it is the
	// whole request.
	Drop bool `json:"drop"`
	// RunKey overrides the default run natural key. Re-using a key makes the
	// invocation a no-op for that keyword set.
	RunKey string `json:"run_key,omitempty"`
	// ReplayPath re-ingests a JSON snapshot instead of fetching.
	ReplayPath    string `json:"replay_path,omitempty"`
	SnapshotFirst bool   `json:"snapshot_first"`
}

// Empty reports whether the request names no keywords.
func (r *TrackRequest) Empty() bool {
	return len(r.Keywords) == 0
}
