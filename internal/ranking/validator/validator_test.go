package validator

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

func TestValidateTrackRequest(t *testing.T) {
	src := config.Default().Source
	withAPI := src
	withAPI.API.APIKey = "key"
	withAPI.API.EngineID = "cx"

	tests := []struct {
		name    string
		req     ranking.TrackRequest
		src     config.SourceConfig
		wantErr []string
	}{
		{"valid html", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: 20, Source: "html"}, src, nil},
		{"valid api", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: 20, Source: "api", SnapshotFirst: true}, withAPI, nil},
		{"drop only", ranking.TrackRequest{Drop: true}, src, nil},
		{"nothing to do", ranking.TrackRequest{MaxRank: 20, Source: "html"}, src, []string{"keywords"}},
		{"zero max rank", ranking.TrackRequest{Keywords: []string{"go"}, Source: "html"}, src, []string{"max_rank"}},
		{"negative max rank", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: -3, Source: "html"}, src, []string{"max_rank"}},
		{"blank keyword", ranking.TrackRequest{Keywords: []string{"go", " "}, MaxRank: 5, Source: "html"}, src, []string{"keywords"}},
		{"tab in keyword", ranking.TrackRequest{Keywords: []string{"a\tb"}, MaxRank: 5, Source: "html"}, src, []string{"keywords"}},
		{"unknown source", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: 5, Source: "bing"}, src, []string{"source"}},
		{"api without credentials", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: 5, Source: "api"}, src, []string{"api_key", "engine_id"}},
		{"html snapshot", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: 5, Source: "html", SnapshotFirst: true}, src, []string{"snapshot_first"}},
		{"replay ignores source", ranking.TrackRequest{Keywords: []string{"go"}, MaxRank: 5, ReplayPath: "snap.json"}, src, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrackRequest(&tt.req, tt.src)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Error("expected ErrInvalidInput in chain")
			}
			for _, field := range tt.wantErr {
				if _, ok := verr.Fields[field]; !ok {
					t.Errorf("expected error on %q, got %v", field, verr.Fields)
				}
			}
			if len(verr.Fields) != len(tt.wantErr) {
				t.Errorf("expected %d field errors, got %v", len(tt.wantErr), verr.Fields)
			}
		})
	}
}
