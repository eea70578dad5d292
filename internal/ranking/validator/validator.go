// Package validator checks a TrackRequest before any ingestion starts and
// reports every problem at once, per field.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

const (
	maxKeywords      = 32
	maxKeywordLength = 256
	maxRunKeyLength  = 64
)

// ValidationError holds per-field validation failure messages. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateTrackRequest checks req against the configured sources.
func ValidateTrackRequest(req *ranking.TrackRequest, src config.SourceConfig) error {
	errs := make(map[string]string)

	if req.Empty() {
		if !req.Drop {
			errs["keywords"] = "at least one keyword is required"
		}
	} else {
		validateKeywords(req.Keywords, errs)
		if req.MaxRank <= 0 {
			errs["max_rank"] = "max rank must be a positive integer"
		}
		if len(req.RunKey) > maxRunKeyLength {
			errs["run_key"] = fmt.Sprintf("run key must be at most %d characters", maxRunKeyLength)
		}
		if req.ReplayPath == "" {
			validateSource(req, src, errs)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateKeywords(keywords []string, errs map[string]string) {
	if len(keywords) > maxKeywords {
		errs["keywords"] = fmt.Sprintf("at most %d keywords are allowed", maxKeywords)
		return
	}
	for i, kw := range keywords {
		switch {
		case strings.TrimSpace(kw) == "":
			errs["keywords"] = fmt.Sprintf("keyword %d is blank", i+1)
		case strings.ContainsAny(kw, "\t\n\r"):
			errs["keywords"] = fmt.Sprintf("keyword %d contains a tab or newline", i+1)
		case len(kw) > maxKeywordLength:
			errs["keywords"] = fmt.Sprintf("keyword %d must be at most %d bytes", i+1, maxKeywordLength)
		default:
			continue
		}
		return
	}
}

func validateSource(req *ranking.TrackRequest, src config.SourceConfig, errs map[string]string) {
	switch req.Source {
	case "html":
		if src.HTML.BaseURL == "" {
			errs["source"] = "html source requires a base url"
		}
		if req.SnapshotFirst {
			errs["snapshot_first"] = "snapshots hold api responses; use the api source"
		}
	case "api":
		if src.API.APIKey == "" {
			errs["api_key"] = "api source requires GCP_CUSTOM_SEARCH_API_KEY"
		}
		if src.API.EngineID == "" {
			errs["engine_id"] = "api source requires GCP_CUSTOM_SEARCH_ENGINE_ID"
		}
	default:
		errs["source"] = fmt.Sprintf("unknown source %q (want html or api)", req.Source)
	}
}
