package ranking

import (
	"strconv"
	"time"
)

// RunCompletedType tags RunCompletedEvent messages on the wire.
const RunCompletedType = "run.completed"

// RunCompletedEvent is published after a Run finishes ingesting, successful
// or not, so readers can drop cached series for its KeywordSet.
type RunCompletedEvent struct {
	RunID        int64     `json:"run_id"`
	RunKey       string    `json:"run_key"`
	KeywordSetID int64     `json:"keyword_set_id"`
	Keywords     []string  `json:"keywords"`
	FinalRank    int       `json:"final_rank"`
	Reused       bool      `json:"reused"`
	Partial      bool      `json:"partial"`
	RanAt        time.Time `json:"ran_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
