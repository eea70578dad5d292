package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
)

// Archive keeps a copy of every fetched HTML page of one run under
// <dir>/YYYY-MM-DD/HHMMSS/<keywords>_<rankSoFar>.html. Write failures are
// logged and never fail the run.
type Archive struct {
	dir      string
	keywords string
}

func NewArchive(baseDir string, keywords []string, ranAt time.Time) *Archive {
	return &Archive{
		dir:      filepath.Join(baseDir, ranAt.Format("2006-01-02"), ranAt.Format("150405")),
		keywords: ranking.JoinForFilename(keywords),
	}
}

// Observe matches walker.PageObserver.
func (a *Archive) Observe(ctx context.Context, page *ranking.Page, rankSoFar int) {
	if len(page.Body) == 0 {
		return
	}
	log := logger.FromContext(ctx).With("component", "archive")
	path := a.PathFor(rankSoFar)
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		log.Warn("creating archive directory failed", "dir", a.dir, "error", err)
		return
	}
	if err := os.WriteFile(path, page.Body, 0o644); err != nil {
		log.Warn("archiving page failed", "path", path, "error", err)
		return
	}
	log.Debug("page archived", "path", path)
}

// PathFor returns the archive path of the page fetched at rankSoFar.
func (a *Archive) PathFor(rankSoFar int) string {
	return filepath.Join(a.dir, a.keywords+"_"+strconv.Itoa(rankSoFar)+".html")
}
