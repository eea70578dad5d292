package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/tracker"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/resilience"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run executes one rankcheck invocation and returns the process exit code:
// 0 on success, 2 for invalid arguments, 1 for any other failure.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("rankcheck", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	dbPath := fs.String("db", "", "sqlite database file (overrides config)")
	fs.StringVar(dbPath, "o", "", "shorthand for -db")
	myURL := fs.String("u", "", "substring identifying your own site's URLs")
	maxRank := fs.Int("m", 0, "maximum rank to record, must be positive (overrides config)")
	drop := fs.Bool("drop", false, "drop and recreate the ranking schema before ingesting")
	sourceKind := fs.String("source", "", "result source: html or api (overrides config)")
	runKey := fs.String("run-key", "", "idempotency key for this run; defaults to the run timestamp")
	replayPath := fs.String("replay", "", "re-ingest a JSON snapshot instead of fetching")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}
	if *myURL != "" {
		cfg.Ranking.MyURL = *myURL
	}
	if *sourceKind != "" {
		cfg.Ranking.Source = *sourceKind
	}
	// An explicit -m always reaches validation, so -m 0 is rejected rather
	// than replaced by the configured depth.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "m" {
			cfg.Ranking.MaxRank = *maxRank
		}
	})

	req := &ranking.TrackRequest{
		Keywords:      fs.Args(),
		MaxRank:       cfg.Ranking.MaxRank,
		MyURL:         cfg.Ranking.MyURL,
		Source:        cfg.Ranking.Source,
		Drop:          *drop,
		RunKey:        *runKey,
		ReplayPath:    *replayPath,
		SnapshotFirst: cfg.Ranking.SnapshotFirst || cfg.Ranking.Source == source.KindAPI,
	}
	if req.Empty() && !req.Drop {
		fmt.Fprintln(os.Stderr, "usage: rankcheck [flags] keyword [keyword...]")
		fs.PrintDefaults()
		return 2
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		return 1
	}
	defer db.Close()

	st := store.New(db)
	if err := st.CreateSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		return 1
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, m, cfg.Metrics.Port); err != nil {
				slog.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	tcfg := tracker.Config{
		Sources:        cfg.Source,
		PolitenessWait: cfg.Ranking.PolitenessWait,
		ArchiveHTML:    cfg.Ranking.ArchiveHTML,
		ArchiveDir:     cfg.Ranking.ArchiveDir,
		SnapshotDir:    cfg.Ranking.ArchiveDir,
		Metrics:        m,
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RunCompleted)
		defer producer.Close()
		tcfg.Publisher = events.NewPublisher(producer)
		slog.Info("run events enabled", "topic", cfg.Kafka.Topics.RunCompleted)
	}

	// Track validates the request before it resets the schema for -drop.
	res, err := tracker.New(st, tcfg).Track(ctx, req)
	if res != nil {
		if req.Empty() {
			slog.Info("schema reset, no keywords given")
		} else {
			printResult(stdout, res)
		}
	}
	if err != nil {
		slog.Error("ranking check failed", "error", err)
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return 2
		}
		return 1
	}
	return 0
}

// openDatabase retries postgres connections, which may still be starting;
// sqlite opens locally and either works or does not.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.Client, error) {
	if cfg.Driver != "postgres" {
		return database.New(cfg)
	}
	return resilience.Do(ctx, "postgres-connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
	}, func() (*database.Client, error) {
		return database.New(cfg)
	})
}

func printResult(w io.Writer, res *tracker.Result) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		slog.Warn("printing result failed", "error", err)
	}
}
