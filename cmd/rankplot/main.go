package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/chart"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/series"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dbPath := flag.String("db", "", "sqlite database file (overrides config)")
	outDir := flag.String("out", "", "chart output directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}
	if *outDir != "" {
		cfg.Chart.OutputDir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	if err := st.CreateSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	result, err := series.NewAssembler(st, nil).Build(ctx, flag.Args())
	if err != nil {
		slog.Error("building series failed", "error", err)
		os.Exit(1)
	}
	if len(result) == 0 {
		slog.Warn("no ranking history found", "keywords", flag.Args())
		return
	}

	paths, err := chart.WriteAll(result, cfg.Chart.OutputDir, time.Now())
	for _, p := range paths {
		fmt.Println(p)
	}
	if err != nil {
		slog.Error("writing charts failed", "error", err)
		os.Exit(1)
	}
	slog.Info("charts written", "count", len(paths), "dir", cfg.Chart.OutputDir)
}
