package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/series"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/server"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/redis"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dbPath := flag.String("db", "", "sqlite database file (overrides config)")
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
	slog.Info("starting rank server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	if err := st.CreateSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	assembler := series.NewAssembler(st, m)

	checker := health.NewChecker()
	checker.Register("database", health.PingCheck(st, health.StatusDown))

	var cache *series.Cache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, series caching disabled", "error", err)
			checker.Register("redis", health.Fixed(health.StatusDegraded, "unavailable at startup, caching disabled"))
		} else {
			defer redisClient.Close()
			cache = series.NewCache(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient, health.StatusDegraded))
			slog.Info("series cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	h := server.New(assembler, st, cache)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, checker, m, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("rank server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Kafka.Enabled && cache != nil {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RunCompleted, ranking.RunCompletedType, events.NewInvalidator(cache).Handle)
		g.Go(func() error {
			return consumer.Start(gctx)
		})
		slog.Info("cache invalidation consumer started", "topic", cfg.Kafka.Topics.RunCompleted)
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, m, cfg.Metrics.Port)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("rank server error", "error", err)
		os.Exit(1)
	}
	slog.Info("rank server stopped")
}
