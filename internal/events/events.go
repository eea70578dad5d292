// Package events carries RunCompleted notifications from rankcheck to any
// rankserver over Kafka, so cached series are dropped as soon as a run
// lands.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/kafka"
)

// EventWriter is satisfied by *kafka.Producer.
type EventWriter interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher sends RunCompletedEvents keyed by keyword set, so every event of
// one set lands on the same partition in order.
type Publisher struct {
	writer EventWriter
	logger *slog.Logger
}

func NewPublisher(w EventWriter) *Publisher {
	return &Publisher{
		writer: w,
		logger: slog.Default().With("component", "event-publisher"),
	}
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, ev ranking.RunCompletedEvent) error {
	err := p.writer.Publish(ctx, kafka.Event{
		Type:  ranking.RunCompletedType,
		Key:   strconv.FormatInt(ev.KeywordSetID, 10),
		Value: ev,
	})
	if err != nil {
		return fmt.Errorf("publishing run completed event for run %d: %w", ev.RunID, err)
	}
	p.logger.Info("run completed event published", "run_id", ev.RunID, "keyword_set_id", ev.KeywordSetID)
	return nil
}

// CacheInvalidator is satisfied by *series.Cache.
type CacheInvalidator interface {
	InvalidateKeywordSet(ctx context.Context, keywords []string) error
}

// Invalidator consumes RunCompletedEvents and drops the cached series of
// the affected keyword set. Reused runs changed nothing and are ignored.
type Invalidator struct {
	cache  CacheInvalidator
	logger *slog.Logger
}

func NewInvalidator(cache CacheInvalidator) *Invalidator {
	return &Invalidator{
		cache:  cache,
		logger: slog.Default().With("component", "cache-invalidator"),
	}
}

// Handle matches kafka.Handler.
func (i *Invalidator) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := kafka.DecodeJSON[ranking.RunCompletedEvent](msg.Value)
	if err != nil {
		// A malformed event will never decode; drop it instead of retrying.
		i.logger.Warn("dropping undecodable event", "error", err)
		return nil
	}
	if ev.Reused {
		return nil
	}
	if err := i.cache.InvalidateKeywordSet(ctx, ev.Keywords); err != nil {
		return err
	}
	i.logger.Debug("series cache invalidated", "run_id", ev.RunID, "keyword_set_id", ev.KeywordSetID)
	return nil
}
