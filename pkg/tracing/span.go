// Package tracing records a run's timing as a tree of spans carried through
// contexts. The finished tree is written to slog, one line per span.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span is one timed step. A root span owns the trace ID; children inherit it.
type Span struct {
	Name     string
	TraceID  string
	Started  time.Time
	Duration time.Duration
	Children []*Span

	mu    sync.Mutex
	attrs []slog.Attr
}

// StartSpan opens a root span under a fresh trace ID.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, TraceID: uuid.NewString(), Started: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span below the one in ctx. With no parent the span
// has no trace ID and is never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Started: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.adopt(s)
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

func (s *Span) adopt(child *Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Children = append(s.Children, child)
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.Started)
}

// SetAttr records key=value on the span; a repeated key keeps the last value.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = slog.AnyValue(value)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, value))
}

// Log writes the tree depth-first to l at debug level.
func (s *Span) Log(l *slog.Logger) {
	s.walk(0, func(sp *Span, depth int, attrs []slog.Attr) {
		l.LogAttrs(context.Background(), slog.LevelDebug, "span", attrs...)
	})
}

func (s *Span) walk(depth int, visit func(*Span, int, []slog.Attr)) {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, 4+len(s.attrs))
	attrs = append(attrs,
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
		slog.Int64("duration_ms", s.Duration.Milliseconds()),
		slog.Int("depth", depth),
	)
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	visit(s, depth, attrs)
	for _, c := range children {
		c.walk(depth+1, visit)
	}
}
