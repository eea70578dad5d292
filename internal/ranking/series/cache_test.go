package series

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/redis"
)

// memKV is an in-process KV that reports misses the way redis does.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() Result {
	three := 3
	return Result{"[1]k": {
		KeywordSetID: 1,
		Keywords:     "k",
		Dates:        []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Ranks:        map[string][]*int{"[7]A": {&three}},
		Order:        []string{"[7]A"},
	}}
}

func TestGetOrBuildCachesResult(t *testing.T) {
	c := NewCache(newMemKV(), time.Minute, nil)
	ctx := context.Background()
	builds := 0
	build := func() (Result, error) {
		builds++
		return sampleResult(), nil
	}

	_, cached, err := c.GetOrBuild(ctx, []string{"k"}, build)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("first call should miss")
	}
	got, cached, err := c.GetOrBuild(ctx, []string{"k"}, build)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Error("second call should hit")
	}
	if builds != 1 {
		t.Errorf("expected 1 build, got %d", builds)
	}
	if r := got["[1]k"].Ranks["[7]A"][0]; r == nil || *r != 3 {
		t.Errorf("unexpected cached rank %v", r)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
}

func TestInvalidateKeywordSetDropsAllKey(t *testing.T) {
	kv := newMemKV()
	c := NewCache(kv, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, []string{"k"}, sampleResult())
	c.Set(ctx, nil, sampleResult())
	c.Set(ctx, []string{"other"}, sampleResult())

	if err := c.InvalidateKeywordSet(ctx, []string{"k"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, []string{"k"}); ok {
		t.Error("keyword set entry should be gone")
	}
	if _, ok := c.Get(ctx, nil); ok {
		t.Error("all-sets entry should be gone")
	}
	if _, ok := c.Get(ctx, []string{"other"}); !ok {
		t.Error("unrelated entry should survive")
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if len(kv.data) != 0 {
		t.Errorf("expected empty cache, got %d keys", len(kv.data))
	}
}

func TestGetOrBuildSurvivesBackendFailure(t *testing.T) {
	kv := newMemKV()
	kv.err = errors.New("connection refused")
	c := NewCache(kv, time.Minute, nil)

	got, cached, err := c.GetOrBuild(context.Background(), nil, func() (Result, error) {
		return sampleResult(), nil
	})
	if err != nil {
		t.Fatalf("expected build to succeed despite cache failure: %v", err)
	}
	if cached || len(got) != 1 {
		t.Errorf("unexpected result cached=%v len=%d", cached, len(got))
	}
}

func TestBuildKeyDistinguishesSets(t *testing.T) {
	if BuildKey([]string{"a", "b"}) == BuildKey([]string{"b", "a"}) {
		t.Error("keyword order must change the key")
	}
	if !strings.HasPrefix(BuildKey(nil), keyPrefix) {
		t.Error("missing prefix")
	}
}
