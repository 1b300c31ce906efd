package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(capacity int, ttl time.Duration) (*ResultCache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	c := NewResultCache(capacity, ttl)
	c.now = clk.Now
	return c, clk
}

func rows(v float64) analysis.ResultSet {
	return analysis.ResultSet{Columns: []string{"v"}, Rows: [][]any{{v}}}
}

func TestResultCache_PutGet(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)

	c.Put("a", rows(1))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, rows(1), got)

	_, ok = c.Get("never-issued")
	assert.False(t, ok)
}

func TestResultCache_EmptySetIsStillFound(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)

	c.Put("a", analysis.ResultSet{Columns: []string{"v"}})
	got, ok := c.Get("a")

	require.True(t, ok)
	assert.Equal(t, 0, got.Len())
}

func TestResultCache_Expiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Put("a", rows(1))
	clk.Advance(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	clk.Advance(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResultCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)

	c.Put("a", rows(1))
	c.Put("b", rows(2))
	_, _ = c.Get("a")
	c.Put("c", rows(3))

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestResultCache_PutOverwrites(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)

	c.Put("a", rows(1))
	c.Put("a", rows(2))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, rows(2), got)
	assert.Equal(t, 1, c.Len())
}

func TestResultCache_Purge(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Put("old1", rows(1))
	c.Put("old2", rows(2))
	clk.Advance(30 * time.Second)
	c.Put("fresh", rows(3))
	clk.Advance(31 * time.Second)

	assert.Equal(t, 2, c.Purge())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestResultCache_Concurrent(t *testing.T) {
	c := NewResultCache(1000, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			c.Put(id, rows(float64(i)))
			got, ok := c.Get(id)
			assert.True(t, ok)
			assert.Equal(t, rows(float64(i)), got)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}

func TestNewJanitor_InvalidSchedule(t *testing.T) {
	_, err := NewJanitor(NewResultCache(1, time.Minute), "not a schedule")
	assert.Error(t, err)
}

func TestNewJanitor(t *testing.T) {
	j, err := NewJanitor(NewResultCache(1, time.Minute), "@every 1m")
	require.NoError(t, err)
	j.Start()
	j.Stop(context.Background())
}
