package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pattern-analyzer/internal/application"
)

func TestGenerator_NextRanges(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 123, time.FixedZone("WIB", 7*3600))
	g := NewGenerator(Options{Seed: 7, AnomalyRate: 0.1, Clock: application.FixedClock(now)})

	anomalies := 0
	for i := 0; i < 5000; i++ {
		ev := g.Next()
		require.GreaterOrEqual(t, ev.Port, 1000)
		require.LessOrEqual(t, ev.Port, 65000)
		require.GreaterOrEqual(t, ev.Bytes, 1000)
		require.LessOrEqual(t, ev.Bytes, 10000)
		require.GreaterOrEqual(t, ev.Packets, 1)
		require.LessOrEqual(t, ev.Packets, 500)
		require.Equal(t, "2024-03-15T03:00:00.000000123Z", ev.Timestamp)

		switch ev.Anomaly {
		case 1:
			anomalies++
			require.Equal(t, AnomalyReason, ev.AnomalyReason)
		case 0:
			require.Empty(t, ev.AnomalyReason)
		default:
			t.Fatalf("unexpected anomaly label %d", ev.Anomaly)
		}
	}
	// 10% of 5000 with generous slack
	assert.InDelta(t, 500, anomalies, 150)
}

func TestGenerator_RateBounds(t *testing.T) {
	never := NewGenerator(Options{Seed: 1, AnomalyRate: 0})
	always := NewGenerator(Options{Seed: 1, AnomalyRate: 1})
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0, never.Next().Anomaly)
		assert.Equal(t, 1, always.Next().Anomaly)
	}
}

func TestGenerator_RunStopsOnEmitError(t *testing.T) {
	g := NewGenerator(Options{Seed: 1, Interval: time.Millisecond})
	boom := errors.New("peer gone")

	n := 0
	err := g.Run(context.Background(), func(Event) error {
		n++
		if n == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)
}

func TestGenerator_RunStopsOnCancel(t *testing.T) {
	g := NewGenerator(Options{Seed: 1, Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	n := 0
	err := g.Run(ctx, func(Event) error {
		n++
		cancel()
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, n, "first event goes out immediately")
}
