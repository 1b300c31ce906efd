// Package stream produces the simulated network events served on /ws/stream.
package stream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/bryanwahyu/pattern-analyzer/internal/application"
)

const AnomalyReason = "Simulated high traffic"

// Event is one simulated traffic sample. Field names match the upload
// columns the detector is usually trained on.
type Event struct {
	Timestamp     string `json:"timestamp"`
	Port          int    `json:"Port"`
	Bytes         int    `json:"Bytes"`
	Packets       int    `json:"Packets"`
	Anomaly       int    `json:"anomaly"`
	AnomalyReason string `json:"anomaly_reason"`
}

type Options struct {
	Interval    time.Duration
	AnomalyRate float64
	Seed        int64 // 0 = time based
	Clock       application.Clock
}

type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	interval time.Duration
	rate     float64
	clock    application.Clock
}

func NewGenerator(opts Options) *Generator {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.AnomalyRate < 0 || opts.AnomalyRate > 1 {
		opts.AnomalyRate = 0.1
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Clock == nil {
		opts.Clock = application.SystemClock{}
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(opts.Seed)),
		interval: opts.Interval,
		rate:     opts.AnomalyRate,
		clock:    opts.Clock,
	}
}

// Next draws one event. Safe for concurrent use.
func (g *Generator) Next() Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev := Event{
		Timestamp: g.clock.Now().UTC().Format(time.RFC3339Nano),
		Port:      1000 + g.rng.Intn(64001),
		Bytes:     1000 + g.rng.Intn(9001),
		Packets:   1 + g.rng.Intn(500),
	}
	if g.rng.Float64() < g.rate {
		ev.Anomaly = 1
		ev.AnomalyReason = AnomalyReason
	}
	return ev
}

// Run emits one event right away and then one per interval until ctx is
// done (returns nil) or emit fails (returns its error).
func (g *Generator) Run(ctx context.Context, emit func(Event) error) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		if err := emit(g.Next()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
