package cache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/robfig/cron/v3"

	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
)

// Janitor purges expired results on a cron schedule such as "@every 1m".
type Janitor struct {
	runner *cron.Cron
}

func NewJanitor(c *ResultCache, schedule string) (*Janitor, error) {
	l := cronLogger{logging.WithComponent("cache-janitor")}
	runner := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(l),
		cron.Recover(l),
	))
	if _, err := runner.AddFunc(schedule, func() {
		if n := c.Purge(); n > 0 {
			l.log.Debug().Int("purged", n).Msg("expired results purged")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid cache sweep schedule %q: %w", schedule, err)
	}
	return &Janitor{runner: runner}, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() { j.runner.Start() }

// Stop stops the schedule and waits for a running purge until ctx ends.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.runner.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
