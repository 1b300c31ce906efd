package ai

import (
	"context"
	"errors"
	"sort"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/bryanwahyu/pattern-analyzer/internal/domain/ai"
	"github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
	"github.com/bryanwahyu/pattern-analyzer/internal/metrics"
)

const breakerName = "explainer"

// Service produces the optional insight of an analysis. It never fails the
// caller: provider errors fall back to a locally built text.
type Service struct {
	client   ai.Explainer
	fallback func(ai.Digest) string
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker[string]
}

// Options tunes the breaker and call timeout. Zero values get defaults.
type Options struct {
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func NewService(client ai.Explainer, fallback func(ai.Digest) string, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 3
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.FailureThreshold
		},
		// quota errors will not clear by retrying sooner, but they are not
		// an outage either
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ai.ErrQuotaExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Service{client: client, fallback: fallback, timeout: opts.Timeout, cb: cb}
}

// Insight explains res. The result is empty when the service is nil.
func (s *Service) Insight(ctx context.Context, fileName string, features []string, res *analysis.Result) string {
	if s == nil {
		return ""
	}
	d := Digest(fileName, features, res)

	text, err := s.cb.Execute(func() (string, error) {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.client.Explain(cctx, d)
	})
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		if text != "" {
			return text
		}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		logging.Ctx(ctx).Debug().Err(err).Msg("explainer skipped")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("explainer failed, using fallback insight")
	}

	if s.fallback == nil {
		return ""
	}
	return s.fallback(d)
}

// Digest condenses a result for the explainer: counts, feature names and the
// distinct anomaly reasons ordered by frequency.
func Digest(fileName string, features []string, res *analysis.Result) ai.Digest {
	counts := map[string]int{}
	reasonIdx := -1
	for i, c := range res.Anomalies.Columns {
		if c == analysis.ColumnAnomalyReason {
			reasonIdx = i
		}
	}
	if reasonIdx >= 0 {
		for _, row := range res.Anomalies.Rows {
			if r, ok := row[reasonIdx].(string); ok && r != "" {
				counts[r]++
			}
		}
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	return ai.Digest{
		FileName:  fileName,
		Total:     res.Summary.Total,
		Anomalies: res.Summary.Anomalies,
		Features:  features,
		Reasons:   reasons,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
