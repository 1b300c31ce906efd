package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// HealthChecker is a dependency the analyzer needs to serve uploads:
// the history database or the upload store.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// PingChecker pings the history database.
type PingChecker struct {
	DB      *sql.DB
	Timeout time.Duration // 0 berarti 2 detik
}

func (p *PingChecker) Check(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.DB.PingContext(ctx)
}

type dependencyReport struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type healthReport struct {
	Status       string                      `json:"status"`
	CheckedAt    time.Time                   `json:"checked_at"`
	Dependencies map[string]dependencyReport `json:"dependencies"`
}

func sortedNames(checkers map[string]HealthChecker) []string {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runChecks(ctx context.Context, names []string, checkers map[string]HealthChecker) healthReport {
	rep := healthReport{
		Status:       "up",
		CheckedAt:    time.Now().UTC(),
		Dependencies: make(map[string]dependencyReport, len(names)),
	}
	for _, name := range names {
		start := time.Now()
		err := checkers[name].Check(ctx)
		d := dependencyReport{Status: "up", LatencyMS: time.Since(start).Milliseconds()}
		if err != nil {
			d.Status, d.Error = "down", err.Error()
			rep.Status = "down"
		}
		rep.Dependencies[name] = d
	}
	return rep
}

func writeReport(w http.ResponseWriter, rep healthReport) {
	code := http.StatusOK
	if rep.Status != "up" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}

// HealthHandler reports every dependency with its latency. One failing
// dependency turns the whole report down with a 503.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	names := sortedNames(checkers)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		writeReport(w, runChecks(ctx, names, checkers))
	}
}

// ReadinessHandler only checks the named dependencies an upload cannot
// proceed without. Unknown names are ignored.
func ReadinessHandler(checkers map[string]HealthChecker, required ...string) http.HandlerFunc {
	subset := make(map[string]HealthChecker, len(required))
	for _, name := range required {
		if c, ok := checkers[name]; ok {
			subset[name] = c
		}
	}
	names := sortedNames(subset)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		writeReport(w, runChecks(ctx, names, subset))
	}
}

// LivenessHandler answers as long as the process can route requests.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
