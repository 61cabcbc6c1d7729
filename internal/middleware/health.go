package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

const probeTimeout = 5 * time.Second

// HealthChecker is one dependency probed by /health and /readyz.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the Result Store connection pool.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Info      map[string]any         `json:"info,omitempty"`
}

// runChecks probes every checker in name order and reports whether all passed.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) (map[string]CheckStatus, bool) {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]CheckStatus, len(names))
	ok := true
	for _, name := range names {
		if err := checkers[name].Check(ctx); err != nil {
			ok = false
			results[name] = CheckStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		results[name] = CheckStatus{Status: "healthy"}
	}
	return results, ok
}

func writeProbe(w http.ResponseWriter, ok bool, body any) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(body)
}

// HealthHandler reports dependency checks plus informational flags. Flags
// returned by info (such as whether an analyzer key is set) never change
// the status code; only failing checkers do.
func HealthHandler(checkers map[string]HealthChecker, info func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		checks, ok := runChecks(ctx, checkers)
		health := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Checks:    checks,
		}
		if !ok {
			health.Status = "unhealthy"
		}
		if info != nil {
			health.Info = info()
		}
		writeProbe(w, ok, health)
	}
}

// ReadinessHandler answers 503 until every checker passes, so traffic is
// held back while the Result Store is unreachable.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		checks, ok := runChecks(ctx, checkers)
		status := "ready"
		if !ok {
			status = "not_ready"
		}
		writeProbe(w, ok, map[string]any{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
		})
	}
}

// LivenessHandler only proves the process serves requests.
func LivenessHandler(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, true, map[string]any{
			"status":         "alive",
			"uptime_seconds": time.Since(started).Seconds(),
		})
	}
}
