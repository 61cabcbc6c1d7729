package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// Metrics stores request and analysis counters. It also observes the job
// lifecycle so it can be handed to the orchestrator as a jobs.Observer.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	JobsTotal          uint64
	JobsRunning        uint64
	JobsCompleted      uint64
	JobsFailed         uint64
	StartTime          time.Time
}

var _ jobs.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) JobStarted(string) {
	atomic.AddUint64(&m.JobsTotal, 1)
	atomic.AddUint64(&m.JobsRunning, 1)
}

func (m *Metrics) JobFinished(_ string, status jobs.Status) {
	atomic.AddUint64(&m.JobsRunning, ^uint64(0))
	switch status {
	case jobs.StatusCompleted:
		atomic.AddUint64(&m.JobsCompleted, 1)
	case jobs.StatusFailed:
		atomic.AddUint64(&m.JobsFailed, 1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&m.JobsTotal),
		"analyses_running":     atomic.LoadUint64(&m.JobsRunning),
		"analyses_completed":   atomic.LoadUint64(&m.JobsCompleted),
		"analyses_failed":      atomic.LoadUint64(&m.JobsFailed),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.Snapshot())
}
