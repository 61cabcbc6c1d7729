package status

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// MemoryStore keeps job snapshots in process memory.
// Entries are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*jobs.Job
	maxJobs int           // 0 = unlimited
	ttl     time.Duration // 0 = keep terminal jobs until evicted
	logger  arbor.ILogger
}

var _ jobs.StatusStore = (*MemoryStore)(nil)

func NewMemoryStore(maxJobs int, ttl time.Duration, logger arbor.ILogger) *MemoryStore {
	if maxJobs < 0 {
		maxJobs = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MemoryStore{
		jobs:    make(map[string]*jobs.Job),
		maxJobs: maxJobs,
		ttl:     ttl,
		logger:  logger,
	}
}

func (s *MemoryStore) Create(id string, job jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return jobs.ErrJobExists
	}
	j := job.Clone()
	j.ID = id
	s.jobs[id] = &j

	s.evictIfNeeded()
	return nil
}

func (s *MemoryStore) Update(id string, patch jobs.JobPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		s.logger.Warn().Str("job_id", id).Msg("status update for unknown job ignored")
		return jobs.ErrJobNotFound
	}
	patch.Apply(j)
	return nil
}

func (s *MemoryStore) Get(id string) (jobs.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return jobs.Job{}, false
	}
	return j.Clone(), true
}

// Len returns the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep drops terminal jobs that completed more than ttl before now.
// It returns how many entries were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if !j.Status.IsTerminal() || j.CompletedAt == nil {
			continue
		}
		if now.Sub(*j.CompletedAt) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Int("remaining", len(s.jobs)).Msg("status store swept")
	}
	return removed
}

// evictIfNeeded removes the oldest terminal jobs while the store is over
// capacity. Non-terminal jobs are never evicted, so the store may stay
// above maxJobs while many jobs are in flight.
// Must be called with lock held.
func (s *MemoryStore) evictIfNeeded() {
	if s.maxJobs <= 0 || len(s.jobs) <= s.maxJobs {
		return
	}

	done := make([]*jobs.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.Status.IsTerminal() {
			done = append(done, j)
		}
	}
	sort.Slice(done, func(i, k int) bool {
		return done[i].StartedAt.Before(done[k].StartedAt)
	})

	excess := len(s.jobs) - s.maxJobs
	for i := 0; i < excess && i < len(done); i++ {
		s.logger.Debug().Str("job_id", done[i].ID).Msg("evicting old job")
		delete(s.jobs, done[i].ID)
	}
}
