package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/application"
	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

const (
	progressInit     = "Initializing..."
	progressExtract  = "Extracting text from PDF..."
	progressAnalyze  = "Analyzing policy..."
	progressGenerate = "Generating PDF report..."
	progressDone     = "Analysis complete"
	progressFailed   = "Analysis failed"
)

// Service runs analysis jobs through extract, analyze, render, persist and
// notify. Status, Extractor and Analyzer are required; the rest are optional.
// Service is safe for concurrent use as long as its collaborators are.
type Service struct {
	Status    jobs.StatusStore
	Extractor jobs.Extractor
	Analyzer  jobs.Analyzer
	Renderer  jobs.Renderer
	Results   jobs.ResultStore
	Notifier  jobs.Notifier
	Observer  jobs.Observer
	Clock     application.Clock
	Logger    arbor.ILogger
	NewID     func() string
}

// Submit validates req, records the started entry and runs the pipeline in
// the background. The returned id is immediately queryable. There is no
// cancel handle: a process restart mid-run leaves the job non-terminal.
func (s *Service) Submit(req jobs.JobRequest) (string, error) {
	req = req.WithDefaults()
	if r := resolveSource(req); r.err != nil {
		return "", r.err
	}
	id, started, err := s.begin(req)
	if err != nil {
		return "", err
	}
	go s.process(context.Background(), id, req, started)
	return id, nil
}

// Run is the synchronous form of Submit. It returns the terminal snapshot.
// Unlike Submit, an invalid request still produces a failed job.
func (s *Service) Run(ctx context.Context, req jobs.JobRequest) (jobs.Job, error) {
	req = req.WithDefaults()
	id, started, err := s.begin(req)
	if err != nil {
		return jobs.Job{}, err
	}
	s.process(ctx, id, req, started)
	job, ok := s.Status.Get(id)
	if !ok {
		return jobs.Job{}, fmt.Errorf("job %s: %w", id, jobs.ErrJobNotFound)
	}
	return job, nil
}

// Get returns the current snapshot for id.
func (s *Service) Get(id string) (jobs.Job, bool) {
	return s.Status.Get(id)
}

func (s *Service) begin(req jobs.JobRequest) (string, time.Time, error) {
	newID := s.NewID
	if newID == nil {
		newID = jobs.NewID
	}
	id := newID()
	started := s.now()
	err := s.Status.Create(id, jobs.Job{
		ID:        id,
		Status:    jobs.StatusStarted,
		Progress:  progressInit,
		StartedAt: started,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create job %s: %w", id, err)
	}
	if s.Observer != nil {
		s.Observer.JobStarted(id)
	}
	s.logger().Info().
		Str("job_id", id).
		Str("client", req.Subject.Name).
		Str("policy_id", req.PolicyID).
		Msg("analysis started")
	return id, started, nil
}

// run tracks one job's position in the state machine.
type run struct {
	svc     *Service
	id      string
	req     jobs.JobRequest
	started time.Time
	status  jobs.Status
}

func (s *Service) process(ctx context.Context, id string, req jobs.JobRequest, started time.Time) {
	r := &run{svc: s, id: id, req: req, started: started, status: jobs.StatusStarted}
	defer func() {
		if p := recover(); p != nil && !r.status.IsTerminal() {
			r.fail(ctx, jobs.NewStageError(panicKind(r.status), string(r.status), fmt.Errorf("panic: %v", p)))
		}
	}()

	src := resolveSource(req)
	if src.err != nil {
		r.fail(ctx, src.err)
		return
	}

	r.advance(jobs.StatusExtracting, progressExtract)
	ext := s.extract(ctx, src.val)
	if ext.err != nil {
		r.fail(ctx, ext.err)
		return
	}
	s.logger().Info().Str("job_id", id).Int("chars", len(ext.val.Text)).Int("pages", ext.val.PageCount).Msg("text extracted")

	r.advance(jobs.StatusAnalyzing, progressAnalyze)
	outcome := s.analyze(ctx, id, ext.val.Text, req.Subject)
	if outcome.err != nil {
		r.fail(ctx, outcome.err)
		return
	}

	r.advance(jobs.StatusGenerating, progressGenerate)
	var reportPath *string
	if rep := s.render(ctx, id, outcome.val.Data); rep.err != nil {
		s.logger().Warn().Str("job_id", id).Err(rep.err).Msg("report generation failed, continuing without report")
	} else {
		reportPath = &rep.val
	}

	r.complete(ctx, outcome.val, reportPath)
}

func (r *run) advance(to jobs.Status, progress string) {
	if err := jobs.ValidateTransition(r.status, to); err != nil {
		// Only reachable through a programming error in process.
		panic(err)
	}
	r.status = to
	r.write(jobs.JobPatch{Status: &to, Progress: &progress})
	r.svc.logger().Info().Str("job_id", r.id).Str("status", string(to)).Msg(progress)
}

// write applies a patch; a vanished entry is logged and otherwise ignored.
func (r *run) write(patch jobs.JobPatch) {
	if err := r.svc.Status.Update(r.id, patch); err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			r.svc.logger().Warn().Str("job_id", r.id).Msg("status entry missing, update dropped")
			return
		}
		r.svc.logger().Error().Str("job_id", r.id).Err(err).Msg("status update failed")
	}
}

func (r *run) complete(ctx context.Context, outcome jobs.AnalysisOutcome, reportPath *string) {
	s := r.svc
	score, rec := jobs.Summary(outcome.Data)
	now := s.now()
	payload := &jobs.CompletionPayload{
		AnalysisID:            r.id,
		PolicyID:              r.req.PolicyID,
		ClientID:              r.req.ClientID,
		ClientName:            r.req.Subject.Name,
		Status:                jobs.StatusCompleted,
		OverallScore:          score,
		Recommendation:        rec,
		ReportPath:            reportPath,
		AnalysisData:          outcome.Data,
		CompletedAt:           now,
		ProcessingTimeSeconds: elapsedSeconds(r.started, now),
	}

	if r.req.PolicyID != "" {
		if err := s.persist(ctx, &jobs.Record{
			PolicyID:   r.req.PolicyID,
			AnalysisID: r.id,
			Status:     jobs.StatusCompleted,
			Result:     payload,
			AnalyzedAt: now,
		}); err != nil {
			s.logger().Warn().Str("job_id", r.id).Err(err).Msg("result not persisted")
		}
	}

	to := jobs.StatusCompleted
	if err := jobs.ValidateTransition(r.status, to); err != nil {
		panic(err)
	}
	progress := progressDone
	r.status = to
	r.write(jobs.JobPatch{Status: &to, Progress: &progress, CompletedAt: &now, Result: payload})
	r.finished()

	ev := s.logger().Info().
		Str("job_id", r.id).
		Float64("processing_seconds", payload.ProcessingTimeSeconds).
		Bool("parsed", outcome.Parsed)
	if score != nil {
		ev = ev.Float64("score", *score)
	}
	if rec != nil {
		ev = ev.Str("recommendation", string(*rec))
	}
	ev.Msg("analysis complete")

	if r.req.CallbackURL != "" {
		if err := s.notify(ctx, r.req.CallbackURL, payload); err != nil {
			s.logger().Error().Str("job_id", r.id).Str("url", r.req.CallbackURL).Err(err).Msg("callback failed")
		}
	}
}

func (r *run) fail(ctx context.Context, cause *jobs.StageError) {
	s := r.svc
	to := jobs.StatusFailed
	if err := jobs.ValidateTransition(r.status, to); err != nil {
		s.logger().Error().Str("job_id", r.id).Err(err).Msg("cannot fail terminal job")
		return
	}

	now := s.now()
	msg := cause.Error()
	progress := progressFailed
	r.status = to
	r.write(jobs.JobPatch{Status: &to, Progress: &progress, Error: &msg, CompletedAt: &now})
	r.finished()
	s.logger().Error().Str("job_id", r.id).Str("kind", string(cause.Kind)).Err(cause).Msg("analysis failed")

	payload := &jobs.FailurePayload{
		AnalysisID:   r.id,
		PolicyID:     r.req.PolicyID,
		ClientID:     r.req.ClientID,
		Status:       jobs.StatusFailed,
		ErrorMessage: msg,
		CompletedAt:  now,
	}

	if r.req.PolicyID != "" {
		if err := s.persist(ctx, &jobs.Record{
			PolicyID:   r.req.PolicyID,
			AnalysisID: r.id,
			Status:     jobs.StatusFailed,
			Result:     payload,
			AnalyzedAt: now,
		}); err != nil {
			s.logger().Warn().Str("job_id", r.id).Err(err).Msg("failure record not persisted")
		}
	}

	if r.req.CallbackURL != "" {
		if err := s.notify(ctx, r.req.CallbackURL, payload); err != nil {
			s.logger().Error().Str("job_id", r.id).Str("url", r.req.CallbackURL).Err(err).Msg("failure callback failed")
		}
	}
}

func (r *run) finished() {
	if r.svc.Observer != nil {
		r.svc.Observer.JobFinished(r.id, r.status)
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

var noopLogger = arbor.NewNoOpLogger()

func (s *Service) logger() arbor.ILogger {
	if s.Logger == nil {
		return noopLogger
	}
	return s.Logger
}

// elapsedSeconds rounds to two decimals and never goes negative.
func elapsedSeconds(from, to time.Time) float64 {
	secs := to.Sub(from).Seconds()
	if secs < 0 {
		return 0
	}
	return math.Round(secs*100) / 100
}

func panicKind(at jobs.Status) jobs.Kind {
	switch at {
	case jobs.StatusStarted:
		return jobs.KindInvalidRequest
	case jobs.StatusExtracting:
		return jobs.KindExtractionFailed
	}
	return jobs.KindAnalysisFailed
}
