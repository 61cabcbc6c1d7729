package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/domain/ai"
	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
	"github.com/bryanwahyu/policy-analysis/internal/infra/callback"
	"github.com/bryanwahyu/policy-analysis/internal/infra/extract"
	"github.com/bryanwahyu/policy-analysis/internal/infra/status"
)

const structuredReply = "Here is the analysis:\n```json\n" + `{
  "client_company": "Acme Corp",
  "executive_summary": {
    "overview": "Adequate program.",
    "key_metrics": {"overall_maturity_score": 6.4},
    "recommendation": "bind with conditions"
  },
  "red_flags": []
}` + "\n```\nLet me know if you need more."

type fakeExtractor struct {
	text  string
	err   error
	calls int32
}

func (f *fakeExtractor) ExtractFile(context.Context, string) (jobs.Extraction, error) {
	atomic.AddInt32(&f.calls, 1)
	return jobs.Extraction{Text: f.text, PageCount: 1}, f.err
}

func (f *fakeExtractor) ExtractURL(context.Context, string) (jobs.Extraction, error) {
	atomic.AddInt32(&f.calls, 1)
	return jobs.Extraction{Text: f.text, PageCount: 1}, f.err
}

type fakeAnalyzer struct {
	text  string
	err   error
	gate  chan struct{}
	panic bool
	calls int32
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, in jobs.AnalysisInput) (ai.Completion, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	if f.panic {
		panic("provider exploded")
	}
	if f.err != nil {
		return ai.Completion{}, f.err
	}
	return ai.Completion{Text: f.text, Model: "test-model", InputTokens: 100, OutputTokens: 20}, nil
}

type fakeRenderer struct {
	err   error
	panic bool
	calls int32
}

func (f *fakeRenderer) Render(_ context.Context, id string, _ map[string]any) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.panic {
		panic("nil font table")
	}
	if f.err != nil {
		return "", f.err
	}
	return "reports/" + id + "_report.pdf", nil
}

type fakeResults struct {
	mu   sync.Mutex
	recs []*jobs.Record
	err  error
}

func (f *fakeResults) Save(_ context.Context, rec *jobs.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return f.err
}

type delivery struct {
	url     string
	payload any
	seen    jobs.Job
}

type fakeNotifier struct {
	mu    sync.Mutex
	store jobs.StatusStore
	sent  []delivery
	err   error
}

func (f *fakeNotifier) Deliver(_ context.Context, url string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := delivery{url: url, payload: payload}
	if f.store != nil {
		var id string
		switch p := payload.(type) {
		case *jobs.CompletionPayload:
			id = p.AnalysisID
		case *jobs.FailurePayload:
			id = p.AnalysisID
		}
		d.seen, _ = f.store.Get(id)
	}
	f.sent = append(f.sent, d)
	return f.err
}

type fakeObserver struct {
	started  int32
	finished sync.Map
}

func (o *fakeObserver) JobStarted(string)                    { atomic.AddInt32(&o.started, 1) }
func (o *fakeObserver) JobFinished(id string, s jobs.Status) { o.finished.Store(id, s) }

// countingStore counts patches that set CompletedAt.
type countingStore struct {
	*status.MemoryStore
	completions int32
}

func (c *countingStore) Update(id string, p jobs.JobPatch) error {
	if p.CompletedAt != nil {
		atomic.AddInt32(&c.completions, 1)
	}
	return c.MemoryStore.Update(id, p)
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type fixture struct {
	svc       *Service
	store     *countingStore
	extractor *fakeExtractor
	analyzer  *fakeAnalyzer
	renderer  *fakeRenderer
	results   *fakeResults
	notifier  *fakeNotifier
	observer  *fakeObserver
}

func newFixture() *fixture {
	f := &fixture{
		store:     &countingStore{MemoryStore: status.NewMemoryStore(0, 0, arbor.NewNoOpLogger())},
		extractor: &fakeExtractor{text: "POLICY WORDING"},
		analyzer:  &fakeAnalyzer{text: structuredReply},
		renderer:  &fakeRenderer{},
		results:   &fakeResults{},
		observer:  &fakeObserver{},
	}
	f.notifier = &fakeNotifier{store: f.store}
	f.svc = &Service{
		Status:    f.store,
		Extractor: f.extractor,
		Analyzer:  f.analyzer,
		Renderer:  f.renderer,
		Results:   f.results,
		Notifier:  f.notifier,
		Observer:  f.observer,
		Clock:     &stepClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), step: 250 * time.Millisecond},
		Logger:    arbor.NewNoOpLogger(),
	}
	return f
}

func acme() jobs.JobRequest {
	return jobs.JobRequest{
		LocalPath: "/tmp/policy.pdf",
		Subject:   jobs.Subject{Name: "Acme Corp", Industry: "Manufacturing"},
	}
}

func TestRun_MissingSourceFailsBeforeCollaborators(t *testing.T) {
	for name, req := range map[string]jobs.JobRequest{
		"neither": {CallbackURL: "http://cb.local/hook"},
		"both":    {LocalPath: "/tmp/a.pdf", FileURL: "https://x/a.pdf", CallbackURL: "http://cb.local/hook"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			job, err := f.svc.Run(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, jobs.StatusFailed, job.Status)
			assert.Contains(t, job.Error, "invalid request")
			assert.NotNil(t, job.CompletedAt)
			assert.Nil(t, job.Result)
			assert.Zero(t, atomic.LoadInt32(&f.extractor.calls))
			assert.Zero(t, atomic.LoadInt32(&f.analyzer.calls))
			assert.Zero(t, atomic.LoadInt32(&f.renderer.calls))
			require.Len(t, f.notifier.sent, 1)
			assert.IsType(t, &jobs.FailurePayload{}, f.notifier.sent[0].payload)
		})
	}
}

func TestSubmit_RejectsMissingSource(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Submit(jobs.JobRequest{Subject: jobs.Subject{Name: "Acme Corp"}})

	assert.ErrorIs(t, err, jobs.ErrInvalidRequest)
	var se *jobs.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, jobs.KindInvalidRequest, se.Kind)
	assert.Equal(t, 0, f.store.Len())
}

func TestRun_AnalyzeFailure(t *testing.T) {
	f := newFixture()
	f.analyzer.err = errors.New("upstream 500")

	req := acme()
	req.PolicyID = "pol_9"
	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Nil(t, job.Result)
	assert.Equal(t, "analysis failed: upstream 500", job.Error)
	assert.Equal(t, "Analysis failed", job.Progress)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.store.completions), "completed_at must be set exactly once")
	assert.Zero(t, atomic.LoadInt32(&f.renderer.calls))

	require.Len(t, f.results.recs, 1)
	assert.Equal(t, jobs.StatusFailed, f.results.recs[0].Status)
	assert.Empty(t, f.notifier.sent, "no callback without a target")

	s, _ := f.observer.finished.Load(job.ID)
	assert.Equal(t, jobs.StatusFailed, s)
}

func TestRun_RenderAndPersistFailuresAreNonFatal(t *testing.T) {
	f := newFixture()
	f.renderer.err = errors.New("font missing")
	f.results.err = errors.New("db down")

	req := acme()
	req.PolicyID = "pol_1"
	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Nil(t, job.Result.ReportPath)
	assert.NotEmpty(t, job.Result.AnalysisData["executive_summary"])
	assert.Empty(t, job.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.store.completions))
}

func TestRun_RenderPanicStillCompletes(t *testing.T) {
	f := newFixture()
	f.renderer.panic = true

	req := acme()
	req.CallbackURL = "https://portal.example/hook"
	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.Result)
	assert.Nil(t, job.Result.ReportPath)
	assert.NotEmpty(t, job.Result.AnalysisData["executive_summary"])
	require.Len(t, f.notifier.sent, 1)
	assert.IsType(t, &jobs.CompletionPayload{}, f.notifier.sent[0].payload)
}

func TestRun_CompletesWithSummary(t *testing.T) {
	f := newFixture()
	req := acme()
	req.PolicyID = "pol_1"
	req.ClientID = "cli_1"
	req.CallbackURL = "http://cb.local/hook"

	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, jobs.StatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	res := job.Result
	require.NotNil(t, res)
	assert.Equal(t, job.ID, res.AnalysisID)
	assert.Equal(t, "pol_1", res.PolicyID)
	assert.Equal(t, "Acme Corp", res.ClientName)
	require.NotNil(t, res.OverallScore)
	assert.Equal(t, 6.4, *res.OverallScore)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, jobs.RecommendBindConditions, *res.Recommendation)
	require.NotNil(t, res.ReportPath)
	assert.Equal(t, "reports/"+job.ID+"_report.pdf", *res.ReportPath)
	assert.GreaterOrEqual(t, res.ProcessingTimeSeconds, 0.0)

	meta, ok := res.AnalysisData["_metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", meta["client_name"])
	assert.Equal(t, jobs.DefaultPolicyType, meta["policy_type"])
	assert.Equal(t, int64(120), meta["tokens_used"])
	assert.Equal(t, "test-model", meta["model_used"])

	require.Len(t, f.results.recs, 1)
	assert.Equal(t, jobs.StatusCompleted, f.results.recs[0].Status)

	require.Len(t, f.notifier.sent, 1)
	d := f.notifier.sent[0]
	assert.Equal(t, "http://cb.local/hook", d.url)
	assert.Equal(t, jobs.StatusCompleted, d.seen.Status, "status must be completed before the callback goes out")
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.observer.started))
}

func TestRun_DegradedParse(t *testing.T) {
	f := newFixture()
	f.analyzer.text = "The policy is broadly adequate but lacks OT coverage."

	job, err := f.svc.Run(context.Background(), acme())
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, map[string]any{"raw_analysis": f.analyzer.text}, job.Result.AnalysisData)
	assert.Nil(t, job.Result.OverallScore)
	assert.Nil(t, job.Result.Recommendation)
}

func TestRun_CallbackFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("connection refused")
	req := acme()
	req.CallbackURL = "http://cb.local/hook"

	job, err := f.svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Len(t, f.notifier.sent, 1)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	f := newFixture()
	f.analyzer.panic = true

	job, err := f.svc.Run(context.Background(), acme())
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "provider exploded")
}

func TestSubmit_ReturnsBeforePipelineFinishes(t *testing.T) {
	f := newFixture()
	f.analyzer.gate = make(chan struct{})

	id, err := f.svc.Submit(acme())
	require.NoError(t, err)
	assert.Regexp(t, `^analysis_[0-9a-f]{12}$`, id)

	snap, ok := f.svc.Get(id)
	require.True(t, ok)
	assert.False(t, snap.Status.IsTerminal())
	assert.Nil(t, snap.CompletedAt)

	close(f.analyzer.gate)
	require.Eventually(t, func() bool {
		j, _ := f.svc.Get(id)
		return j.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRun_EndToEndLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme-policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("CYBER POLICY\nAggregate limit $2,000,000"), 0o644))

	store := status.NewMemoryStore(0, 0, arbor.NewNoOpLogger())
	svc := &Service{
		Status:    store,
		Extractor: extract.New(dir, time.Second, arbor.NewNoOpLogger()),
		Analyzer:  &fakeAnalyzer{text: structuredReply},
		Logger:    arbor.NewNoOpLogger(),
	}

	job, err := svc.Run(context.Background(), jobs.JobRequest{
		LocalPath: path,
		Subject:   jobs.Subject{Name: "Acme Corp"},
	})
	require.NoError(t, err)

	snap, ok := store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.NotEmpty(t, snap.Result.AnalysisData)
	assert.Nil(t, snap.Result.ReportPath)
	assert.GreaterOrEqual(t, snap.Result.ProcessingTimeSeconds, 0.0)
}

func TestRun_EndToEndUnreachableURL(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL + "/policy.pdf"
	dead.Close()

	var got []map[string]any
	var mu sync.Mutex
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	newSvc := func() *Service {
		return &Service{
			Status:    status.NewMemoryStore(0, 0, arbor.NewNoOpLogger()),
			Extractor: extract.New(t.TempDir(), time.Second, arbor.NewNoOpLogger()),
			Analyzer:  &fakeAnalyzer{text: structuredReply},
			Notifier:  callback.New(time.Second, arbor.NewNoOpLogger()),
			Logger:    arbor.NewNoOpLogger(),
		}
	}

	job, err := newSvc().Run(context.Background(), jobs.JobRequest{FileURL: deadURL})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "extraction")
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()

	job, err = newSvc().Run(context.Background(), jobs.JobRequest{
		FileURL:     deadURL,
		PolicyID:    "pol_7",
		CallbackURL: hook.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "failed", got[0]["status"])
	assert.Equal(t, job.ID, got[0]["analysis_id"])
	assert.Equal(t, "pol_7", got[0]["policy_id"])
	assert.Contains(t, got[0]["error_message"], "extraction")
	assert.NotEmpty(t, got[0]["completed_at"])
}

func TestElapsedSeconds(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.23, elapsedSeconds(base, base.Add(1234*time.Millisecond)))
	assert.Equal(t, 0.0, elapsedSeconds(base, base.Add(-time.Second)))
}
