package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/policy-analysis/internal/domain/ai"
	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// stageResult is either a value or a tagged stage error, never both.
type stageResult[T any] struct {
	val T
	err *jobs.StageError
}

func succeed[T any](v T) stageResult[T] { return stageResult[T]{val: v} }

func failWith[T any](kind jobs.Kind, stage string, err error) stageResult[T] {
	return stageResult[T]{err: jobs.NewStageError(kind, stage, err)}
}

var errNoSource = errors.New("exactly one of a local file path or a file URL is required")

// resolveSource enforces the path XOR URL rule.
func resolveSource(req jobs.JobRequest) stageResult[jobs.Source] {
	path := strings.TrimSpace(req.LocalPath)
	url := strings.TrimSpace(req.FileURL)
	if (path == "") == (url == "") {
		return failWith[jobs.Source](jobs.KindInvalidRequest, "resolve", errNoSource)
	}
	return succeed(jobs.Source{LocalPath: path, URL: url})
}

func (s *Service) extract(ctx context.Context, src jobs.Source) stageResult[jobs.Extraction] {
	if s.Extractor == nil {
		return failWith[jobs.Extraction](jobs.KindExtractionFailed, "extract", errors.New("no extractor configured"))
	}
	var (
		ext jobs.Extraction
		err error
	)
	if src.Remote() {
		ext, err = s.Extractor.ExtractURL(ctx, src.URL)
	} else {
		ext, err = s.Extractor.ExtractFile(ctx, src.LocalPath)
	}
	if err != nil {
		return failWith[jobs.Extraction](jobs.KindExtractionFailed, "extract", err)
	}
	return succeed(ext)
}

// analyze calls the analyzer and recovers structure from its text. A parse
// miss is not a failure: the raw text is carried forward under raw_analysis.
func (s *Service) analyze(ctx context.Context, id string, text string, subject jobs.Subject) stageResult[jobs.AnalysisOutcome] {
	if s.Analyzer == nil {
		return failWith[jobs.AnalysisOutcome](jobs.KindAnalysisFailed, "analyze", ai.ErrNotConfigured)
	}
	c, err := s.Analyzer.Analyze(ctx, jobs.AnalysisInput{Text: text, Subject: subject})
	if err != nil {
		return failWith[jobs.AnalysisOutcome](jobs.KindAnalysisFailed, "analyze", err)
	}

	out := jobs.AnalysisOutcome{
		Model:        c.Model,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
	}
	data, ok := ai.ParseResponse(c.Text)
	if !ok {
		degraded := jobs.NewStageError(jobs.KindParseDegraded, "analyze", errors.New("no JSON object in model output"))
		s.logger().Warn().Str("job_id", id).Err(degraded).Int("chars", len(c.Text)).Msg("continuing with raw analysis")
		out.Data = map[string]any{"raw_analysis": c.Text}
		return succeed(out)
	}

	out.Parsed = true
	out.SchemaErrors = ai.CheckAnalysisShape(data)
	if len(out.SchemaErrors) > 0 {
		s.logger().Warn().Str("job_id", id).Int("violations", len(out.SchemaErrors)).Str("first", out.SchemaErrors[0]).Msg("analysis shape differs from expected schema")
	}

	meta := map[string]any{
		"client_name":     subject.Name,
		"client_industry": subject.Industry,
		"policy_type":     subject.PolicyType,
		"is_renewal":      subject.Renewal,
		"model_used":      c.Model,
		"tokens_used":     c.TokensUsed(),
	}
	if len(out.SchemaErrors) > 0 {
		errs := make([]any, len(out.SchemaErrors))
		for i, e := range out.SchemaErrors {
			errs[i] = e
		}
		meta["schema_errors"] = errs
	}
	data["_metadata"] = meta
	out.Data = data
	return succeed(out)
}

// render never fails the job; a panic in the renderer becomes RenderFailed.
func (s *Service) render(ctx context.Context, id string, data map[string]any) (res stageResult[string]) {
	defer func() {
		if p := recover(); p != nil {
			res = failWith[string](jobs.KindRenderFailed, "render", fmt.Errorf("panic: %v", p))
		}
	}()
	if s.Renderer == nil {
		return failWith[string](jobs.KindRenderFailed, "render", errors.New("no renderer configured"))
	}
	ref, err := s.Renderer.Render(ctx, id, data)
	if err != nil {
		return failWith[string](jobs.KindRenderFailed, "render", err)
	}
	return succeed(ref)
}

func (s *Service) persist(ctx context.Context, rec *jobs.Record) *jobs.StageError {
	if s.Results == nil {
		return nil
	}
	if err := s.Results.Save(ctx, rec); err != nil {
		return jobs.NewStageError(jobs.KindPersistFailed, "persist", err)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, url string, payload any) *jobs.StageError {
	if s.Notifier == nil {
		return jobs.NewStageError(jobs.KindNotifyFailed, "notify", errors.New("no notifier configured"))
	}
	if err := s.Notifier.Deliver(ctx, url, payload); err != nil {
		return jobs.NewStageError(jobs.KindNotifyFailed, "notify", err)
	}
	return nil
}
