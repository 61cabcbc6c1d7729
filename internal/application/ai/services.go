package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/domain/ai"
	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
	"github.com/bryanwahyu/policy-analysis/internal/infra/ai/prompt"
)

const DefaultMaxTokens = 8192

// Service is the structured analyzer: it builds the analyst prompt for a
// subject and asks the configured provider for a completion.
type Service struct {
	client    ai.Client
	maxTokens int
	logger    arbor.ILogger
}

var _ jobs.Analyzer = (*Service)(nil)

// NewService accepts a nil client; Analyze then fails with ai.ErrNotConfigured.
func NewService(client ai.Client, maxTokens int, logger arbor.ILogger) *Service {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Service{client: client, maxTokens: maxTokens, logger: logger}
}

// Configured reports whether a provider client is wired in.
func (s *Service) Configured() bool { return s.client != nil }

func (s *Service) Analyze(ctx context.Context, in jobs.AnalysisInput) (ai.Completion, error) {
	if s.client == nil {
		return ai.Completion{}, ai.ErrNotConfigured
	}
	if strings.TrimSpace(in.Text) == "" {
		return ai.Completion{}, fmt.Errorf("analyze: empty policy text")
	}

	s.logger.Info().
		Str("client", in.Subject.Name).
		Str("industry", in.Subject.Industry).
		Int("chars", len(in.Text)).
		Msg("starting policy analysis")

	start := time.Now()
	c, err := s.client.Complete(ctx, ai.Prompt{
		System:    prompt.GetSystemPrompt(in.Subject.Industry, in.Subject.Renewal),
		User:      prompt.GetUserPrompt(in.Text, in.Subject),
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return ai.Completion{}, fmt.Errorf("analyze: %w", err)
	}
	if strings.TrimSpace(c.Text) == "" {
		return ai.Completion{}, ai.ErrEmptyCompletion
	}

	s.logger.Info().
		Str("model", c.Model).
		Int("chars", len(c.Text)).
		Int64("tokens", c.TokensUsed()).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("policy analysis returned")
	return c, nil
}
