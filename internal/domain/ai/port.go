package ai

import "context"

// Prompt is a single system+user exchange sent to a model provider.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Completion is the raw text a provider produced plus its accounting.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// TokensUsed returns input plus output tokens.
func (c Completion) TokensUsed() int64 {
	return c.InputTokens + c.OutputTokens
}

type Client interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
}
