package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bryanwahyu/policy-analysis/internal/domain/ai"
)

const DefaultModel = "claude-sonnet-4-20250514"

// Client calls the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	model  string
}

var _ ai.Client = (*Client)(nil)

func NewClient(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(timeout))
	}
	reqOpts = append(reqOpts, opts...)
	return &Client{client: anthropic.NewClient(reqOpts...), model: model}
}

func (c *Client) Complete(ctx context.Context, p ai.Prompt) (ai.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(p.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return ai.Completion{}, fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return ai.Completion{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return ai.Completion{}, ai.ErrEmptyCompletion
	}

	return ai.Completion{
		Text:         text.String(),
		Model:        c.model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
