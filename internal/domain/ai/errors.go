package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrNotConfigured is returned when no provider client or API key is available.
var ErrNotConfigured = errors.New("ai provider not configured")

// ErrEmptyCompletion is returned when a provider answers with no text at all.
var ErrEmptyCompletion = errors.New("ai provider returned empty completion")
