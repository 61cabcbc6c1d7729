package jobs

import (
	"context"

	"github.com/bryanwahyu/policy-analysis/internal/domain/ai"
)

// StatusStore holds the live job snapshots keyed by analysis ID.
// Implementations must be safe for concurrent use.
type StatusStore interface {
	// Create fails with ErrJobExists when id is already present.
	Create(id string, job Job) error
	// Update merges patch into the entry; ErrJobNotFound when id is absent.
	Update(id string, patch JobPatch) error
	// Get returns a copy, never a live reference.
	Get(id string) (Job, bool)
}

// Extractor turns a document reference into plain text.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (Extraction, error)
	ExtractURL(ctx context.Context, url string) (Extraction, error)
}

// Analyzer produces the raw model text expected to contain a JSON object.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (ai.Completion, error)
}

// Renderer turns analysis data into a report and returns its reference (path or URL).
type Renderer interface {
	Render(ctx context.Context, jobID string, data map[string]any) (string, error)
}

// ResultStore durably persists terminal outcomes keyed by the external record ID.
type ResultStore interface {
	Save(ctx context.Context, rec *Record) error
}

// Notifier delivers a terminal payload to a caller-supplied URL.
type Notifier interface {
	Deliver(ctx context.Context, url string, payload any) error
}

// Observer is told about job lifecycle edges, e.g. for metrics.
type Observer interface {
	JobStarted(id string)
	JobFinished(id string, status Status)
}
