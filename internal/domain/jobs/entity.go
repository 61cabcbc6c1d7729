package jobs

import (
	"time"
)

// Status enum
type Status string

const (
	StatusStarted    Status = "started"
	StatusExtracting Status = "extracting"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	DefaultIndustry   = "Other/General"
	DefaultPolicyType = "cyber"
	DefaultClientName = "Unknown Client"
)

// Job is the status snapshot tracked per analysis ID.
type Job struct {
	ID          string             `json:"analysis_id"`
	Status      Status             `json:"status"`
	Progress    string             `json:"progress"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at"`
	Error       string             `json:"error,omitempty"`
	Result      *CompletionPayload `json:"result"`
}

// JobPatch carries the fields to merge into an existing Job; nil fields are left alone.
type JobPatch struct {
	Status      *Status
	Progress    *string
	CompletedAt *time.Time
	Error       *string
	Result      *CompletionPayload
}

// Apply merges p into j.
func (p JobPatch) Apply(j *Job) {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		j.CompletedAt = &t
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	if p.Result != nil {
		j.Result = p.Result.Clone()
	}
}

// Clone returns a deep copy of the job so callers never share mutable state.
func (j Job) Clone() Job {
	out := j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	out.Result = j.Result.Clone()
	return out
}

// Subject describes who and what is being analyzed.
type Subject struct {
	Name       string
	Industry   string
	PolicyType string
	Renewal    bool
}

// JobRequest is the immutable submission bundle.
// Exactly one of LocalPath and FileURL must be set.
type JobRequest struct {
	LocalPath   string
	FileURL     string
	FileName    string
	Subject     Subject
	PolicyID    string
	ClientID    string
	Priority    string
	CallbackURL string
}

// WithDefaults fills optional subject fields the way submission expects.
func (r JobRequest) WithDefaults() JobRequest {
	if r.Subject.Name == "" {
		r.Subject.Name = DefaultClientName
	}
	if r.Subject.Industry == "" {
		r.Subject.Industry = DefaultIndustry
	}
	if r.Subject.PolicyType == "" {
		r.Subject.PolicyType = DefaultPolicyType
	}
	return r
}

// Source is the resolved input reference for the extract stage.
type Source struct {
	LocalPath string
	URL       string
}

// Remote reports whether the source has to be downloaded.
func (s Source) Remote() bool { return s.URL != "" }

func (s Source) String() string {
	if s.Remote() {
		return s.URL
	}
	return s.LocalPath
}

// Extraction is the plain text recovered from a document.
type Extraction struct {
	Text      string
	PageCount int
}

// AnalysisInput is what the analyzer receives for one job.
type AnalysisInput struct {
	Text    string
	Subject Subject
}

// AnalysisOutcome is the decoded analyzer payload plus provenance.
type AnalysisOutcome struct {
	Data         map[string]any
	Model        string
	InputTokens  int64
	OutputTokens int64
	Parsed       bool
	SchemaErrors []string
}
