package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
)

// Kind tags why a stage did not succeed.
type Kind string

const (
	KindInvalidRequest   Kind = "InvalidRequest"
	KindExtractionFailed Kind = "ExtractionFailed"
	KindAnalysisFailed   Kind = "AnalysisFailed"
	KindParseDegraded    Kind = "ParseDegraded"
	KindRenderFailed     Kind = "RenderFailed"
	KindPersistFailed    Kind = "PersistFailed"
	KindNotifyFailed     Kind = "NotifyFailed"
)

// Sentinels so callers can use errors.Is on a *StageError.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrAnalysisFailed   = errors.New("analysis failed")
	ErrParseDegraded    = errors.New("structured parse degraded")
	ErrRenderFailed     = errors.New("report rendering failed")
	ErrPersistFailed    = errors.New("result persistence failed")
	ErrNotifyFailed     = errors.New("callback delivery failed")
)

var kindSentinels = map[Kind]error{
	KindInvalidRequest:   ErrInvalidRequest,
	KindExtractionFailed: ErrExtractionFailed,
	KindAnalysisFailed:   ErrAnalysisFailed,
	KindParseDegraded:    ErrParseDegraded,
	KindRenderFailed:     ErrRenderFailed,
	KindPersistFailed:    ErrPersistFailed,
	KindNotifyFailed:     ErrNotifyFailed,
}

// Fatal reports whether the kind aborts the pipeline.
func (k Kind) Fatal() bool {
	switch k {
	case KindInvalidRequest, KindExtractionFailed, KindAnalysisFailed:
		return true
	}
	return false
}

// StageError is the failure half of a stage result.
type StageError struct {
	Kind  Kind
	Stage string
	Err   error
}

func NewStageError(kind Kind, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// Error renders "<sentinel>: <cause>", e.g. "extraction failed: dial tcp ...".
func (e *StageError) Error() string {
	base := kindSentinels[e.Kind]
	if base == nil {
		base = errors.New(string(e.Kind))
	}
	if e.Err == nil {
		return base.Error()
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

func (e *StageError) Unwrap() []error {
	var errs []error
	if s := kindSentinels[e.Kind]; s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
