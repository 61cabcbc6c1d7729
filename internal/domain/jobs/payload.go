package jobs

import "time"

// CompletionPayload is the terminal success result. It is stored on the Job
// and sent to the callback target unchanged.
type CompletionPayload struct {
	AnalysisID            string          `json:"analysis_id"`
	PolicyID              string          `json:"policy_id,omitempty"`
	ClientID              string          `json:"client_id,omitempty"`
	ClientName            string          `json:"client_name"`
	Status                Status          `json:"status"`
	OverallScore          *float64        `json:"overall_score"`
	Recommendation        *Recommendation `json:"recommendation"`
	ReportPath            *string         `json:"report_path"`
	AnalysisData          map[string]any  `json:"analysis_data"`
	CompletedAt           time.Time       `json:"completed_at"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
}

// Clone deep-copies the payload including the nested analysis data.
func (p *CompletionPayload) Clone() *CompletionPayload {
	if p == nil {
		return nil
	}
	out := *p
	if p.OverallScore != nil {
		v := *p.OverallScore
		out.OverallScore = &v
	}
	if p.Recommendation != nil {
		v := *p.Recommendation
		out.Recommendation = &v
	}
	if p.ReportPath != nil {
		v := *p.ReportPath
		out.ReportPath = &v
	}
	out.AnalysisData = CloneMap(p.AnalysisData)
	return &out
}

// FailurePayload is the terminal failure notification.
type FailurePayload struct {
	AnalysisID   string    `json:"analysis_id"`
	PolicyID     string    `json:"policy_id,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message"`
	CompletedAt  time.Time `json:"completed_at"`
}

// CloneMap deep-copies a decoded JSON tree.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = cloneValue(t[i])
		}
		return s
	default:
		return v
	}
}
