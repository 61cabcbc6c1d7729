package jobs

import "time"

// Record is what the Result Store writes for one policy.
type Record struct {
	PolicyID   string    `json:"policy_id"`
	AnalysisID string    `json:"analysis_id"`
	Status     Status    `json:"analysis_status"`
	Result     any       `json:"analysis_result"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}
