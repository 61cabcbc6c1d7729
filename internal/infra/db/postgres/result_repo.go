package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// ResultRepository is the Postgres twin of the MySQL repository; the table
// uses JSONB for analysis_result.
type ResultRepository struct {
	db *sql.DB
}

var _ jobs.ResultStore = (*ResultRepository)(nil)

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Save(ctx context.Context, rec *jobs.Record) error {
	if rec == nil || rec.PolicyID == "" {
		return errors.New("result record requires a policy id")
	}
	const q = `
INSERT INTO policy_analyses
  (policy_id, analysis_id, analysis_status, analysis_result, analyzed_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (policy_id) DO UPDATE SET
  analysis_id=EXCLUDED.analysis_id,
  analysis_status=EXCLUDED.analysis_status,
  analysis_result=EXCLUDED.analysis_result,
  analyzed_at=EXCLUDED.analyzed_at;
`
	result, err := resultJSON(rec.Result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, q, rec.PolicyID, rec.AnalysisID, stringOrDash(string(rec.Status)), result, timeOrNow(rec.AnalyzedAt))
	return err
}
