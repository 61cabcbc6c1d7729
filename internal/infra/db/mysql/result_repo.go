package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
)

// ResultRepository stores one analysis outcome per policy.
//
//	CREATE TABLE policy_analyses (
//	  policy_id       VARCHAR(128) PRIMARY KEY,
//	  analysis_id     VARCHAR(32)  NOT NULL,
//	  analysis_status VARCHAR(16)  NOT NULL,
//	  analysis_result JSON         NOT NULL,
//	  analyzed_at     DATETIME(3)  NOT NULL
//	);
type ResultRepository struct {
	db *sql.DB
}

var _ jobs.ResultStore = (*ResultRepository)(nil)

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save upserts the record keyed by policy id; a later run overwrites an earlier one.
func (r *ResultRepository) Save(ctx context.Context, rec *jobs.Record) error {
	if rec == nil || rec.PolicyID == "" {
		return errors.New("result record requires a policy id")
	}
	const q = `
INSERT INTO policy_analyses
  (policy_id, analysis_id, analysis_status, analysis_result, analyzed_at)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  analysis_id=VALUES(analysis_id), analysis_status=VALUES(analysis_status),
  analysis_result=VALUES(analysis_result), analyzed_at=VALUES(analyzed_at);
`
	result, err := resultJSON(rec.Result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	analyzedAt := rec.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, q, rec.PolicyID, rec.AnalysisID, stringOrDash(string(rec.Status)), result, analyzedAt)
	return err
}
