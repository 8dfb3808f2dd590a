package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Run statuses recorded in the pipeline_runs ledger.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// StartRun records the beginning of a pipeline stage and returns its run id.
func (s *PostgresStore) StartRun(ctx context.Context, stage string) (string, error) {
	runID := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (run_id, stage, started_at, status)
		VALUES ($1, $2, $3, $4)`,
		runID, stage, time.Now().UTC(), RunRunning)
	if err != nil {
		return "", eris.Wrapf(err, "store: start run for stage %s", stage)
	}
	return runID, nil
}

// FinishRun closes a run with the given status and an optional detail payload,
// which is stored as JSONB.
func (s *PostgresStore) FinishRun(ctx context.Context, runID, status string, detail any) error {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			return eris.Wrap(err, "store: marshal run detail")
		}
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET finished_at = $2, status = $3, detail = $4
		WHERE run_id = $1`,
		runID, time.Now().UTC(), status, payload)
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", runID)
	}
	return nil
}
