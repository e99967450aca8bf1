package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"clickup_collector/internal/domain"
)

type SyncRunStore struct {
	db *sqlx.DB
}

func NewSyncRunStore(db *sqlx.DB) *SyncRunStore {
	return &SyncRunStore{db: db}
}

// Start records a run in its initial state. It runs outside any sync
// transaction so the audit row survives a rollback of the run's work.
func (s *SyncRunStore) Start(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (run_id, sync_type, target_list_id, started_at, status, details)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Type,
		run.ListID,
		run.StartedAt,
		run.Status,
		run.Details,
	)
	return err
}

func (s *SyncRunStore) Finish(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			sync_type = $2,
			finished_at = $3,
			items_new = $4,
			items_updated = $5,
			status = $6,
			details = $7
		WHERE run_id = $1`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Type,
		run.FinishedAt,
		run.ItemsNew,
		run.ItemsUpdated,
		run.Status,
		run.Details,
	)
	return err
}
