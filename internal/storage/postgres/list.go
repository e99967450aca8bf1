package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"clickup_collector/internal/domain"
)

type ListStore struct {
	db *sqlx.DB
}

func NewListStore(db *sqlx.DB) *ListStore {
	return &ListStore{db: db}
}

// Ensure registers the list under a generated name if it is not known yet.
func (s *ListStore) Ensure(ctx context.Context, listID string) error {
	query := `
		INSERT INTO lists (list_id, name) VALUES ($1, 'List ' || $1::text)
		ON CONFLICT (list_id) DO NOTHING`
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, listID)
	return err
}

func (s *ListStore) Get(ctx context.Context, listID string) (*domain.List, error) {
	var list domain.List
	query := `SELECT list_id, name, last_successful_sync_at FROM lists WHERE list_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &list, query, listID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// GetWatermark returns nil when the list is unknown or was never synced successfully.
func (s *ListStore) GetWatermark(ctx context.Context, listID string) (*time.Time, error) {
	list, err := s.Get(ctx, listID)
	if err != nil || list == nil || list.LastSuccessfulSyncAt == nil {
		return nil, err
	}
	watermark := list.LastSuccessfulSyncAt.UTC()
	return &watermark, nil
}

func (s *ListStore) SetWatermark(ctx context.Context, listID string, at time.Time) error {
	query := `
		INSERT INTO lists (list_id, name, last_successful_sync_at)
		VALUES ($1, 'List ' || $1::text, $2)
		ON CONFLICT (list_id) DO UPDATE SET
			last_successful_sync_at = EXCLUDED.last_successful_sync_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, listID, at)
	return err
}
