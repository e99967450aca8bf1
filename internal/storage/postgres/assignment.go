package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clickup_collector/internal/domain"
)

type AssignmentStore struct {
	db *sqlx.DB
}

func NewAssignmentStore(db *sqlx.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) ListUserIDs(ctx context.Context, taskID string) ([]int64, error) {
	var ids []int64
	query := `SELECT user_id FROM assignments WHERE task_id = $1 ORDER BY user_id`
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids, query, taskID)
	return ids, err
}

func (s *AssignmentStore) ListAssignees(ctx context.Context, taskID string) ([]domain.Assignee, error) {
	query := `
		SELECT a.user_id, u.username
		FROM assignments a
		INNER JOIN users u ON u.user_id = a.user_id
		WHERE a.task_id = $1
		ORDER BY a.user_id`

	var assignees []domain.Assignee
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &assignees, query, taskID)
	return assignees, err
}

// Add links the users to the task. Pairs that already exist are left alone.
func (s *AssignmentStore) Add(ctx context.Context, taskID string, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO assignments (task_id, user_id)
		SELECT $1, u FROM unnest($2::bigint[]) AS u
		ON CONFLICT DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, taskID, pq.Array(userIDs))
	return err
}

func (s *AssignmentStore) Remove(ctx context.Context, taskID string, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `DELETE FROM assignments WHERE task_id = $1 AND user_id = ANY($2)`
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, taskID, pq.Array(userIDs))
	return err
}
