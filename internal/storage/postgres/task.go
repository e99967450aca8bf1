package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clickup_collector/internal/domain"
)

const taskColumns = `task_id, list_id, name, parent_task_id, is_parent_root, time_spent_ms,
	client_name, extracted_month, status, source_created_at, source_updated_at,
	start_date, due_date, archived, last_synced_at`

type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Upsert inserts the task or overwrites every column of the stored row.
// It reports true when the row did not exist before.
func (s *TaskStore) Upsert(ctx context.Context, task *domain.Task) (bool, error) {
	query := `
		INSERT INTO tasks (` + taskColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (task_id) DO UPDATE SET
			list_id = EXCLUDED.list_id,
			name = EXCLUDED.name,
			parent_task_id = EXCLUDED.parent_task_id,
			is_parent_root = EXCLUDED.is_parent_root,
			time_spent_ms = EXCLUDED.time_spent_ms,
			client_name = EXCLUDED.client_name,
			extracted_month = EXCLUDED.extracted_month,
			status = EXCLUDED.status,
			source_created_at = EXCLUDED.source_created_at,
			source_updated_at = EXCLUDED.source_updated_at,
			start_date = EXCLUDED.start_date,
			due_date = EXCLUDED.due_date,
			archived = EXCLUDED.archived,
			last_synced_at = EXCLUDED.last_synced_at
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		task.ID,
		task.ListID,
		task.Name,
		task.ParentID,
		task.IsParentRoot,
		task.TimeSpentMs,
		task.ClientName,
		task.ExtractedMonth,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
		task.StartDate,
		task.DueDate,
		task.Archived,
		task.LastSyncedAt,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// GetUpdatedAt returns the stored source update time of every known id.
// Ids with no stored row are absent from the map.
func (s *TaskStore) GetUpdatedAt(ctx context.Context, ids []string) (map[string]*time.Time, error) {
	result := make(map[string]*time.Time, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT task_id, source_updated_at FROM tasks WHERE task_id = ANY($1)`

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var updatedAt *time.Time
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, err
		}
		result[id] = updatedAt
	}

	return result, rows.Err()
}

func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1`
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListAll loads every stored task. Subtrees may cross lists, so no filter is applied here.
func (s *TaskStore) ListAll(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY task_id`
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &tasks, query)
	return tasks, err
}
