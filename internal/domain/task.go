package domain

import "time"

type Task struct {
	ID             string     `db:"task_id"`
	ListID         string     `db:"list_id"`
	Name           string     `db:"name"`
	ParentID       *string    `db:"parent_task_id"`
	IsParentRoot   bool       `db:"is_parent_root"`
	TimeSpentMs    int64      `db:"time_spent_ms"`
	ClientName     *string    `db:"client_name"`
	ExtractedMonth *string    `db:"extracted_month"`
	Status         string     `db:"status"`
	CreatedAt      *time.Time `db:"source_created_at"`
	UpdatedAt      *time.Time `db:"source_updated_at"`
	StartDate      *time.Time `db:"start_date"`
	DueDate        *time.Time `db:"due_date"`
	Archived       bool       `db:"archived"`
	LastSyncedAt   time.Time  `db:"last_synced_at"`

	// AssigneeIDs is the assignee snapshot fetched from the source; never read back from Tasks.
	AssigneeIDs []int64 `db:"-"`
}

type User struct {
	ID       int64   `db:"user_id"`
	Username string  `db:"username"`
	Email    *string `db:"email"`
	Role     *int    `db:"role"`
	IsActive bool    `db:"is_active"`
}

// Assignee is a user assigned to a task, as joined from Assignments and Users.
type Assignee struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
}

type List struct {
	ID                   string     `db:"list_id"`
	Name                 string     `db:"name"`
	LastSuccessfulSyncAt *time.Time `db:"last_successful_sync_at"`
}
