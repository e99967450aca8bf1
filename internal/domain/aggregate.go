package domain

import "time"

// Aggregate is the rolled-up time of one root task reported for one assignee.
type Aggregate struct {
	RootTaskID     string    `db:"root_task_id"`
	AssigneeUserID int64     `db:"assignee_user_id"`
	RootName       string    `db:"root_name"`
	ClientName     *string   `db:"client_name"`
	ExtractedMonth *string   `db:"extracted_month"`
	TotalMinutes   int64     `db:"total_minutes"`
	TotalSeconds   int       `db:"total_seconds"`
	CalculatedAt   time.Time `db:"calculated_at"`
}
