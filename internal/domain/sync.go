package domain

import "time"

type SyncType string

const (
	SyncTypeUsers            SyncType = "USERS"
	SyncTypeTasksFull        SyncType = "TASKS_FULL"
	SyncTypeTasksIncremental SyncType = "TASKS_INCREMENTAL"
	SyncTypeAggregates       SyncType = "AGGREGATES"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusFailure SyncStatus = "FAILURE"
)

// SyncRun is the audit record of one sync or aggregation run.
type SyncRun struct {
	ID           string     `db:"run_id"`
	Type         SyncType   `db:"sync_type"`
	ListID       *string    `db:"target_list_id"`
	StartedAt    time.Time  `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	ItemsNew     int        `db:"items_new"`
	ItemsUpdated int        `db:"items_updated"`
	Status       SyncStatus `db:"status"`
	Details      *string    `db:"details"`
}

// SyncStats holds statistics about a task sync operation.
type SyncStats struct {
	ListID        string
	Mode          SyncType
	UpdatedAfter  *time.Time
	Fetched       int
	New           int
	Updated       int
	Unchanged     int
	PublishErrors int
	StartedAt     time.Time
	Duration      time.Duration
}

// UserSyncStats holds statistics about a user sync operation.
type UserSyncStats struct {
	Fetched  int
	New      int
	Updated  int
	Skipped  int
	Duration time.Duration
}

// AggregateStats summarizes one aggregation run.
type AggregateStats struct {
	RootsConsidered   int
	SkippedNoAssignee int
	SkippedUserFilter int
	RootsAggregated   int
	RowsWritten       int
	CyclesDetected    int
	PublishErrors     int
	Duration          time.Duration
}

// FetchOptions narrows a task listing on the source.
type FetchOptions struct {
	UpdatedAfter    *time.Time
	IncludeArchived bool
}
