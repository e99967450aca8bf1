package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"clickup_collector/internal/domain"
)

type TaskSource interface {
	FetchTasks(ctx context.Context, listID string, opts domain.FetchOptions) ([]domain.Task, error)
	FetchUsers(ctx context.Context) ([]domain.User, error)
}

type TaskStore interface {
	Upsert(ctx context.Context, task *domain.Task) (bool, error)
	GetUpdatedAt(ctx context.Context, ids []string) (map[string]*time.Time, error)
	ListAll(ctx context.Context) ([]domain.Task, error)
}

type AssignmentStore interface {
	ListUserIDs(ctx context.Context, taskID string) ([]int64, error)
	ListAssignees(ctx context.Context, taskID string) ([]domain.Assignee, error)
	Add(ctx context.Context, taskID string, userIDs []int64) error
	Remove(ctx context.Context, taskID string, userIDs []int64) error
}

type UserStore interface {
	Get(ctx context.Context, id int64) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
	EnsureExist(ctx context.Context, ids []int64) error
}

type ListStore interface {
	Ensure(ctx context.Context, listID string) error
	GetWatermark(ctx context.Context, listID string) (*time.Time, error)
	SetWatermark(ctx context.Context, listID string, at time.Time) error
}

type AggregateStore interface {
	UpsertBatch(ctx context.Context, aggregates []domain.Aggregate) error
}

type SyncRunStore interface {
	Start(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishTask(ctx context.Context, task *domain.Task, isNew bool) error
	PublishAggregate(ctx context.Context, aggregate *domain.Aggregate) error
	Close() error
}
