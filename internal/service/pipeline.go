package service

import (
	"context"
	"fmt"
	"log/slog"

	"clickup_collector/internal/domain"
)

type UserSyncer interface {
	Sync(ctx context.Context) (*domain.UserSyncStats, error)
}

type TaskSyncer interface {
	Sync(ctx context.Context, req SyncRequest) (*domain.SyncStats, error)
}

type AggregateGenerator interface {
	Generate(ctx context.Context, req AggregateRequest) (*domain.AggregateStats, error)
}

// Pipeline runs users sync, a full task sync and aggregation for one list,
// stopping at the first failing step. Steps that already committed stay committed.
type Pipeline struct {
	users      UserSyncer
	tasks      TaskSyncer
	aggregates AggregateGenerator
	logger     *slog.Logger
}

func NewPipeline(users UserSyncer, tasks TaskSyncer, aggregates AggregateGenerator, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		users:      users,
		tasks:      tasks,
		aggregates: aggregates,
		logger:     logger.With("component", "pipeline"),
	}
}

func (p *Pipeline) Run(ctx context.Context, listID string, includeArchived bool) error {
	if listID == "" {
		return fmt.Errorf("%w: list id is required", domain.ErrConfiguration)
	}
	logger := p.logger.With("list_id", listID)

	logger.Info("step 1: synchronizing users")
	if _, err := p.users.Sync(ctx); err != nil {
		return fmt.Errorf("full sync aborted at users step: %w", err)
	}

	logger.Info("step 2: synchronizing tasks (full)")
	if _, err := p.tasks.Sync(ctx, SyncRequest{ListID: listID, FullSync: true, IncludeArchived: includeArchived}); err != nil {
		return fmt.Errorf("full sync aborted at tasks step: %w", err)
	}

	logger.Info("step 3: generating aggregates")
	if _, err := p.aggregates.Generate(ctx, AggregateRequest{ListID: &listID}); err != nil {
		return fmt.Errorf("full sync aborted at aggregates step: %w", err)
	}

	logger.Info("full sync completed")
	return nil
}
