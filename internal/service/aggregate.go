package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clickup_collector/internal/domain"
	"clickup_collector/internal/rollup"
)

type AggregateRequest struct {
	ListID *string
	UserID *int64
}

// AggregationService recomputes the per-assignee time totals of root tasks
// from the currently stored hierarchy.
type AggregationService struct {
	tasks       TaskStore
	assignments AssignmentStore
	aggregates  AggregateStore
	runs        SyncRunStore
	txManager   TransactionManager
	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewAggregationService(
	tasks TaskStore,
	assignments AssignmentStore,
	aggregates AggregateStore,
	runs SyncRunStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
) *AggregationService {
	return &AggregationService{
		tasks:       tasks,
		assignments: assignments,
		aggregates:  aggregates,
		runs:        runs,
		txManager:   txManager,
		publisher:   publisher,
		logger:      logger.With("component", "aggregation"),
		now:         time.Now,
	}
}

func (s *AggregationService) Generate(ctx context.Context, req AggregateRequest) (stats *domain.AggregateStats, err error) {
	startedAt := s.now().UTC()
	logger := s.logger
	if req.ListID != nil {
		logger = logger.With("list_id", *req.ListID)
	}
	if req.UserID != nil {
		logger = logger.With("user_id", *req.UserID)
	}

	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		Type:      domain.SyncTypeAggregates,
		ListID:    req.ListID,
		StartedAt: startedAt,
		Status:    domain.SyncStatusPending,
	}
	if err := s.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("%w: open sync run: %w", domain.ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			logger.Error("aggregate generation failed", "error", err)
			finishedAt := s.now().UTC()
			details := fmt.Sprintf("Error: %v", err)
			run.FinishedAt = &finishedAt
			run.Status = domain.SyncStatusFailure
			run.Details = &details
			if ferr := s.runs.Finish(context.WithoutCancel(ctx), run); ferr != nil {
				logger.Error("failed to record sync run failure", "run_id", run.ID, "error", ferr)
			}
			stats = nil
		}
	}()

	all, err := s.tasks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load tasks: %w", domain.ErrPersistence, err)
	}
	hierarchy := rollup.Build(all)
	roots := hierarchy.Roots(req.ListID)

	stats = &domain.AggregateStats{RootsConsidered: len(roots)}
	logger.Info("building aggregates", "tasks", hierarchy.Len(), "roots", len(roots))

	var rows []domain.Aggregate
	for _, root := range roots {
		assignees, err := s.assignments.ListAssignees(ctx, root.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: list assignees of %s: %w", domain.ErrPersistence, root.ID, err)
		}

		if len(assignees) == 0 {
			stats.SkippedNoAssignee++
			logger.Warn("root task has no assignees, skipping",
				"task_id", root.ID,
				"name", root.Name,
			)
			continue
		}

		if req.UserID != nil {
			assignees = filterAssignees(assignees, *req.UserID)
			if len(assignees) == 0 {
				stats.SkippedUserFilter++
				continue
			}
		}

		total := hierarchy.TotalTime(root.ID)
		for _, id := range total.Cycles {
			stats.CyclesDetected++
			logger.Warn("hierarchy cycle detected, branch contributes no time",
				"root_task_id", root.ID,
				"task_id", id,
			)
		}

		minutes, seconds := rollup.Split(total.Milliseconds)
		for _, a := range assignees {
			rows = append(rows, domain.Aggregate{
				RootTaskID:     root.ID,
				AssigneeUserID: a.UserID,
				RootName:       root.Name,
				ClientName:     root.ClientName,
				ExtractedMonth: root.ExtractedMonth,
				TotalMinutes:   minutes,
				TotalSeconds:   seconds,
				CalculatedAt:   startedAt,
			})
		}
		stats.RootsAggregated++
	}

	if len(rows) > 0 {
		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.aggregates.UpsertBatch(txCtx, rows); err != nil {
				return fmt.Errorf("%w: write aggregates: %w", domain.ErrPersistence, err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	stats.RowsWritten = len(rows)

	if s.publisher != nil {
		for i := range rows {
			if err := s.publisher.PublishAggregate(ctx, &rows[i]); err != nil {
				stats.PublishErrors++
				logger.Warn("failed to publish aggregate",
					"root_task_id", rows[i].RootTaskID,
					"user_id", rows[i].AssigneeUserID,
					"error", err,
				)
			}
		}
	}

	stats.Duration = s.now().Sub(startedAt)

	finishedAt := s.now().UTC()
	details := fmt.Sprintf(
		"Total root tasks: %d, Skipped (No Assignee): %d, Skipped (User Filter): %d, Aggregates Written: %d for %d root tasks.",
		stats.RootsConsidered, stats.SkippedNoAssignee, stats.SkippedUserFilter, stats.RowsWritten, stats.RootsAggregated,
	)
	run.FinishedAt = &finishedAt
	run.ItemsNew = stats.RootsAggregated
	run.ItemsUpdated = stats.RowsWritten - stats.RootsAggregated
	run.Status = domain.SyncStatusSuccess
	run.Details = &details
	if err := s.runs.Finish(ctx, run); err != nil {
		logger.Warn("failed to close sync run", "run_id", run.ID, "error", err)
	}

	logger.Info("aggregate generation completed",
		"roots_considered", stats.RootsConsidered,
		"skipped_no_assignee", stats.SkippedNoAssignee,
		"skipped_user_filter", stats.SkippedUserFilter,
		"roots_aggregated", stats.RootsAggregated,
		"rows_written", stats.RowsWritten,
		"cycles_detected", stats.CyclesDetected,
		"duration", stats.Duration,
	)

	return stats, nil
}

func filterAssignees(assignees []domain.Assignee, userID int64) []domain.Assignee {
	var out []domain.Assignee
	for _, a := range assignees {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}
