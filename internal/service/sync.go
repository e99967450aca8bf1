package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clickup_collector/internal/domain"
)

type syncState string

const (
	stateDetermineMode    syncState = "DETERMINE_MODE"
	stateFetch            syncState = "FETCH"
	stateProcess          syncState = "PROCESS"
	stateAdvanceWatermark syncState = "ADVANCE_WATERMARK"
	stateDone             syncState = "DONE"
	stateFailed           syncState = "FAILED"
)

type SyncRequest struct {
	ListID          string
	FullSync        bool
	IncludeArchived bool
}

type SyncService struct {
	source    TaskSource
	tasks     TaskStore
	lists     ListStore
	runs      SyncRunStore
	txManager TransactionManager
	upserter  *Upserter
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncService(
	source TaskSource,
	tasks TaskStore,
	lists ListStore,
	runs SyncRunStore,
	txManager TransactionManager,
	upserter *Upserter,
	publisher Publisher,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		source:    source,
		tasks:     tasks,
		lists:     lists,
		runs:      runs,
		txManager: txManager,
		upserter:  upserter,
		publisher: publisher,
		logger:    logger.With("component", "task_sync"),
		now:       time.Now,
	}
}

// Sync fetches the tasks of one list, merges them in a single transaction and
// advances the list watermark to the run's start time.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (stats *domain.SyncStats, err error) {
	if strings.TrimSpace(req.ListID) == "" {
		return nil, fmt.Errorf("%w: list id is required", domain.ErrConfiguration)
	}

	startedAt := s.now().UTC()
	logger := s.logger.With("list_id", req.ListID)
	state := stateDetermineMode

	if err := s.lists.Ensure(ctx, req.ListID); err != nil {
		return nil, fmt.Errorf("%w: register list: %w", domain.ErrPersistence, err)
	}

	listID := req.ListID
	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		Type:      domain.SyncTypeTasksIncremental,
		ListID:    &listID,
		StartedAt: startedAt,
		Status:    domain.SyncStatusPending,
	}
	if req.FullSync {
		run.Type = domain.SyncTypeTasksFull
	}
	if err := s.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("%w: open sync run: %w", domain.ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			logger.Error("task sync failed", "state", state, "error", err)
			s.finishFailed(ctx, run, state, err)
			stats = nil
		}
	}()

	// DETERMINE_MODE
	opts := domain.FetchOptions{IncludeArchived: req.IncludeArchived}
	full := req.FullSync
	if !full {
		watermark, err := s.lists.GetWatermark(ctx, req.ListID)
		if err != nil {
			return nil, fmt.Errorf("%w: read watermark: %w", domain.ErrPersistence, err)
		}
		if watermark == nil {
			logger.Info("no watermark for list, falling back to full sync")
			full = true
		} else {
			opts.UpdatedAfter = watermark
		}
	}
	if full {
		run.Type = domain.SyncTypeTasksFull
	}

	stats = &domain.SyncStats{
		ListID:       req.ListID,
		Mode:         run.Type,
		UpdatedAfter: opts.UpdatedAfter,
		StartedAt:    startedAt,
	}

	logger.Info("starting task sync",
		"mode", run.Type,
		"updated_after", opts.UpdatedAfter,
		"include_archived", opts.IncludeArchived,
	)

	state = stateFetch
	fetched, err := s.source.FetchTasks(ctx, req.ListID, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	stats.Fetched = len(fetched)
	logger.Info("fetched tasks from source", "count", len(fetched))

	fetched = dedupeByID(fetched)
	if dropped := stats.Fetched - len(fetched); dropped > 0 {
		logger.Warn("source returned duplicate tasks, keeping the last copy", "duplicates", dropped)
	}

	state = stateProcess
	changed, err := s.process(ctx, fetched, full, startedAt, stats)
	if err != nil {
		return nil, fmt.Errorf("process tasks: %w", err)
	}

	state = stateAdvanceWatermark
	if err := s.lists.SetWatermark(ctx, req.ListID, startedAt); err != nil {
		return nil, fmt.Errorf("%w: advance watermark: %w", domain.ErrPersistence, err)
	}

	s.publish(ctx, changed, stats)

	state = stateDone
	stats.Duration = s.now().Sub(startedAt)

	finishedAt := s.now().UTC()
	details := fmt.Sprintf("Fetched %d raw tasks from API.", stats.Fetched)
	run.FinishedAt = &finishedAt
	run.ItemsNew = stats.New
	run.ItemsUpdated = stats.Updated
	run.Status = domain.SyncStatusSuccess
	run.Details = &details
	if err := s.runs.Finish(ctx, run); err != nil {
		logger.Warn("failed to close sync run", "run_id", run.ID, "error", err)
	}

	logger.Info("task sync completed",
		"mode", run.Type,
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"publish_errors", stats.PublishErrors,
		"duration", stats.Duration,
	)

	return stats, nil
}

type changedTask struct {
	task  *domain.Task
	isNew bool
}

func (s *SyncService) process(
	ctx context.Context,
	fetched []domain.Task,
	full bool,
	syncedAt time.Time,
	stats *domain.SyncStats,
) ([]changedTask, error) {
	var changed []changedTask
	var newCount, updatedCount, unchangedCount int

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		changed = changed[:0]
		newCount, updatedCount, unchangedCount = 0, 0, 0

		ids := make([]string, len(fetched))
		for i, t := range fetched {
			ids[i] = t.ID
		}

		previous, err := s.tasks.GetUpdatedAt(txCtx, ids)
		if err != nil {
			return fmt.Errorf("%w: load stored tasks: %w", domain.ErrPersistence, err)
		}

		for i := range fetched {
			task := &fetched[i]
			task.LastSyncedAt = syncedAt

			created, err := s.upserter.Upsert(txCtx, task)
			if err != nil {
				return err
			}

			switch {
			case created:
				newCount++
				changed = append(changed, changedTask{task: task, isNew: true})
			case full || !sameInstant(previous[task.ID], task.UpdatedAt):
				updatedCount++
				changed = append(changed, changedTask{task: task})
			default:
				unchangedCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.New = newCount
	stats.Updated = updatedCount
	stats.Unchanged = unchangedCount
	return changed, nil
}

func (s *SyncService) publish(ctx context.Context, changed []changedTask, stats *domain.SyncStats) {
	if s.publisher == nil {
		return
	}
	for _, c := range changed {
		if err := s.publisher.PublishTask(ctx, c.task, c.isNew); err != nil {
			stats.PublishErrors++
			s.logger.Warn("failed to publish task", "task_id", c.task.ID, "error", err)
		}
	}
}

// finishFailed records the failure even when ctx was cancelled or timed out.
func (s *SyncService) finishFailed(ctx context.Context, run *domain.SyncRun, state syncState, cause error) {
	ctx = context.WithoutCancel(ctx)
	finishedAt := s.now().UTC()
	details := fmt.Sprintf("Error in %s: %v", state, cause)
	run.FinishedAt = &finishedAt
	run.Status = domain.SyncStatusFailure
	run.Details = &details
	if err := s.runs.Finish(ctx, run); err != nil {
		s.logger.Error("failed to record sync run failure",
			"run_id", run.ID,
			"state", stateFailed,
			"error", err,
		)
	}
}

// dedupeByID keeps one entry per task id: the last copy seen, at the position
// of the first.
func dedupeByID(tasks []domain.Task) []domain.Task {
	seen := make(map[string]int, len(tasks))
	out := tasks[:0:0]
	for _, t := range tasks {
		if i, ok := seen[t.ID]; ok {
			out[i] = t
			continue
		}
		seen[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UnixMilli() == b.UnixMilli()
}
