package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clickup_collector/internal/domain"
)

// DefaultAllowedRoles are the workspace roles whose members are stored:
// owner, admin and member. Guests are skipped.
var DefaultAllowedRoles = []int{1, 2, 3}

type UserSyncService struct {
	source       TaskSource
	users        UserStore
	runs         SyncRunStore
	txManager    TransactionManager
	allowedRoles map[int]struct{}
	logger       *slog.Logger
	now          func() time.Time
}

func NewUserSyncService(
	source TaskSource,
	users UserStore,
	runs SyncRunStore,
	txManager TransactionManager,
	allowedRoles []int,
	logger *slog.Logger,
) *UserSyncService {
	if len(allowedRoles) == 0 {
		allowedRoles = DefaultAllowedRoles
	}
	roles := make(map[int]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		roles[r] = struct{}{}
	}
	return &UserSyncService{
		source:       source,
		users:        users,
		runs:         runs,
		txManager:    txManager,
		allowedRoles: roles,
		logger:       logger.With("component", "user_sync"),
		now:          time.Now,
	}
}

func (s *UserSyncService) Sync(ctx context.Context) (stats *domain.UserSyncStats, err error) {
	startedAt := s.now().UTC()
	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		Type:      domain.SyncTypeUsers,
		StartedAt: startedAt,
		Status:    domain.SyncStatusPending,
	}
	if err := s.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("%w: open sync run: %w", domain.ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			s.logger.Error("user sync failed", "error", err)
			finishedAt := s.now().UTC()
			details := fmt.Sprintf("Error: %v", err)
			run.FinishedAt = &finishedAt
			run.Status = domain.SyncStatusFailure
			run.Details = &details
			if ferr := s.runs.Finish(context.WithoutCancel(ctx), run); ferr != nil {
				s.logger.Error("failed to record sync run failure", "run_id", run.ID, "error", ferr)
			}
			stats = nil
		}
	}()

	fetched, err := s.source.FetchUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}

	stats = &domain.UserSyncStats{Fetched: len(fetched)}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		stats.New, stats.Updated, stats.Skipped = 0, 0, 0

		for i := range fetched {
			user := &fetched[i]
			if !s.allowed(user.Role) {
				stats.Skipped++
				s.logger.Info("skipping user with disallowed role",
					"user_id", user.ID,
					"username", user.Username,
					"role", user.Role,
				)
				continue
			}

			if user.Username == "" {
				user.Username = PlaceholderUsername(user.ID)
			}

			existing, err := s.users.Get(txCtx, user.ID)
			if err != nil {
				return fmt.Errorf("%w: get user %d: %w", domain.ErrPersistence, user.ID, err)
			}

			if err := s.users.Upsert(txCtx, user); err != nil {
				return fmt.Errorf("%w: upsert user %d: %w", domain.ErrPersistence, user.ID, err)
			}

			switch {
			case existing == nil:
				stats.New++
			case userChanged(existing, user):
				stats.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.Duration = s.now().Sub(startedAt)

	finishedAt := s.now().UTC()
	details := fmt.Sprintf("Fetched %d users, skipped %d.", stats.Fetched, stats.Skipped)
	if stats.Fetched == 0 {
		details = "No users found in teams."
	}
	run.FinishedAt = &finishedAt
	run.ItemsNew = stats.New
	run.ItemsUpdated = stats.Updated
	run.Status = domain.SyncStatusSuccess
	run.Details = &details
	if err := s.runs.Finish(ctx, run); err != nil {
		s.logger.Warn("failed to close sync run", "run_id", run.ID, "error", err)
	}

	s.logger.Info("user sync completed",
		"fetched", stats.Fetched,
		"new", stats.New,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *UserSyncService) allowed(role *int) bool {
	if role == nil {
		return false
	}
	_, ok := s.allowedRoles[*role]
	return ok
}

// PlaceholderUsername names a user whose profile is not known.
func PlaceholderUsername(id int64) string {
	return fmt.Sprintf("UnknownUser_%d", id)
}

func userChanged(old, cur *domain.User) bool {
	return old.Username != cur.Username ||
		!equalStringPtr(old.Email, cur.Email) ||
		!equalIntPtr(old.Role, cur.Role) ||
		old.IsActive != cur.IsActive
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
