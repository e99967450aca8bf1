package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"clickup_collector/internal/domain"
	"clickup_collector/internal/service/mocks"
)

type UserSyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockTaskSource
	users     *mocks.MockUserStore
	runs      *mocks.MockSyncRunStore
	txManager *mocks.MockTransactionManager

	service *UserSyncService
}

func (s *UserSyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockTaskSource(s.ctrl)
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.runs = mocks.NewMockSyncRunStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewUserSyncService(s.source, s.users, s.runs, s.txManager, nil, logger)
	clock := &stepClock{next: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), step: time.Second}
	s.service.now = clock.Now
}

func (s *UserSyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestUserSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(UserSyncServiceTestSuite))
}

func intPtr(i int) *int { return &i }

func (s *UserSyncServiceTestSuite) TestSync_CountsNewUpdatedAndSkipped() {
	ctx := context.Background()
	fetched := []domain.User{
		{ID: 1, Username: "anna", Role: intPtr(1), IsActive: true},
		{ID: 2, Username: "bartek", Email: strPtr("b@example.com"), Role: intPtr(3), IsActive: true},
		{ID: 3, Username: "carol", Role: intPtr(3), IsActive: true},
		{ID: 4, Username: "guest", Role: intPtr(4), IsActive: true},
		{ID: 5, Username: "norole", IsActive: true},
	}

	s.runs.EXPECT().Start(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, run *domain.SyncRun) error {
		s.Equal(domain.SyncTypeUsers, run.Type)
		s.Nil(run.ListID)
		return nil
	})
	s.source.EXPECT().FetchUsers(ctx).Return(fetched, nil)
	expectTransaction(s.txManager)

	s.users.EXPECT().Get(ctx, int64(1)).Return(nil, nil)
	s.users.EXPECT().Get(ctx, int64(2)).Return(&domain.User{ID: 2, Username: "bartek", Role: intPtr(3), IsActive: true}, nil)
	s.users.EXPECT().Get(ctx, int64(3)).Return(&domain.User{ID: 3, Username: "carol", Role: intPtr(3), IsActive: true}, nil)
	s.users.EXPECT().Upsert(ctx, gomock.Any()).Return(nil).Times(3)

	s.runs.EXPECT().Finish(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, run *domain.SyncRun) error {
		s.Equal(domain.SyncStatusSuccess, run.Status)
		s.Equal(1, run.ItemsNew)
		s.Equal(1, run.ItemsUpdated)
		return nil
	})

	stats, err := s.service.Sync(ctx)

	s.Require().NoError(err)
	s.Equal(5, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(1, stats.Updated)
	s.Equal(2, stats.Skipped)
}

func (s *UserSyncServiceTestSuite) TestSync_EmptyUsernameGetsPlaceholder() {
	ctx := context.Background()

	s.runs.EXPECT().Start(ctx, gomock.Any()).Return(nil)
	s.source.EXPECT().FetchUsers(ctx).Return([]domain.User{{ID: 42, Role: intPtr(2), IsActive: true}}, nil)
	expectTransaction(s.txManager)
	s.users.EXPECT().Get(ctx, int64(42)).Return(nil, nil)
	s.users.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, u *domain.User) error {
		s.Equal("UnknownUser_42", u.Username)
		return nil
	})
	s.runs.EXPECT().Finish(ctx, gomock.Any()).Return(nil)

	stats, err := s.service.Sync(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.New)
}

func (s *UserSyncServiceTestSuite) TestSync_FetchFailure() {
	ctx := context.Background()
	fetchErr := errors.Join(domain.ErrExternalAPI, errors.New("status 401"))

	s.runs.EXPECT().Start(ctx, gomock.Any()).Return(nil)
	s.source.EXPECT().FetchUsers(ctx).Return(nil, fetchErr)
	s.runs.EXPECT().Finish(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, run *domain.SyncRun) error {
		s.Equal(domain.SyncStatusFailure, run.Status)
		return nil
	})

	stats, err := s.service.Sync(ctx)

	s.Nil(stats)
	s.True(errors.Is(err, domain.ErrExternalAPI))
}

func (s *UserSyncServiceTestSuite) TestSync_CancelledRunStillRecordsFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.runs.EXPECT().Start(ctx, gomock.Any()).Return(nil)
	s.source.EXPECT().FetchUsers(ctx).DoAndReturn(func(ctx context.Context) ([]domain.User, error) {
		cancel()
		return nil, ctx.Err()
	})
	s.runs.EXPECT().Finish(gomock.Any(), gomock.Any()).DoAndReturn(func(finishCtx context.Context, run *domain.SyncRun) error {
		s.NoError(finishCtx.Err())
		s.Equal(domain.SyncStatusFailure, run.Status)
		return nil
	})

	stats, err := s.service.Sync(ctx)

	s.Nil(stats)
	s.True(errors.Is(err, context.Canceled))
}

func (s *UserSyncServiceTestSuite) TestSync_CustomRoles() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewUserSyncService(s.source, s.users, s.runs, s.txManager, []int{4}, logger)

	s.runs.EXPECT().Start(ctx, gomock.Any()).Return(nil)
	s.source.EXPECT().FetchUsers(ctx).Return([]domain.User{
		{ID: 1, Username: "owner", Role: intPtr(1)},
		{ID: 4, Username: "guest", Role: intPtr(4)},
	}, nil)
	expectTransaction(s.txManager)
	s.users.EXPECT().Get(ctx, int64(4)).Return(nil, nil)
	s.users.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)
	s.runs.EXPECT().Finish(ctx, gomock.Any()).Return(nil)

	stats, err := svc.Sync(ctx)

	s.Require().NoError(err)
	s.Equal(1, stats.New)
	s.Equal(1, stats.Skipped)
}
