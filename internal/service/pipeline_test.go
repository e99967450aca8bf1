package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickup_collector/internal/domain"
)

type fakeUserSyncer struct {
	calls int
	err   error
}

func (f *fakeUserSyncer) Sync(context.Context) (*domain.UserSyncStats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UserSyncStats{}, nil
}

type fakeTaskSyncer struct {
	requests []SyncRequest
	err      error
}

func (f *fakeTaskSyncer) Sync(_ context.Context, req SyncRequest) (*domain.SyncStats, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SyncStats{}, nil
}

type fakeAggregateGenerator struct {
	requests []AggregateRequest
	err      error
}

func (f *fakeAggregateGenerator) Generate(_ context.Context, req AggregateRequest) (*domain.AggregateStats, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AggregateStats{}, nil
}

func TestPipeline_RunsAllSteps(t *testing.T) {
	users := &fakeUserSyncer{}
	tasks := &fakeTaskSyncer{}
	aggregates := &fakeAggregateGenerator{}
	p := NewPipeline(users, tasks, aggregates, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Run(context.Background(), "L1", true)

	require.NoError(t, err)
	assert.Equal(t, 1, users.calls)
	assert.Equal(t, []SyncRequest{{ListID: "L1", FullSync: true, IncludeArchived: true}}, tasks.requests)
	require.Len(t, aggregates.requests, 1)
	require.NotNil(t, aggregates.requests[0].ListID)
	assert.Equal(t, "L1", *aggregates.requests[0].ListID)
	assert.Nil(t, aggregates.requests[0].UserID)
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	taskErr := errors.Join(domain.ErrExternalAPI, errors.New("timeout"))
	users := &fakeUserSyncer{}
	tasks := &fakeTaskSyncer{err: taskErr}
	aggregates := &fakeAggregateGenerator{}
	p := NewPipeline(users, tasks, aggregates, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Run(context.Background(), "L1", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExternalAPI))
	assert.Contains(t, err.Error(), "tasks step")
	assert.Empty(t, aggregates.requests)
}

func TestPipeline_UsersFailureSkipsTasks(t *testing.T) {
	users := &fakeUserSyncer{err: errors.New("boom")}
	tasks := &fakeTaskSyncer{}
	p := NewPipeline(users, tasks, &fakeAggregateGenerator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Run(context.Background(), "L1", false)

	require.Error(t, err)
	assert.Empty(t, tasks.requests)
}

func TestPipeline_RequiresListID(t *testing.T) {
	users := &fakeUserSyncer{}
	p := NewPipeline(users, &fakeTaskSyncer{}, &fakeAggregateGenerator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := p.Run(context.Background(), "", false)

	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Equal(t, 0, users.calls)
}
