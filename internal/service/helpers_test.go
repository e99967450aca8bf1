package service

import (
	"context"
	"time"

	"go.uber.org/mock/gomock"

	"clickup_collector/internal/service/mocks"
)

// stepClock returns start on the first call and advances by step on each call after.
type stepClock struct {
	next time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

func expectTransaction(tm *mocks.MockTransactionManager) *gomock.Call {
	return tm.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
