package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickup_collector/internal/domain"
)

func TestNewTaskMessage(t *testing.T) {
	client := "ACME"
	at := time.Date(2025, 3, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600))
	task := &domain.Task{
		ID:           "t1",
		ListID:       "L1",
		Name:         "Raport Marzec",
		IsParentRoot: true,
		TimeSpentMs:  1500,
		ClientName:   &client,
		AssigneeIDs:  []int64{1, 2},
	}

	msg := NewTaskMessage(task, RoutingKeyTaskCreated, at)

	assert.Equal(t, "task.created", msg.Event)
	assert.Equal(t, "t1", msg.TaskID)
	assert.Equal(t, []int64{1, 2}, msg.AssigneeIDs)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "ACME", decoded["client_name"])
	assert.Nil(t, decoded["parent_task_id"])
	assert.Equal(t, "2025-03-01T10:00:00Z", decoded["timestamp"])
}

func TestNewTaskMessage_EmptyAssigneesEncodeAsArray(t *testing.T) {
	msg := NewTaskMessage(&domain.Task{ID: "t1"}, RoutingKeyTaskUpdated, time.Now())

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"assignee_ids":[]`)
}

func TestNewAggregateMessage(t *testing.T) {
	calculated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewAggregateMessage(&domain.Aggregate{
		RootTaskID:     "R1",
		AssigneeUserID: 7,
		RootName:       "Root",
		TotalMinutes:   35,
		TotalSeconds:   4,
		CalculatedAt:   calculated,
	}, calculated)

	assert.Equal(t, RoutingKeyAggregateUpdated, msg.Event)
	assert.Equal(t, int64(35), msg.TotalMinutes)
	assert.Equal(t, 4, msg.TotalSeconds)
	assert.Equal(t, calculated, msg.CalculatedAt)
}
