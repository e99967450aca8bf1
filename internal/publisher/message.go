package publisher

import (
	"time"

	"clickup_collector/internal/domain"
)

type TaskMessage struct {
	Event          string     `json:"event"`
	TaskID         string     `json:"task_id"`
	ListID         string     `json:"list_id"`
	Name           string     `json:"name"`
	ParentTaskID   *string    `json:"parent_task_id"`
	IsParentRoot   bool       `json:"is_parent_root"`
	TimeSpentMs    int64      `json:"time_spent_ms"`
	ClientName     *string    `json:"client_name"`
	ExtractedMonth *string    `json:"extracted_month"`
	Status         string     `json:"status"`
	UpdatedAt      *time.Time `json:"updated_at"`
	Archived       bool       `json:"archived"`
	AssigneeIDs    []int64    `json:"assignee_ids"`
	Timestamp      time.Time  `json:"timestamp"`
}

func NewTaskMessage(task *domain.Task, event string, at time.Time) TaskMessage {
	assignees := task.AssigneeIDs
	if assignees == nil {
		assignees = []int64{}
	}
	return TaskMessage{
		Event:          event,
		TaskID:         task.ID,
		ListID:         task.ListID,
		Name:           task.Name,
		ParentTaskID:   task.ParentID,
		IsParentRoot:   task.IsParentRoot,
		TimeSpentMs:    task.TimeSpentMs,
		ClientName:     task.ClientName,
		ExtractedMonth: task.ExtractedMonth,
		Status:         task.Status,
		UpdatedAt:      task.UpdatedAt,
		Archived:       task.Archived,
		AssigneeIDs:    assignees,
		Timestamp:      at.UTC(),
	}
}

type AggregateMessage struct {
	Event          string    `json:"event"`
	RootTaskID     string    `json:"root_task_id"`
	AssigneeUserID int64     `json:"assignee_user_id"`
	RootName       string    `json:"root_name"`
	ClientName     *string   `json:"client_name"`
	ExtractedMonth *string   `json:"extracted_month"`
	TotalMinutes   int64     `json:"total_minutes"`
	TotalSeconds   int       `json:"total_seconds"`
	CalculatedAt   time.Time `json:"calculated_at"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewAggregateMessage(a *domain.Aggregate, at time.Time) AggregateMessage {
	return AggregateMessage{
		Event:          RoutingKeyAggregateUpdated,
		RootTaskID:     a.RootTaskID,
		AssigneeUserID: a.AssigneeUserID,
		RootName:       a.RootName,
		ClientName:     a.ClientName,
		ExtractedMonth: a.ExtractedMonth,
		TotalMinutes:   a.TotalMinutes,
		TotalSeconds:   a.TotalSeconds,
		CalculatedAt:   a.CalculatedAt,
		Timestamp:      at.UTC(),
	}
}
