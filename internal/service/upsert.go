package service

import (
	"context"
	"fmt"
	"sort"

	"clickup_collector/internal/domain"
)

// Upserter merges one fetched task into the store and reconciles its
// assignee set with the fetched snapshot.
type Upserter struct {
	tasks       TaskStore
	assignments AssignmentStore
	users       UserStore
}

func NewUpserter(tasks TaskStore, assignments AssignmentStore, users UserStore) *Upserter {
	return &Upserter{
		tasks:       tasks,
		assignments: assignments,
		users:       users,
	}
}

// Upsert writes the task and replaces its stored assignees with
// task.AssigneeIDs. It reports whether the task row was newly created.
// Applying the same snapshot twice leaves the store unchanged.
func (u *Upserter) Upsert(ctx context.Context, task *domain.Task) (bool, error) {
	created, err := u.tasks.Upsert(ctx, task)
	if err != nil {
		return false, fmt.Errorf("%w: upsert task %s: %w", domain.ErrPersistence, task.ID, err)
	}

	if err := u.reconcileAssignees(ctx, task.ID, task.AssigneeIDs); err != nil {
		return false, err
	}

	return created, nil
}

func (u *Upserter) reconcileAssignees(ctx context.Context, taskID string, fetched []int64) error {
	current, err := u.assignments.ListUserIDs(ctx, taskID)
	if err != nil {
		return fmt.Errorf("%w: list assignees of %s: %w", domain.ErrPersistence, taskID, err)
	}

	removed, added := diffAssignees(current, fetched)

	if len(removed) > 0 {
		if err := u.assignments.Remove(ctx, taskID, removed); err != nil {
			return fmt.Errorf("%w: remove assignees of %s: %w", domain.ErrPersistence, taskID, err)
		}
	}

	if len(added) > 0 {
		if err := u.users.EnsureExist(ctx, added); err != nil {
			return fmt.Errorf("%w: ensure users for %s: %w", domain.ErrPersistence, taskID, err)
		}
		if err := u.assignments.Add(ctx, taskID, added); err != nil {
			return fmt.Errorf("%w: add assignees of %s: %w", domain.ErrPersistence, taskID, err)
		}
	}

	return nil
}

// diffAssignees returns current minus fetched and fetched minus current,
// both sorted and free of duplicates.
func diffAssignees(current, fetched []int64) (removed, added []int64) {
	cur := toSet(current)
	next := toSet(fetched)

	for id := range cur {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	for id := range next {
		if _, ok := cur[id]; !ok {
			added = append(added, id)
		}
	}

	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	return removed, added
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
