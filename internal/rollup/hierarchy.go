// Package rollup builds the stored task forest and computes subtree time totals.
package rollup

import (
	"sort"

	"clickup_collector/internal/domain"
)

// Hierarchy indexes tasks by id and by parent id.
type Hierarchy struct {
	tasks    map[string]*domain.Task
	children map[string][]string
}

// Build indexes every task. No assignee filtering happens here: a subtree
// must be complete regardless of who asks for it.
func Build(tasks []domain.Task) *Hierarchy {
	h := &Hierarchy{
		tasks:    make(map[string]*domain.Task, len(tasks)),
		children: make(map[string][]string),
	}
	for i := range tasks {
		t := &tasks[i]
		h.tasks[t.ID] = t
		if t.ParentID != nil {
			h.children[*t.ParentID] = append(h.children[*t.ParentID], t.ID)
		}
	}
	return h
}

func (h *Hierarchy) Task(id string) (*domain.Task, bool) {
	t, ok := h.tasks[id]
	return t, ok
}

func (h *Hierarchy) Children(id string) []string {
	return h.children[id]
}

func (h *Hierarchy) Len() int {
	return len(h.tasks)
}

// Roots returns the tasks flagged as roots, optionally limited to one list,
// ordered by id.
func (h *Hierarchy) Roots(listID *string) []*domain.Task {
	var roots []*domain.Task
	for _, t := range h.tasks {
		if !t.IsParentRoot {
			continue
		}
		if listID != nil && t.ListID != *listID {
			continue
		}
		roots = append(roots, t)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })
	return roots
}
