package rollup

import "time"

// Total is the rolled-up time of one subtree.
type Total struct {
	Milliseconds int64
	// Cycles lists the task ids at which descent stopped because the id was
	// already on the current path.
	Cycles []string
}

// TotalTime sums the own time of rootID and all of its descendants.
//
// The visited set is local to this call and tracks only the current descent
// path: a node is removed again when its subtree is done, so shared structure
// reached from several ancestors is counted each time while a real cycle
// contributes nothing past the repeated node.
func (h *Hierarchy) TotalTime(rootID string) Total {
	var total Total
	onPath := make(map[string]struct{})
	total.Milliseconds = h.walk(rootID, onPath, &total.Cycles)
	return total
}

func (h *Hierarchy) walk(id string, onPath map[string]struct{}, cycles *[]string) int64 {
	if _, seen := onPath[id]; seen {
		*cycles = append(*cycles, id)
		return 0
	}

	task, ok := h.tasks[id]
	if !ok {
		return 0
	}

	onPath[id] = struct{}{}
	defer delete(onPath, id)

	sum := task.TimeSpentMs
	for _, child := range h.children[id] {
		sum += h.walk(child, onPath, cycles)
	}
	return sum
}

// Split converts milliseconds into whole minutes and a rounded remainder of
// seconds in 0..59. A remainder that rounds up to a full minute is carried.
func Split(ms int64) (minutes int64, seconds int) {
	if ms <= 0 {
		return 0, 0
	}
	minutes = ms / int64(time.Minute/time.Millisecond)
	rem := ms % int64(time.Minute/time.Millisecond)
	seconds = int((rem + 500) / 1000)
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return minutes, seconds
}
