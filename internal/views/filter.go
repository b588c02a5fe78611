// Package views derives the rendered list and dashboard numbers from a task
// snapshot. Everything here is a pure function over its inputs; nothing is
// cached across snapshot replacements.
package views

import (
	"time"

	"github.com/ldi/taproot/pkg/models"
)

// Filter returns the subset of top-level tasks matching the view's
// predicate. The tree is not flattened: a selected task keeps its nested
// children. ViewStats is not a list filter and returns the input unchanged;
// the caller renders aggregates instead.
func Filter(tasks []*models.Task, view models.View, now time.Time) []*models.Task {
	if view == models.ViewAll || view == models.ViewStats {
		return tasks
	}

	var out []*models.Task
	for _, t := range tasks {
		if matches(t, view, now) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t *models.Task, view models.View, now time.Time) bool {
	switch view {
	case models.ViewActive:
		return !t.Completed
	case models.ViewCompleted:
		return t.Completed
	case models.ViewOverdue:
		return t.Overdue(now)
	case models.ViewHighPriority:
		return t.Priority == models.PriorityHigh
	case models.ViewToday:
		return t.DueToday(now)
	}
	return true
}
