package views

import (
	"sort"

	"github.com/ldi/taproot/pkg/models"
)

// Sort orders the top-level list for rendering and returns a new slice; the
// input and every subtree's internal order are left untouched. The sort is
// stable: ties keep their original relative order.
//
// SortDesc reverses the ordered result as a final pass, with two carve-outs:
// SortDefault never reorders, and tasks without a due date always sort after
// all dated tasks under SortDue, so only the dated prefix is reversed.
func Sort(tasks []*models.Task, key models.SortKey, dir models.SortDirection) []*models.Task {
	out := make([]*models.Task, len(tasks))
	copy(out, tasks)

	switch key {
	case models.SortDefault:
		return out
	case models.SortDue:
		return sortByDue(out, dir)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j], key)
	})
	if dir == models.SortDesc {
		reverse(out)
	}
	return out
}

func less(a, b *models.Task, key models.SortKey) bool {
	switch key {
	case models.SortCreated:
		return a.CreatedAt.Before(b.CreatedAt)
	case models.SortUpdated:
		// Most recently updated first is the base order for this key.
		return a.UpdatedAt.After(b.UpdatedAt)
	case models.SortPriority:
		return a.Priority.Rank() < b.Priority.Rank()
	case models.SortCompleted:
		return !a.Completed && b.Completed
	}
	return false
}

func sortByDue(tasks []*models.Task, dir models.SortDirection) []*models.Task {
	var dated, undated []*models.Task
	for _, t := range tasks {
		if t.DueDate != nil {
			dated = append(dated, t)
		} else {
			undated = append(undated, t)
		}
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].DueDate.Before(*dated[j].DueDate)
	})
	if dir == models.SortDesc {
		reverse(dated)
	}
	return append(dated, undated...)
}

func reverse(tasks []*models.Task) {
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}
}
