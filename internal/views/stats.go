package views

import (
	"time"

	"github.com/ldi/taproot/pkg/models"
)

// Aggregate computes dashboard counts over the collection, restricted to
// tasks with no parent reference: descendants never count toward the root
// totals, at any nesting depth.
func Aggregate(tasks []*models.Task, now time.Time) *models.Stats {
	stats := &models.Stats{ByPriority: map[models.Priority]int{
		models.PriorityLow:    0,
		models.PriorityMedium: 0,
		models.PriorityHigh:   0,
	}}

	for _, t := range models.Flatten(tasks) {
		if !t.IsRoot() {
			continue
		}
		stats.Total++
		if t.Completed {
			stats.Completed++
		}
		if t.Overdue(now) {
			stats.Overdue++
		}
		if t.DueToday(now) {
			stats.DueToday++
		}
		stats.ByPriority[t.Priority]++
	}

	stats.Pending = stats.Total - stats.Completed
	return stats
}
