package tui

import (
	"fmt"
	"time"

	"github.com/ldi/taproot/pkg/models"
)

func validView(v models.View) bool {
	for _, known := range models.Views() {
		if v == known {
			return true
		}
	}
	return false
}

func nextView(v models.View, step int) models.View {
	all := models.Views()
	for i, known := range all {
		if known == v {
			return all[(i+step+len(all))%len(all)]
		}
	}
	return all[0]
}

var sortCycle = []models.SortKey{
	models.SortDefault,
	models.SortCreated,
	models.SortUpdated,
	models.SortPriority,
	models.SortDue,
	models.SortCompleted,
}

func nextSortKey(k models.SortKey) models.SortKey {
	for i, known := range sortCycle {
		if known == k {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return models.SortDefault
}

func nextPriority(p models.Priority) models.Priority {
	switch p {
	case models.PriorityLow:
		return models.PriorityMedium
	case models.PriorityMedium:
		return models.PriorityHigh
	default:
		return models.PriorityLow
	}
}

// parseDueInput accepts a bare date or a full RFC3339 timestamp. Bare dates
// become end of day so a todo due "today" is not overdue at breakfast.
func parseDueInput(value string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	eod := models.EndOfDay(day)
	return &eod, nil
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
