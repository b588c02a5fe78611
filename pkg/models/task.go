package models

import (
	"fmt"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string from user input or the wire.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), nil
	}
	return "", fmt.Errorf("invalid priority: %q", s)
}

// Rank orders priorities for sorting: high first, unknown values last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

type Task struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Completed     bool       `json:"completed"`
	Priority      Priority   `json:"priority"`
	DueDate       *time.Time `json:"due_date"`
	ParentID      *string    `json:"parent_id"`
	Children      []*Task    `json:"children,omitempty"`
	ChildrenCount int        `json:"children_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsRoot reports whether the task has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// Overdue reports whether the task has a due date in the past and is still
// open.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed
}

// DueToday reports whether the task's due date falls on the same UTC
// calendar day as now.
func (t *Task) DueToday(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	dy, dm, dd := t.DueDate.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return dy == ny && dm == nm && dd == nd
}

// EndOfDay normalizes a date-only due date to 23:59:59 so that "due today"
// covers the whole calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
