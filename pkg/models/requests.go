package models

import "time"

// CreateRequest is the POST /api/todos/ body.
type CreateRequest struct {
	Text     string     `json:"text"`
	Priority Priority   `json:"priority,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	ParentID *string    `json:"parent_id,omitempty"`
}

// UpdateRequest is the PUT /api/todos/{id} body. Nil fields are left
// untouched by the server.
type UpdateRequest struct {
	Text      *string    `json:"text,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	ParentID  *string    `json:"parent_id,omitempty"`
}

// ToggleRequest is the PATCH /api/todos/{id}/toggle body.
type ToggleRequest struct {
	Completed bool `json:"completed"`
}

// MoveRequest is the POST /api/todos/{id}/move body. A nil NewParentID
// moves the task to root level.
type MoveRequest struct {
	NewParentID *string `json:"new_parent_id"`
}
