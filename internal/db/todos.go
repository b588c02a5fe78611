package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/taproot/pkg/models"
)

var (
	ErrNotFound       = errors.New("todo not found")
	ErrParentNotFound = errors.New("parent todo not found")
	ErrCycle          = errors.New("cannot move todo to its own descendant")
	ErrEmptyText      = errors.New("todo text must not be empty")
	ErrBadPriority    = errors.New("priority must be one of low, medium, high")
)

const todoColumns = `
	t.id, t.text, t.completed, t.priority, t.due_date, t.parent_id,
	t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM todos c WHERE c.parent_id = t.id) AS children_count
`

// CreateTodo inserts a new todo. If t.ID is empty, a new UUID is generated.
// Server-assigned fields (ID, CreatedAt, UpdatedAt) are written back into t.
func (db *DB) CreateTodo(ctx context.Context, t *models.Task) error {
	if strings.TrimSpace(t.Text) == "" {
		return ErrEmptyText
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if _, err := models.ParsePriority(string(t.Priority)); err != nil {
		return fmt.Errorf("%w: %q", ErrBadPriority, t.Priority)
	}
	if t.ParentID != nil {
		if err := db.requireTodo(ctx, *t.ParentID, ErrParentNotFound); err != nil {
			return err
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO todos (id, text, completed, priority, due_date, parent_id)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt string
	err := db.QueryRowContext(ctx, query,
		t.ID, t.Text, boolToInt(t.Completed), t.Priority, timeToNull(t.DueDate), t.ParentID,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	db.triggerChange(ctx)
	return nil
}

// GetTodo retrieves a single todo by ID without its children. Returns nil
// if no such todo exists.
func (db *DB) GetTodo(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + todoColumns + ` FROM todos t WHERE t.id = ?`
	t, err := scanTodo(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return t, nil
}

// ListTodos returns every todo as a flat list ordered by creation time.
func (db *DB) ListTodos(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + todoColumns + ` FROM todos t ORDER BY t.created_at ASC, t.id ASC`
	return db.queryTodos(ctx, query)
}

// ListChildren returns the direct children of a todo, flat.
func (db *DB) ListChildren(ctx context.Context, parentID string) ([]*models.Task, error) {
	if err := db.requireTodo(ctx, parentID, ErrParentNotFound); err != nil {
		return nil, err
	}
	query := `SELECT ` + todoColumns + ` FROM todos t WHERE t.parent_id = ? ORDER BY t.created_at ASC, t.id ASC`
	return db.queryTodos(ctx, query, parentID)
}

// TreeTodos returns root todos with their descendants nested under Children,
// preserving creation order among siblings. ChildrenCount is set at every
// level. A row whose parent_id references a missing todo is a data-integrity
// error, not something to repair silently.
func (db *DB) TreeTodos(ctx context.Context) ([]*models.Task, error) {
	all, err := db.ListTodos(ctx)
	if err != nil {
		return nil, err
	}
	return models.BuildTree(all)
}

// SubtreeTodo returns a single todo with its descendants nested.
func (db *DB) SubtreeTodo(ctx context.Context, id string) (*models.Task, error) {
	roots, err := db.TreeTodos(ctx)
	if err != nil {
		return nil, err
	}
	if t := findInTree(roots, id); t != nil {
		return t, nil
	}
	return nil, nil
}

// UpdateTodo applies a partial update. Nil request fields are left alone.
func (db *DB) UpdateTodo(ctx context.Context, id string, req models.UpdateRequest) (*models.Task, error) {
	if err := db.requireTodo(ctx, id, ErrNotFound); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')"}
	args := []any{}

	if req.Text != nil {
		if strings.TrimSpace(*req.Text) == "" {
			return nil, ErrEmptyText
		}
		sets = append(sets, "text = ?")
		args = append(args, *req.Text)
	}
	if req.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*req.Completed))
	}
	if req.Priority != nil {
		if _, err := models.ParsePriority(string(*req.Priority)); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadPriority, *req.Priority)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *req.Priority)
	}
	if req.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, timeToNull(req.DueDate))
	}
	if req.ParentID != nil {
		if err := db.checkReparent(ctx, id, req.ParentID); err != nil {
			return nil, err
		}
		sets = append(sets, "parent_id = ?")
		args = append(args, *req.ParentID)
	}

	query := "UPDATE todos SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	db.triggerChange(ctx)
	return db.GetTodo(ctx, id)
}

// SetCompleted flips a single todo's completion state. Descendant cascades
// are driven by the caller, one call per node.
func (db *DB) SetCompleted(ctx context.Context, id string, completed bool) (*models.Task, error) {
	query := `
		UPDATE todos
		SET completed = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query, boolToInt(completed), id)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle todo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	db.triggerChange(ctx)
	return db.GetTodo(ctx, id)
}

// SetCompletedSubtree marks a todo and every descendant with the given
// completion state. Used by the MCP surface where the cascade runs
// server-side in one call.
func (db *DB) SetCompletedSubtree(ctx context.Context, id string, completed bool) (*models.Task, error) {
	if err := db.requireTodo(ctx, id, ErrNotFound); err != nil {
		return nil, err
	}
	query := `
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM todos WHERE id = ?
			UNION ALL
			SELECT t.id FROM todos t JOIN subtree s ON t.parent_id = s.id
		)
		UPDATE todos
		SET completed = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id IN (SELECT id FROM subtree)
	`
	if _, err := db.ExecContext(ctx, query, id, boolToInt(completed)); err != nil {
		return nil, fmt.Errorf("failed to toggle subtree: %w", err)
	}

	db.triggerChange(ctx)
	return db.GetTodo(ctx, id)
}

// DeleteTodo deletes a todo; the schema's foreign key cascade removes all
// descendants with it.
func (db *DB) DeleteTodo(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	db.triggerChange(ctx)
	return nil
}

// MoveTodo reparents a todo. A nil newParentID moves it to root level.
func (db *DB) MoveTodo(ctx context.Context, id string, newParentID *string) (*models.Task, error) {
	if err := db.requireTodo(ctx, id, ErrNotFound); err != nil {
		return nil, err
	}
	if err := db.checkReparent(ctx, id, newParentID); err != nil {
		return nil, err
	}

	query := `
		UPDATE todos
		SET parent_id = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?
	`
	if _, err := db.ExecContext(ctx, query, newParentID, id); err != nil {
		return nil, fmt.Errorf("failed to move todo: %w", err)
	}

	db.triggerChange(ctx)
	return db.GetTodo(ctx, id)
}

// SearchTodos returns todos whose text contains the query,
// case-insensitively, as a flat list.
func (db *DB) SearchTodos(ctx context.Context, q string) ([]*models.Task, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos t
		WHERE t.text LIKE '%' || ? || '%'
		ORDER BY t.created_at ASC, t.id ASC
	`
	return db.queryTodos(ctx, query, q)
}

// TodoStats aggregates over every row in the table, descendants included.
// This is the server-global dashboard number; the client computes its own
// root-restricted stats separately.
func (db *DB) TodoStats(ctx context.Context, now time.Time) (*models.Stats, error) {
	stats := &models.Stats{ByPriority: map[models.Priority]int{
		models.PriorityLow:    0,
		models.PriorityMedium: 0,
		models.PriorityHigh:   0,
	}}

	nowStr := now.UTC().Format(time.RFC3339)
	today := now.UTC().Format("2006-01-02")

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(completed), 0),
			COALESCE(SUM(CASE WHEN due_date IS NOT NULL AND due_date < ? AND completed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN due_date IS NOT NULL AND substr(due_date, 1, 10) = ? THEN 1 ELSE 0 END), 0)
		FROM todos
	`
	err := db.QueryRowContext(ctx, query, nowStr, today).
		Scan(&stats.Total, &stats.Completed, &stats.Overdue, &stats.DueToday)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	stats.Pending = stats.Total - stats.Completed

	rows, err := db.QueryContext(ctx, `SELECT priority, COUNT(*) FROM todos GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by priority: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Priority
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, fmt.Errorf("failed to scan priority count: %w", err)
		}
		stats.ByPriority[p] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}

// IsDescendant reports whether candidateID sits somewhere below todoID by
// walking candidate's parent chain. Used to reject cyclic reparenting.
func (db *DB) IsDescendant(ctx context.Context, candidateID, todoID string) (bool, error) {
	cur := candidateID
	seen := map[string]bool{}
	for {
		if seen[cur] {
			return false, fmt.Errorf("parent chain contains a cycle at %s", cur)
		}
		seen[cur] = true

		var parent sql.NullString
		err := db.QueryRowContext(ctx, `SELECT parent_id FROM todos WHERE id = ?`, cur).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to walk parent chain: %w", err)
		}
		if !parent.Valid {
			return false, nil
		}
		if parent.String == todoID {
			return true, nil
		}
		cur = parent.String
	}
}

func (db *DB) checkReparent(ctx context.Context, id string, newParentID *string) error {
	if newParentID == nil {
		return nil
	}
	if *newParentID == id {
		return ErrCycle
	}
	if err := db.requireTodo(ctx, *newParentID, ErrParentNotFound); err != nil {
		return err
	}
	desc, err := db.IsDescendant(ctx, *newParentID, id)
	if err != nil {
		return err
	}
	if desc {
		return ErrCycle
	}
	return nil
}

func (db *DB) requireTodo(ctx context.Context, id string, missing error) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM todos WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	if err != nil {
		return fmt.Errorf("failed to look up todo: %w", err)
	}
	return nil
}

func (db *DB) queryTodos(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var todos []*models.Task
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return todos, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(s scanner) (*models.Task, error) {
	t := &models.Task{}
	var completed int
	var dueStr, parentID sql.NullString
	var createdStr, updatedStr string

	err := s.Scan(&t.ID, &t.Text, &completed, &t.Priority, &dueStr, &parentID,
		&createdStr, &updatedStr, &t.ChildrenCount)
	if err != nil {
		return nil, err
	}

	t.Completed = completed == 1
	if dueStr.Valid {
		due := parseTime(dueStr.String)
		t.DueDate = &due
	}
	if parentID.Valid {
		pid := parentID.String
		t.ParentID = &pid
	}
	t.CreatedAt = parseTime(createdStr)
	t.UpdatedAt = parseTime(updatedStr)
	return t, nil
}

func findInTree(roots []*models.Task, id string) *models.Task {
	for _, t := range roots {
		if t.ID == id {
			return t
		}
		if found := findInTree(t.Children, id); found != nil {
			return found
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
