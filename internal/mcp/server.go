package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ldi/taproot/internal/db"
	"github.com/ldi/taproot/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server exposing the todo store as tools.
func NewServer(database *db.DB) *server.MCPServer {
	s := server.NewMCPServer("Taproot", "0.1.0")

	s.AddTool(mcp.NewTool("create_todo",
		mcp.WithDescription("Create a new todo, optionally as a child of an existing one."),
		mcp.WithString("text", mcp.Description("Todo text"), mcp.Required()),
		mcp.WithString("priority", mcp.Description("Priority (low|medium|high, defaults to medium)")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD, normalized to end of day)")),
		mcp.WithString("parent_id", mcp.Description("Parent todo ID for nested todos")),
	), createTodoHandler(database))

	s.AddTool(mcp.NewTool("update_todo",
		mcp.WithDescription("Update an existing todo's fields."),
		mcp.WithString("id", mcp.Description("Todo ID"), mcp.Required()),
		mcp.WithString("text", mcp.Description("New text")),
		mcp.WithString("priority", mcp.Description("New priority (low|medium|high)")),
		mcp.WithString("due_date", mcp.Description("New due date (YYYY-MM-DD)")),
	), updateTodoHandler(database))

	s.AddTool(mcp.NewTool("delete_todo",
		mcp.WithDescription("Delete a todo and all of its descendants."),
		mcp.WithString("id", mcp.Description("Todo ID"), mcp.Required()),
	), deleteTodoHandler(database))

	s.AddTool(mcp.NewTool("toggle_todo",
		mcp.WithDescription("Set a todo's completion state. Completing a todo also completes its whole subtree."),
		mcp.WithString("id", mcp.Description("Todo ID"), mcp.Required()),
		mcp.WithBoolean("completed", mcp.Description("New completion state"), mcp.Required()),
	), toggleTodoHandler(database))

	s.AddTool(mcp.NewTool("move_todo",
		mcp.WithDescription("Move a todo under a new parent, or to root level."),
		mcp.WithString("id", mcp.Description("Todo ID"), mcp.Required()),
		mcp.WithString("new_parent_id", mcp.Description("New parent ID (omit for root level)")),
	), moveTodoHandler(database))

	s.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List all todos as a nested tree."),
	), listTodosHandler(database))

	s.AddTool(mcp.NewTool("search_todos",
		mcp.WithDescription("Search todos by text content."),
		mcp.WithString("q", mcp.Description("Search query"), mcp.Required()),
	), searchTodosHandler(database))

	s.AddTool(mcp.NewTool("todo_stats",
		mcp.WithDescription("Get aggregate counts over all todos."),
	), todoStatsHandler(database))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createTodoHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t := &models.Task{
			Text:     mcp.ParseString(request, "text", ""),
			Priority: models.Priority(mcp.ParseString(request, "priority", string(models.PriorityMedium))),
		}
		if due := mcp.ParseString(request, "due_date", ""); due != "" {
			parsed, err := parseDueDate(due)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			t.DueDate = parsed
		}
		if parent := mcp.ParseString(request, "parent_id", ""); parent != "" {
			t.ParentID = &parent
		}

		if err := database.CreateTodo(ctx, t); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func updateTodoHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		var req models.UpdateRequest
		args, _ := request.Params.Arguments.(map[string]any)
		if text, ok := args["text"].(string); ok {
			req.Text = &text
		}
		if priority, ok := args["priority"].(string); ok {
			p, err := models.ParsePriority(priority)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			req.Priority = &p
		}
		if due, ok := args["due_date"].(string); ok {
			parsed, err := parseDueDate(due)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			req.DueDate = parsed
		}

		t, err := database.UpdateTodo(ctx, id, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func deleteTodoHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		if err := database.DeleteTodo(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Todo %s deleted (descendants included)", id)), nil
	}
}

func toggleTodoHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		completed := mcp.ParseBoolean(request, "completed", true)

		var t *models.Task
		var err error
		if completed {
			// Completing cascades to the whole subtree in one call here;
			// the HTTP client drives the same cascade node by node.
			t, err = database.SetCompletedSubtree(ctx, id, true)
		} else {
			t, err = database.SetCompleted(ctx, id, false)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func moveTodoHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		var newParentID *string
		if parent := mcp.ParseString(request, "new_parent_id", ""); parent != "" {
			newParentID = &parent
		}

		t, err := database.MoveTodo(ctx, id, newParentID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(t)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listTodosHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		todos, err := database.TreeTodos(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]any{"todos": todos})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func searchTodosHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := mcp.ParseString(request, "q", "")
		if q == "" {
			return mcp.NewToolResultError("search query must not be empty"), nil
		}

		todos, err := database.SearchTodos(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]any{"todos": todos})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func todoStatsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := database.TodoStats(ctx, time.Now())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(stats)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func parseDueDate(s string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	eod := models.EndOfDay(t.UTC())
	return &eod, nil
}
