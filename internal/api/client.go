// Package api is the HTTP client for the remote todo store. It speaks the
// /api/todos wire format and maps failures onto the NetworkError /
// RequestError taxonomy consumed by the store.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ldi/taproot/pkg/models"
)

type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for the given server base URL, e.g.
// "http://localhost:8000". The /api/todos prefix is appended here.
func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/") + "/api/todos",
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// List fetches the full collection, nested by default.
func (c *Client) List(ctx context.Context) ([]*models.Task, error) {
	var todos []*models.Task
	if err := c.do(ctx, http.MethodGet, "/", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Get fetches a single todo with its nested children.
func (c *Client) Get(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodGet, "/"+id, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create posts a new todo and returns it as reported by the server.
func (c *Client) Create(ctx context.Context, req models.CreateRequest) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPost, "/", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update sends a partial field update.
func (c *Client) Update(ctx context.Context, id string, req models.UpdateRequest) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPut, "/"+id, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a todo; the server cascades to descendants.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/"+id, nil, nil)
}

// Toggle sets a single todo's completion state.
func (c *Client) Toggle(ctx context.Context, id string, completed bool) (*models.Task, error) {
	var t models.Task
	req := models.ToggleRequest{Completed: completed}
	if err := c.do(ctx, http.MethodPatch, "/"+id+"/toggle", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Move reparents a todo; nil newParentID moves it to root level.
func (c *Client) Move(ctx context.Context, id string, newParentID *string) (*models.Task, error) {
	var t models.Task
	req := models.MoveRequest{NewParentID: newParentID}
	if err := c.do(ctx, http.MethodPost, "/"+id+"/move", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Children fetches a todo's direct children as a flat list.
func (c *Client) Children(ctx context.Context, id string) ([]*models.Task, error) {
	var todos []*models.Task
	if err := c.do(ctx, http.MethodGet, "/"+id+"/children", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Search runs a remote full-text search over todo text.
func (c *Client) Search(ctx context.Context, query string) ([]*models.Task, error) {
	var todos []*models.Task
	path := "/search/?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Stats fetches the server-side pre-aggregated stats.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	if err := c.do(ctx, http.MethodGet, "/stats/", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Status: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readErrorBody extracts the message from the {"error": ...} body, falling
// back to the raw text when the body is not the expected shape.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
