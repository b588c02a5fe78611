package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ldi/taproot/internal/db"
	"github.com/ldi/taproot/pkg/models"
)

type Server struct {
	db     *db.DB
	server *http.Server
}

func NewServer(database *db.DB) *Server {
	return &Server{db: database}
}

// Handler returns the API routing table. Split out from Start so tests can
// mount it on an httptest.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/todos/", s.handleList)
	mux.HandleFunc("POST /api/todos/", s.handleCreate)
	mux.HandleFunc("GET /api/todos/stats/{$}", s.handleStats)
	mux.HandleFunc("GET /api/todos/search/{$}", s.handleSearch)
	mux.HandleFunc("GET /api/todos/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/todos/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/todos/{id}", s.handleDelete)
	mux.HandleFunc("PATCH /api/todos/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/todos/{id}/move", s.handleMove)
	mux.HandleFunc("GET /api/todos/{id}/children", s.handleChildren)

	return mux
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	nested := r.URL.Query().Get("nested") != "false"

	var todos []*models.Task
	var err error
	if nested {
		todos, err = s.db.TreeTodos(r.Context())
	} else {
		todos, err = s.db.ListTodos(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if todos == nil {
		todos = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t := &models.Task{
		Text:     req.Text,
		Priority: req.Priority,
		DueDate:  req.DueDate,
		ParentID: req.ParentID,
	}
	if err := s.db.CreateTodo(r.Context(), t); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.db.SubtreeTodo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, db.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := s.db.UpdateTodo(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteTodo(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted successfully"})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req models.ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := s.db.SetCompleted(r.Context(), r.PathValue("id"), req.Completed)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req models.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := s.db.MoveTodo(r.Context(), r.PathValue("id"), req.NewParentID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.db.ListChildren(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if children == nil {
		children = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.New("query parameter q is required"))
		return
	}

	todos, err := s.db.SearchTodos(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if todos == nil {
		todos = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.TodoStats(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrParentNotFound),
		errors.Is(err, db.ErrCycle),
		errors.Is(err, db.ErrEmptyText),
		errors.Is(err, db.ErrBadPriority):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError emits the API error body: {"error": msg, "status_code": n}.
func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":       err.Error(),
		"status_code": status,
	})
}
