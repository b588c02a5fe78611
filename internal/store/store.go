// Package store holds the client's authoritative in-memory copy of the todo
// collection. Every mutation goes through the remote API and is followed by
// a full reload, so the snapshot never drifts from the server for more than
// one round trip. Consumers read whole snapshots and are notified on every
// replacement; they never observe a partially-applied change.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ldi/taproot/pkg/models"
)

// Remote is the slice of the API client the store depends on.
type Remote interface {
	List(ctx context.Context) ([]*models.Task, error)
	Create(ctx context.Context, req models.CreateRequest) (*models.Task, error)
	Update(ctx context.Context, id string, req models.UpdateRequest) (*models.Task, error)
	Delete(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string, completed bool) (*models.Task, error)
	Move(ctx context.Context, id string, newParentID *string) (*models.Task, error)
	Search(ctx context.Context, query string) ([]*models.Task, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type Store struct {
	remote Remote

	mu      sync.RWMutex
	tasks   []*models.Task          // current snapshot, roots with nested children
	index   map[string]*models.Task // id -> task, every node in the snapshot
	lastErr error

	subsMu sync.Mutex
	subs   []func()
}

func NewStore(remote Remote) *Store {
	return &Store{
		remote: remote,
		index:  map[string]*models.Task{},
	}
}

// Subscribe registers a callback invoked after every snapshot replacement.
func (s *Store) Subscribe(fn func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify() {
	s.subsMu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Tasks returns the current snapshot. Callers must treat it as read-only.
func (s *Store) Tasks() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks
}

// Find looks a task up by id anywhere in the snapshot.
func (s *Store) Find(id string) *models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[id]
}

// LastError returns the most recent operation failure, for the status line.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Load fetches the full collection and replaces the snapshot atomically.
// The server may return the collection nested or flat; nesting is rebuilt
// from parent_id either way. On any failure the previous snapshot is
// retained so a transient blip does not blank the view.
func (s *Store) Load(ctx context.Context) error {
	got, err := s.remote.List(ctx)
	if err != nil {
		s.setErr(err)
		return err
	}

	roots, err := models.BuildTree(models.Flatten(got))
	if err != nil {
		err = fmt.Errorf("remote collection is inconsistent: %w", err)
		s.setErr(err)
		return err
	}

	s.replace(roots)
	return nil
}

// Create sends a new task to the remote store and reloads. There is no
// optimistic local insert: the server assigns id, timestamps and counts.
func (s *Store) Create(ctx context.Context, req models.CreateRequest) (*models.Task, error) {
	if strings.TrimSpace(req.Text) == "" {
		err := validationErrorf("todo text must not be empty")
		s.setErr(err)
		return nil, err
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if _, err := models.ParsePriority(string(req.Priority)); err != nil {
		verr := validationErrorf("%v", err)
		s.setErr(verr)
		return nil, verr
	}

	created, err := s.remote.Create(ctx, req)
	if err != nil {
		s.setErr(err)
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// Update sends a partial field update for an existing task and reloads.
func (s *Store) Update(ctx context.Context, id string, req models.UpdateRequest) (*models.Task, error) {
	if s.Find(id) == nil {
		err := validationErrorf("unknown todo id %s", id)
		s.setErr(err)
		return nil, err
	}

	updated, err := s.remote.Update(ctx, id, req)
	if err != nil {
		s.setErr(err)
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete removes a task; the remote store cascades the delete to all
// descendants.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.Find(id) == nil {
		err := validationErrorf("unknown todo id %s", id)
		s.setErr(err)
		return err
	}

	if err := s.remote.Delete(ctx, id); err != nil {
		s.setErr(err)
		return err
	}
	return s.Load(ctx)
}

// Move reparents a task. The move is rejected locally when it would make a
// task its own ancestor; the snapshot is untouched on rejection.
func (s *Store) Move(ctx context.Context, id string, newParentID *string) (*models.Task, error) {
	task := s.Find(id)
	if task == nil {
		err := validationErrorf("unknown todo id %s", id)
		s.setErr(err)
		return nil, err
	}
	if newParentID != nil {
		if *newParentID == id {
			err := validationErrorf("cannot move todo %s under itself", id)
			s.setErr(err)
			return nil, err
		}
		if subtreeContains(task, *newParentID) {
			err := validationErrorf("cannot move todo %s under its own descendant %s", id, *newParentID)
			s.setErr(err)
			return nil, err
		}
	}

	moved, err := s.remote.Move(ctx, id, newParentID)
	if err != nil {
		s.setErr(err)
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return moved, err
	}
	return moved, nil
}

// Search replaces the snapshot with exactly the remote search result set.
// A blank query is equivalent to Load. Results are shown as returned: a
// matching child appears as its own entry, it is not re-nested under an
// unmatched parent.
func (s *Store) Search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return s.Load(ctx)
	}

	results, err := s.remote.Search(ctx, query)
	if err != nil {
		s.setErr(err)
		return err
	}
	s.replace(results)
	return nil
}

// RemoteStats fetches the server-side aggregate over the whole table,
// descendants included. The root-restricted numbers come from views.Aggregate
// over the snapshot instead.
func (s *Store) RemoteStats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.remote.Stats(ctx)
	if err != nil {
		s.setErr(err)
		return nil, err
	}
	return stats, nil
}

func (s *Store) replace(tasks []*models.Task) {
	index := map[string]*models.Task{}
	for _, t := range models.Flatten(tasks) {
		index[t.ID] = t
	}

	s.mu.Lock()
	s.tasks = tasks
	s.index = index
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func subtreeContains(t *models.Task, id string) bool {
	for _, c := range t.Children {
		if c.ID == id || subtreeContains(c, id) {
			return true
		}
	}
	return false
}
