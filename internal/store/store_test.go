package store

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/ldi/taproot/internal/api"
	"github.com/ldi/taproot/internal/db"
	"github.com/ldi/taproot/internal/server"
	"github.com/ldi/taproot/pkg/models"
)

// countingRemote wraps the real API client so tests can assert exactly which
// remote calls an operation makes.
type countingRemote struct {
	Remote
	lists     int
	creates   int
	moves     int
	toggleIDs []string
}

func (c *countingRemote) List(ctx context.Context) ([]*models.Task, error) {
	c.lists++
	return c.Remote.List(ctx)
}

func (c *countingRemote) Create(ctx context.Context, req models.CreateRequest) (*models.Task, error) {
	c.creates++
	return c.Remote.Create(ctx, req)
}

func (c *countingRemote) Move(ctx context.Context, id string, newParentID *string) (*models.Task, error) {
	c.moves++
	return c.Remote.Move(ctx, id, newParentID)
}

func (c *countingRemote) Toggle(ctx context.Context, id string, completed bool) (*models.Task, error) {
	c.toggleIDs = append(c.toggleIDs, id)
	return c.Remote.Toggle(ctx, id, completed)
}

// newTestStore stands up the full stack: sqlite in memory, the HTTP API on
// an httptest server, the real client, and the store on top.
func newTestStore(t *testing.T) (*Store, *countingRemote, *httptest.Server) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}

	ts := httptest.NewServer(server.NewServer(database).Handler())
	t.Cleanup(ts.Close)

	remote := &countingRemote{Remote: api.NewClient(ts.URL)}
	return NewStore(remote), remote, ts
}

func mustStoreCreate(t *testing.T, st *Store, req models.CreateRequest) *models.Task {
	t.Helper()
	created, err := st.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Failed to create %q: %v", req.Text, err)
	}
	return created
}

func TestLoadBuildsTree(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	child := mustStoreCreate(t, st, models.CreateRequest{Text: "Child", ParentID: &root.ID})

	if err := st.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tasks := st.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 root, got %d", len(tasks))
	}
	if len(tasks[0].Children) != 1 || tasks[0].Children[0].ID != child.ID {
		t.Errorf("Expected child nested under root, got %+v", tasks[0].Children)
	}
	if st.Find(child.ID) == nil {
		t.Errorf("Expected Find to see nested child")
	}
	if st.LastError() != nil {
		t.Errorf("Expected no error after successful load, got %v", st.LastError())
	}
}

func TestCreateValidation(t *testing.T) {
	st, remote, _ := newTestStore(t)
	ctx := context.Background()

	var verr *ValidationError
	_, err := st.Create(ctx, models.CreateRequest{Text: "   "})
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for blank text, got %v", err)
	}

	_, err = st.Create(ctx, models.CreateRequest{Text: "ok", Priority: "urgent"})
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError for bad priority, got %v", err)
	}

	if remote.creates != 0 {
		t.Errorf("Expected no remote calls for locally rejected creates, got %d", remote.creates)
	}
	if st.LastError() == nil {
		t.Errorf("Expected LastError to carry the validation failure")
	}
}

func TestCreateReloadsSnapshot(t *testing.T) {
	st, remote, _ := newTestStore(t)

	created := mustStoreCreate(t, st, models.CreateRequest{Text: "Walk dog"})

	if st.Find(created.ID) == nil {
		t.Errorf("Expected snapshot to contain the new todo after reload")
	}
	if remote.lists != 1 {
		t.Errorf("Expected exactly one reload per create, got %d", remote.lists)
	}
	if created.Priority != models.PriorityMedium {
		t.Errorf("Expected default priority medium, got %s", created.Priority)
	}
}

func TestCreateBadParentKeepsSnapshot(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	existing := mustStoreCreate(t, st, models.CreateRequest{Text: "Existing"})
	before := st.Tasks()

	missing := "00000000-0000-0000-0000-000000000000"
	_, err := st.Create(ctx, models.CreateRequest{Text: "Orphan", ParentID: &missing})

	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError from server rejection, got %v", err)
	}
	if reqErr.Status != 400 {
		t.Errorf("Expected 400, got %d", reqErr.Status)
	}

	after := st.Tasks()
	if len(after) != len(before) || after[0].ID != existing.ID {
		t.Errorf("Expected snapshot unchanged after rejected create")
	}
	if st.LastError() == nil {
		t.Errorf("Expected LastError to be set")
	}
}

func TestToggleCompleteCascades(t *testing.T) {
	st, remote, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	child := mustStoreCreate(t, st, models.CreateRequest{Text: "Child", ParentID: &root.ID})
	grandchild := mustStoreCreate(t, st, models.CreateRequest{Text: "Grandchild", ParentID: &child.ID})

	// Pre-complete the middle node only; a toggle would take the
	// grandchild with it. The cascade must skip the completed child.
	done := true
	if _, err := st.Update(ctx, child.ID, models.UpdateRequest{Completed: &done}); err != nil {
		t.Fatalf("Failed to pre-complete child: %v", err)
	}

	remote.toggleIDs = nil
	if err := st.Toggle(ctx, root.ID, true); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	if len(remote.toggleIDs) != 2 {
		t.Fatalf("Expected 2 toggle calls (root and grandchild), got %v", remote.toggleIDs)
	}
	if remote.toggleIDs[0] != root.ID {
		t.Errorf("Expected target toggled first, got %v", remote.toggleIDs)
	}
	if remote.toggleIDs[1] != grandchild.ID {
		t.Errorf("Expected incomplete grandchild toggled, got %v", remote.toggleIDs)
	}

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		task := st.Find(id)
		if task == nil || !task.Completed {
			t.Errorf("Expected %s completed in reloaded snapshot", id)
		}
	}
}

func TestToggleDeepCascadeOrder(t *testing.T) {
	st, remote, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	a := mustStoreCreate(t, st, models.CreateRequest{Text: "A", ParentID: &root.ID})
	aa := mustStoreCreate(t, st, models.CreateRequest{Text: "AA", ParentID: &a.ID})
	b := mustStoreCreate(t, st, models.CreateRequest{Text: "B", ParentID: &root.ID})

	remote.toggleIDs = nil
	if err := st.Toggle(ctx, root.ID, true); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	if len(remote.toggleIDs) != 4 {
		t.Fatalf("Expected 4 toggle calls, got %v", remote.toggleIDs)
	}
	pos := map[string]int{}
	for i, id := range remote.toggleIDs {
		pos[id] = i
	}
	if pos[root.ID] != 0 {
		t.Errorf("Expected target toggled first, got %v", remote.toggleIDs)
	}
	// Depth-first: a parent is always toggled before its own children.
	if pos[aa.ID] < pos[a.ID] {
		t.Errorf("Expected %s before its child %s, got %v", a.ID, aa.ID, remote.toggleIDs)
	}
	if _, ok := pos[b.ID]; !ok {
		t.Errorf("Expected sibling %s in the cascade, got %v", b.ID, remote.toggleIDs)
	}
}

func TestToggleIncompleteTouchesOnlyTarget(t *testing.T) {
	st, remote, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	child := mustStoreCreate(t, st, models.CreateRequest{Text: "Child", ParentID: &root.ID})

	if err := st.Toggle(ctx, root.ID, true); err != nil {
		t.Fatalf("Failed to complete subtree: %v", err)
	}

	remote.toggleIDs = nil
	if err := st.Toggle(ctx, root.ID, false); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	if len(remote.toggleIDs) != 1 || remote.toggleIDs[0] != root.ID {
		t.Fatalf("Expected exactly one toggle call for the target, got %v", remote.toggleIDs)
	}
	if st.Find(root.ID).Completed {
		t.Errorf("Expected root to be incomplete")
	}
	if !st.Find(child.ID).Completed {
		t.Errorf("Expected child to keep its completed state")
	}
}

func TestToggleNoOpMakesNoCalls(t *testing.T) {
	st, remote, _ := newTestStore(t)
	ctx := context.Background()

	todo := mustStoreCreate(t, st, models.CreateRequest{Text: "Leaf"})
	if err := st.Toggle(ctx, todo.ID, true); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}

	remote.toggleIDs = nil
	lists := remote.lists
	if err := st.Toggle(ctx, todo.ID, true); err != nil {
		t.Fatalf("No-op toggle failed: %v", err)
	}

	if len(remote.toggleIDs) != 0 {
		t.Errorf("Expected no toggle calls for no-op, got %v", remote.toggleIDs)
	}
	if remote.lists != lists {
		t.Errorf("Expected no reload for no-op toggle")
	}
}

func TestToggleUnknownID(t *testing.T) {
	st, _, _ := newTestStore(t)

	var verr *ValidationError
	if err := st.Toggle(context.Background(), "nope", true); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for unknown id, got %v", err)
	}
}

func TestMoveRejectedLocally(t *testing.T) {
	st, remote, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	child := mustStoreCreate(t, st, models.CreateRequest{Text: "Child", ParentID: &root.ID})

	before := st.Tasks()

	var verr *ValidationError
	if _, err := st.Move(ctx, root.ID, &root.ID); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError moving under itself, got %v", err)
	}
	if _, err := st.Move(ctx, root.ID, &child.ID); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError moving under descendant, got %v", err)
	}

	if remote.moves != 0 {
		t.Errorf("Expected no remote calls for rejected moves, got %d", remote.moves)
	}
	after := st.Tasks()
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("Expected snapshot untouched by rejected moves")
	}
}

func TestMoveReparents(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	a := mustStoreCreate(t, st, models.CreateRequest{Text: "A"})
	b := mustStoreCreate(t, st, models.CreateRequest{Text: "B"})
	child := mustStoreCreate(t, st, models.CreateRequest{Text: "Child", ParentID: &a.ID})

	if _, err := st.Move(ctx, child.ID, &b.ID); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	got := st.Find(child.ID)
	if got.ParentID == nil || *got.ParentID != b.ID {
		t.Errorf("Expected child under B after reload, got %v", got.ParentID)
	}

	if _, err := st.Move(ctx, child.ID, nil); err != nil {
		t.Fatalf("Move to root failed: %v", err)
	}
	if got := st.Find(child.ID); got.ParentID != nil {
		t.Errorf("Expected child at root, got parent %v", got.ParentID)
	}
}

func TestDeleteRemovesSubtree(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	child := mustStoreCreate(t, st, models.CreateRequest{Text: "Child", ParentID: &root.ID})
	keeper := mustStoreCreate(t, st, models.CreateRequest{Text: "Keeper"})

	if err := st.Delete(ctx, root.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if st.Find(root.ID) != nil || st.Find(child.ID) != nil {
		t.Errorf("Expected subtree gone from snapshot")
	}
	if st.Find(keeper.ID) == nil {
		t.Errorf("Expected unrelated todo to survive")
	}
}

func TestSearchReplacesSnapshotFlat(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Chores"})
	match := mustStoreCreate(t, st, models.CreateRequest{Text: "Water plants", ParentID: &root.ID})

	if err := st.Search(ctx, "plants"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	tasks := st.Tasks()
	if len(tasks) != 1 || tasks[0].ID != match.ID {
		t.Fatalf("Expected only the matching todo, got %+v", tasks)
	}
	// The match keeps its parent_id but is shown as its own entry, not
	// re-nested under the unmatched parent.
	if tasks[0].ParentID == nil || *tasks[0].ParentID != root.ID {
		t.Errorf("Expected match to keep parent_id %s", root.ID)
	}

	if err := st.Search(ctx, "   "); err != nil {
		t.Fatalf("Blank search failed: %v", err)
	}
	if len(st.Tasks()) != 1 || st.Tasks()[0].ID != root.ID {
		t.Errorf("Expected blank search to restore the full nested view")
	}
}

func TestLoadFailureRetainsSnapshot(t *testing.T) {
	st, _, ts := newTestStore(t)
	ctx := context.Background()

	todo := mustStoreCreate(t, st, models.CreateRequest{Text: "Survivor"})

	ts.Close()
	err := st.Load(ctx)
	if err == nil {
		t.Fatalf("Expected load to fail against closed server")
	}

	var netErr *api.NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("Expected NetworkError, got %T: %v", err, err)
	}
	if st.Find(todo.ID) == nil {
		t.Errorf("Expected previous snapshot to be retained after failed load")
	}
	if st.LastError() == nil {
		t.Errorf("Expected LastError to surface the failure")
	}
}

func TestSubscribeNotifiedOnReplace(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	var fires int
	st.Subscribe(func() { fires++ })

	mustStoreCreate(t, st, models.CreateRequest{Text: "One"})
	if fires == 0 {
		t.Errorf("Expected subscriber to fire after create reload")
	}

	before := fires
	if err := st.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if fires != before+1 {
		t.Errorf("Expected one notification per load, got %d -> %d", before, fires)
	}
}

func TestRemoteStats(t *testing.T) {
	st, _, _ := newTestStore(t)
	ctx := context.Background()

	root := mustStoreCreate(t, st, models.CreateRequest{Text: "Root"})
	mustStoreCreate(t, st, models.CreateRequest{Text: "Nested", ParentID: &root.ID})

	stats, err := st.RemoteStats(ctx)
	if err != nil {
		t.Fatalf("RemoteStats failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Expected remote stats to count every todo, got %d", stats.Total)
	}
}
