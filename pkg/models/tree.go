package models

import "fmt"

// BuildTree assembles a nested tree from a flat task list, attaching each
// task with a parent_id under its parent and returning the roots. Sibling
// order follows the input order. A parent_id that references no task in the
// collection is a data-integrity error and is surfaced, not repaired.
//
// Tasks are relinked in place: any Children already present are discarded
// and rebuilt, and ChildrenCount is recomputed at every level.
func BuildTree(tasks []*Task) ([]*Task, error) {
	index := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		t.Children = nil
		index[t.ID] = t
	}

	var roots []*Task
	for _, t := range tasks {
		if t.ParentID == nil {
			roots = append(roots, t)
			continue
		}
		parent, ok := index[*t.ParentID]
		if !ok {
			return nil, fmt.Errorf("todo %s references missing parent %s", t.ID, *t.ParentID)
		}
		parent.Children = append(parent.Children, t)
	}

	for _, t := range tasks {
		t.ChildrenCount = len(t.Children)
	}
	return roots, nil
}

// Flatten returns the tree in pre-order, left-to-right by stored child
// order, without modifying it.
func Flatten(roots []*Task) []*Task {
	var out []*Task
	var walk func(ts []*Task)
	walk = func(ts []*Task) {
		for _, t := range ts {
			out = append(out, t)
			walk(t.Children)
		}
	}
	walk(roots)
	return out
}
