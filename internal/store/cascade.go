package store

import (
	"context"

	"github.com/ldi/taproot/pkg/models"
)

// Toggle flips a task's completion state. Marking a task complete also
// marks every currently-incomplete descendant complete, one toggle call per
// node, target first and then the subtree in pre-order (depth-first,
// left-to-right by stored child order). Calls run sequentially so the
// remote store never observes child state ahead of parent state. Marking a
// task incomplete touches only that task; children keep their own state.
//
// Nodes already at the target state are skipped. When the whole plan is
// empty the operation is a no-op: no remote calls, no reload.
//
// A failure partway through the cascade leaves earlier nodes toggled and
// later ones not. That window is accepted rather than rolled back; the
// reload that follows (and any later Load) shows the true server state.
func (s *Store) Toggle(ctx context.Context, id string, completed bool) error {
	task := s.Find(id)
	if task == nil {
		err := validationErrorf("unknown todo id %s", id)
		s.setErr(err)
		return err
	}

	plan := cascadePlan(task, completed)
	if len(plan) == 0 {
		return nil
	}

	var toggleErr error
	for _, nodeID := range plan {
		if _, err := s.remote.Toggle(ctx, nodeID, completed); err != nil {
			s.setErr(err)
			toggleErr = err
			break
		}
	}

	loadErr := s.Load(ctx)
	if toggleErr != nil {
		return toggleErr
	}
	return loadErr
}

// cascadePlan lists the ids to toggle: the target when its state differs,
// then, only when completing, each descendant not already complete, in
// pre-order.
func cascadePlan(task *models.Task, completed bool) []string {
	var plan []string
	if task.Completed != completed {
		plan = append(plan, task.ID)
	}
	if !completed {
		return plan
	}

	var walk func(ts []*models.Task)
	walk = func(ts []*models.Task) {
		for _, t := range ts {
			if !t.Completed {
				plan = append(plan, t.ID)
			}
			walk(t.Children)
		}
	}
	walk(task.Children)
	return plan
}
