// Package enrich provides the on-demand cross-aggregate lookups joined into
// views at fold time. Lookups read the *current* aggregate state, so a view
// can carry a newer denormalized value than the one at event emission.
package enrich

import (
	"errors"

	"github.com/tasklist/engine/internal/domain"
	"github.com/tasklist/engine/internal/domain/label"
	"github.com/tasklist/engine/internal/domain/task"
)

// ErrNotWired is returned when a resolver is used before Wire. Construction
// and wiring are separate steps because the resolver and the stores it reads
// come up in the same initialization pass.
var ErrNotWired = errors.New("enrich: resolver is not wired")

// TaskStateReader reads current task aggregate state.
type TaskStateReader interface {
	TaskState(id string) (task.State, bool)
}

// LabelStateReader reads current label aggregate state.
type LabelStateReader interface {
	LabelState(id string) (label.State, bool)
}

// Resolver answers enrichment lookups with documented defaults for missing
// targets. Build it with New, set both readers, then call Wire before use.
type Resolver struct {
	tasks  TaskStateReader
	labels LabelStateReader
	wired  bool
}

func New() *Resolver { return &Resolver{} }

func (r *Resolver) SetTaskStates(reader TaskStateReader)   { r.tasks = reader }
func (r *Resolver) SetLabelStates(reader LabelStateReader) { r.labels = reader }

// Wire finalizes two-phase initialization. It fails if any reader is missing
// so a half-wired resolver cannot reach traffic.
func (r *Resolver) Wire() error {
	if r.tasks == nil || r.labels == nil {
		return ErrNotWired
	}
	r.wired = true
	return nil
}

// LabelDetails resolves a label's current title and color. A missing label
// resolves to empty details, not an error.
func (r *Resolver) LabelDetails(labelID string) (domain.LabelDetails, error) {
	if !r.wired {
		return domain.LabelDetails{}, ErrNotWired
	}
	st, ok := r.labels.LabelState(labelID)
	if !ok {
		return domain.LabelDetails{}, nil
	}
	return st.Details, nil
}

// TaskDetails resolves a task's current description, priority and status.
// A missing task resolves to zero details.
func (r *Resolver) TaskDetails(taskID string) (domain.TaskDetails, error) {
	if !r.wired {
		return domain.TaskDetails{}, ErrNotWired
	}
	st, ok := r.tasks.TaskState(taskID)
	if !ok {
		return domain.TaskDetails{}, nil
	}
	return domain.TaskDetails{
		Description: st.Description,
		Priority:    st.Priority,
		DueDate:     st.DueDate,
		Status:      st.Status,
	}, nil
}

// TaskLabelIDs resolves the labels currently assigned to a task. A missing
// task resolves to an empty list.
func (r *Resolver) TaskLabelIDs(taskID string) ([]string, error) {
	if !r.wired {
		return nil, ErrNotWired
	}
	st, ok := r.tasks.TaskState(taskID)
	if !ok {
		return nil, nil
	}
	ids := make([]string, len(st.LabelIDs))
	copy(ids, st.LabelIDs)
	return ids, nil
}

// TaskState resolves the full current task state; used when a list view
// needs to rebuild an entry (for example after a restore).
func (r *Resolver) TaskState(taskID string) (task.State, bool, error) {
	if !r.wired {
		return task.State{}, false, ErrNotWired
	}
	st, ok := r.tasks.TaskState(taskID)
	return st, ok, nil
}
