// Package projection implements the pure fold engine that maintains the
// read views. Every fold takes a view and one event and returns a new view;
// inputs are never mutated, and event kinds a view does not subscribe to
// pass through unchanged.
package projection

import (
	"time"

	"github.com/tasklist/engine/internal/domain"
)

// TaskItem is the entity-shaped view of one task, denormalized with the
// label fields joined in at fold time.
type TaskItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	DueDate     time.Time       `json:"due_date"`
	Completed   bool            `json:"completed"`
	Deleted     bool            `json:"deleted"`
	LabelID     string          `json:"label_id,omitempty"`
	LabelTitle  string          `json:"label_title,omitempty"`
	LabelColor  string          `json:"label_color,omitempty"`
}

// TaskListView is a list-shaped view of task items. One entry per task id is
// an invariant of well-formed event streams, not something the type enforces.
type TaskListView struct {
	Items []TaskItem `json:"items"`
}

// LabelledTasksView lists the tasks carrying one label, together with the
// label's denormalized details.
type LabelledTasksView struct {
	LabelID    string     `json:"label_id"`
	LabelTitle string     `json:"label_title"`
	LabelColor string     `json:"label_color"`
	Items      []TaskItem `json:"items"`
}

// upsertItem returns a new list with the item appended, or replaced in place
// when an entry with the same id already exists. Replacing keeps the
// one-entry-per-id invariant intact under redelivered append events.
func upsertItem(items []TaskItem, item TaskItem) []TaskItem {
	out := make([]TaskItem, 0, len(items)+1)
	replaced := false
	for _, existing := range items {
		if existing.ID == item.ID {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// updateByTaskID returns a new list where every entry matching the task id
// is replaced by transform's result. All matches are updated, matching the
// historical behavior even though streams should never produce duplicates.
func updateByTaskID(items []TaskItem, taskID string, transform func(TaskItem) TaskItem) []TaskItem {
	out := make([]TaskItem, 0, len(items))
	for _, item := range items {
		if item.ID == taskID {
			item = transform(item)
		}
		out = append(out, item)
	}
	return out
}

// updateByLabelID returns a new list where every entry carrying the label id
// is replaced by transform's result.
func updateByLabelID(items []TaskItem, labelID string, transform func(TaskItem) TaskItem) []TaskItem {
	out := make([]TaskItem, 0, len(items))
	for _, item := range items {
		if item.LabelID == labelID {
			item = transform(item)
		}
		out = append(out, item)
	}
	return out
}

// removeByTaskID returns a new list with every entry matching the task id
// removed, no matter how many prior updates the entry saw.
func removeByTaskID(items []TaskItem, taskID string) []TaskItem {
	out := make([]TaskItem, 0, len(items))
	for _, item := range items {
		if item.ID == taskID {
			continue
		}
		out = append(out, item)
	}
	return out
}
