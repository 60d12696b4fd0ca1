package contracts

import (
	"time"

	"github.com/tasklist/engine/internal/domain"
)

// Command actions accepted on the wire.
const (
	ActionCreateTask         = "create-task"
	ActionCreateDraft        = "create-draft"
	ActionFinalizeDraft      = "finalize-draft"
	ActionUpdateDescription  = "update-description"
	ActionUpdatePriority     = "update-priority"
	ActionUpdateDueDate      = "update-due-date"
	ActionCompleteTask       = "complete-task"
	ActionReopenTask         = "reopen-task"
	ActionDeleteTask         = "delete-task"
	ActionRestoreTask        = "restore-task"
	ActionAssignLabel        = "assign-label"
	ActionRemoveLabel        = "remove-label"
	ActionCreateLabel        = "create-label"
	ActionUpdateLabelDetails = "update-label-details"
)

type CreateTaskPayload struct {
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority,omitempty"`
	DueDate     time.Time       `json:"due_date,omitzero"`
}

type CreateDraftPayload struct {
	Description string `json:"description"`
}

// UpdateTextPayload carries an optimistic text update: Expected is the value
// the caller believes is stored, New the replacement.
type UpdateTextPayload struct {
	Expected string `json:"expected"`
	New      string `json:"new"`
}

type UpdatePriorityPayload struct {
	Expected domain.Priority `json:"expected"`
	New      domain.Priority `json:"new"`
}

type UpdateDueDatePayload struct {
	Expected time.Time `json:"expected"`
	New      time.Time `json:"new"`
}

type LabelRefPayload struct {
	LabelID string `json:"label_id"`
}

type CreateLabelPayload struct {
	Details domain.LabelDetails `json:"details"`
}

type UpdateLabelDetailsPayload struct {
	Expected domain.LabelDetails `json:"expected"`
	New      domain.LabelDetails `json:"new"`
}

// IsLabelAction reports whether the action targets a label aggregate.
func IsLabelAction(action string) bool {
	return action == ActionCreateLabel || action == ActionUpdateLabelDetails
}
