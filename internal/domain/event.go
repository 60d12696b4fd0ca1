package domain

import "time"

// EventKind identifies one event type on the wire and in dispatch tables.
type EventKind string

const (
	KindTaskCreated        EventKind = "task.created"
	KindTaskDraftCreated   EventKind = "task.draft-created"
	KindTaskDraftFinalized EventKind = "task.draft-finalized"
	KindDescriptionUpdated EventKind = "task.description-updated"
	KindPriorityUpdated    EventKind = "task.priority-updated"
	KindDueDateUpdated     EventKind = "task.due-date-updated"
	KindTaskCompleted      EventKind = "task.completed"
	KindTaskReopened       EventKind = "task.reopened"
	KindTaskDeleted        EventKind = "task.deleted"
	KindTaskRestored       EventKind = "task.restored"
	KindLabelAssigned      EventKind = "task.label-assigned"
	KindLabelRemoved       EventKind = "task.label-removed"
	KindLabelCreated       EventKind = "label.created"
	KindLabelDetailsUpd    EventKind = "label.details-updated"
)

// Event is an immutable fact about one aggregate. Events are the only
// source of state mutation, both for aggregates and for views.
type Event struct {
	// ID is the unique event id.
	ID string
	// Kind selects the payload type and drives dispatch.
	Kind EventKind
	// EntityID is the aggregate the event belongs to.
	EntityID string
	// CorrelationID carries a secondary routing id: the label id on
	// task-label events, empty otherwise.
	CorrelationID string
	// OccurredAt is the emission time.
	OccurredAt time.Time
	// Payload holds the kind-specific data.
	Payload EventPayload
}

// EventPayload is implemented by every event payload type.
type EventPayload interface {
	EventKind() EventKind
}

type TaskCreated struct {
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	DueDate     time.Time `json:"due_date"`
}

type TaskDraftCreated struct {
	Description string `json:"description"`
}

type TaskDraftFinalized struct{}

type TaskDescriptionUpdated struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type TaskPriorityUpdated struct {
	Old Priority `json:"old"`
	New Priority `json:"new"`
}

type TaskDueDateUpdated struct {
	Old time.Time `json:"old"`
	New time.Time `json:"new"`
}

type TaskCompleted struct{}

type TaskReopened struct{}

type TaskDeleted struct{}

type TaskRestored struct{}

type LabelAssignedToTask struct {
	LabelID string `json:"label_id"`
}

type LabelRemovedFromTask struct {
	LabelID string `json:"label_id"`
}

type LabelCreated struct {
	Details LabelDetails `json:"details"`
}

type LabelDetailsUpdated struct {
	Old LabelDetails `json:"old"`
	New LabelDetails `json:"new"`
}

func (TaskCreated) EventKind() EventKind            { return KindTaskCreated }
func (TaskDraftCreated) EventKind() EventKind       { return KindTaskDraftCreated }
func (TaskDraftFinalized) EventKind() EventKind     { return KindTaskDraftFinalized }
func (TaskDescriptionUpdated) EventKind() EventKind { return KindDescriptionUpdated }
func (TaskPriorityUpdated) EventKind() EventKind    { return KindPriorityUpdated }
func (TaskDueDateUpdated) EventKind() EventKind     { return KindDueDateUpdated }
func (TaskCompleted) EventKind() EventKind          { return KindTaskCompleted }
func (TaskReopened) EventKind() EventKind           { return KindTaskReopened }
func (TaskDeleted) EventKind() EventKind            { return KindTaskDeleted }
func (TaskRestored) EventKind() EventKind           { return KindTaskRestored }
func (LabelAssignedToTask) EventKind() EventKind    { return KindLabelAssigned }
func (LabelRemovedFromTask) EventKind() EventKind   { return KindLabelRemoved }
func (LabelCreated) EventKind() EventKind           { return KindLabelCreated }
func (LabelDetailsUpdated) EventKind() EventKind    { return KindLabelDetailsUpd }
