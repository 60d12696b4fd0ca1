// Package task implements the task aggregate: the single-writer state
// holder for one task, its command handlers and its event apply path.
package task

import (
	"slices"
	"time"

	"github.com/nats-io/nuid"

	"github.com/tasklist/engine/internal/domain"
)

// State is the replayed task aggregate state. Version increments exactly
// once per applied event; creation events set it to zero.
type State struct {
	ID          string
	Description string
	Priority    domain.Priority
	DueDate     time.Time
	Status      domain.TaskStatus
	LabelIDs    []string
	Version     int
}

// Exists reports whether a creation event has been applied.
func (s State) Exists() bool { return s.Status != domain.StatusNone }

func (s State) hasLabel(labelID string) bool {
	return slices.Contains(s.LabelIDs, labelID)
}

// Decider validates commands against current state and emits events.
// It performs no I/O; callers must serialize commands per task id.
type Decider struct {
	Now   func() time.Time
	NewID func() string
}

func NewDecider() *Decider {
	return &Decider{
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: nuid.Next,
	}
}

// Decide runs the live validate+decide path for one command. It returns the
// emitted events, or an error that is a *domain.Rejection for guard and
// mismatch failures. State is never mutated here; Apply folds the result.
func (d *Decider) Decide(s State, cmd Command) ([]domain.Event, error) {
	switch c := cmd.(type) {
	case Create:
		if s.Exists() {
			return nil, domain.NewInvalidStatus(c.TaskID, "task already exists")
		}
		return d.emit(c.TaskID, "", domain.TaskCreated{
			Description: c.Description,
			Priority:    c.Priority,
			DueDate:     c.DueDate,
		}), nil

	case CreateDraft:
		if s.Exists() {
			return nil, domain.NewInvalidStatus(c.TaskID, "task already exists")
		}
		return d.emit(c.TaskID, "", domain.TaskDraftCreated{Description: c.Description}), nil

	case FinalizeDraft:
		if !s.Exists() {
			return nil, domain.NewNotFound(c.TaskID, "task does not exist")
		}
		if s.Status != domain.StatusDraft {
			return nil, domain.NewInvalidStatus(c.TaskID, "task is not a draft")
		}
		return d.emit(c.TaskID, "", domain.TaskDraftFinalized{}), nil

	case UpdateDescription:
		if err := guardActive(s, c.TaskID); err != nil {
			return nil, err
		}
		if c.Expected != s.Description {
			m := domain.MismatchOfLongText(c.Expected, s.Description, c.New, s.Version)
			return nil, domain.NewMismatchRejection(c.TaskID, "description has changed", m)
		}
		return d.emit(c.TaskID, "", domain.TaskDescriptionUpdated{Old: s.Description, New: c.New}), nil

	case UpdatePriority:
		if err := guardActive(s, c.TaskID); err != nil {
			return nil, err
		}
		if c.Expected != s.Priority {
			m := domain.MismatchOfPriority(c.Expected, s.Priority, c.New, s.Version)
			return nil, domain.NewMismatchRejection(c.TaskID, "priority has changed", m)
		}
		return d.emit(c.TaskID, "", domain.TaskPriorityUpdated{Old: s.Priority, New: c.New}), nil

	case UpdateDueDate:
		if err := guardActive(s, c.TaskID); err != nil {
			return nil, err
		}
		if !c.Expected.Equal(s.DueDate) {
			m := domain.MismatchOfTimestamp(c.Expected, s.DueDate, c.New, s.Version)
			return nil, domain.NewMismatchRejection(c.TaskID, "due date has changed", m)
		}
		return d.emit(c.TaskID, "", domain.TaskDueDateUpdated{Old: s.DueDate, New: c.New}), nil

	case Complete:
		if !s.Exists() {
			return nil, domain.NewNotFound(c.TaskID, "task does not exist")
		}
		if s.Status == domain.StatusCompleted {
			return nil, domain.NewInvalidStatus(c.TaskID, "task is already completed")
		}
		if s.Status != domain.StatusOpen {
			return nil, domain.NewInvalidStatus(c.TaskID, "task is not open")
		}
		return d.emit(c.TaskID, "", domain.TaskCompleted{}), nil

	case Reopen:
		if !s.Exists() {
			return nil, domain.NewNotFound(c.TaskID, "task does not exist")
		}
		if s.Status != domain.StatusCompleted {
			return nil, domain.NewInvalidStatus(c.TaskID, "task is not completed")
		}
		return d.emit(c.TaskID, "", domain.TaskReopened{}), nil

	case Delete:
		if !s.Exists() {
			return nil, domain.NewNotFound(c.TaskID, "task does not exist")
		}
		if s.Status == domain.StatusDeleted {
			return nil, domain.NewInvalidStatus(c.TaskID, "task is already deleted")
		}
		return d.emit(c.TaskID, "", domain.TaskDeleted{}), nil

	case Restore:
		if !s.Exists() {
			return nil, domain.NewNotFound(c.TaskID, "task does not exist")
		}
		if s.Status != domain.StatusDeleted {
			return nil, domain.NewInvalidStatus(c.TaskID, "task is not deleted")
		}
		return d.emit(c.TaskID, "", domain.TaskRestored{}), nil

	case AssignLabel:
		if err := guardActive(s, c.TaskID); err != nil {
			return nil, err
		}
		return d.emit(c.TaskID, c.LabelID, domain.LabelAssignedToTask{LabelID: c.LabelID}), nil

	case RemoveLabel:
		if err := guardActive(s, c.TaskID); err != nil {
			return nil, err
		}
		if !s.hasLabel(c.LabelID) {
			return nil, domain.NewNotFound(c.TaskID, "label is not assigned to the task")
		}
		return d.emit(c.TaskID, c.LabelID, domain.LabelRemovedFromTask{LabelID: c.LabelID}), nil

	default:
		return nil, ErrUnknownCommand
	}
}

// guardActive rejects changes on tasks that left the editable part of the
// lifecycle. Field updates and label changes share the same guard.
func guardActive(s State, taskID string) error {
	if !s.Exists() {
		return domain.NewNotFound(taskID, "task does not exist")
	}
	switch s.Status {
	case domain.StatusCompleted:
		return domain.NewInvalidStatus(taskID, "task is completed")
	case domain.StatusDeleted:
		return domain.NewInvalidStatus(taskID, "task is deleted")
	}
	return nil
}

func (d *Decider) emit(taskID, correlationID string, payload domain.EventPayload) []domain.Event {
	return []domain.Event{{
		ID:            d.NewID(),
		Kind:          payload.EventKind(),
		EntityID:      taskID,
		CorrelationID: correlationID,
		OccurredAt:    d.Now(),
		Payload:       payload,
	}}
}

// Apply folds one event into task state. It runs on the live path right
// after Decide and on historical replay, performs no guard checks, and is
// total: event kinds the task does not handle leave state unchanged.
func Apply(s State, evt domain.Event) State {
	switch p := evt.Payload.(type) {
	case domain.TaskCreated:
		return State{
			ID:          evt.EntityID,
			Description: p.Description,
			Priority:    p.Priority,
			DueDate:     p.DueDate,
			Status:      domain.StatusOpen,
			Version:     0,
		}
	case domain.TaskDraftCreated:
		return State{
			ID:          evt.EntityID,
			Description: p.Description,
			Status:      domain.StatusDraft,
			Version:     0,
		}
	case domain.TaskDraftFinalized:
		s.Status = domain.StatusOpen
		s.Version++
		return s
	case domain.TaskDescriptionUpdated:
		s.Description = p.New
		s.Version++
		return s
	case domain.TaskPriorityUpdated:
		s.Priority = p.New
		s.Version++
		return s
	case domain.TaskDueDateUpdated:
		s.DueDate = p.New
		s.Version++
		return s
	case domain.TaskCompleted:
		s.Status = domain.StatusCompleted
		s.Version++
		return s
	case domain.TaskReopened:
		s.Status = domain.StatusOpen
		s.Version++
		return s
	case domain.TaskDeleted:
		s.Status = domain.StatusDeleted
		s.Version++
		return s
	case domain.TaskRestored:
		s.Status = domain.StatusOpen
		s.Version++
		return s
	case domain.LabelAssignedToTask:
		if !s.hasLabel(p.LabelID) {
			labels := make([]string, 0, len(s.LabelIDs)+1)
			labels = append(labels, s.LabelIDs...)
			labels = append(labels, p.LabelID)
			s.LabelIDs = labels
		}
		s.Version++
		return s
	case domain.LabelRemovedFromTask:
		labels := make([]string, 0, len(s.LabelIDs))
		for _, id := range s.LabelIDs {
			if id != p.LabelID {
				labels = append(labels, id)
			}
		}
		s.LabelIDs = labels
		s.Version++
		return s
	default:
		return s
	}
}

// Replay reconstructs task state from an ordered event stream.
func Replay(events []domain.Event) State {
	var s State
	for _, evt := range events {
		s = Apply(s, evt)
	}
	return s
}
