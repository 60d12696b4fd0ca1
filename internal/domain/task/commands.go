package task

import (
	"errors"
	"time"

	"github.com/tasklist/engine/internal/domain"
)

// ErrUnknownCommand prevents unknown write-model transitions.
var ErrUnknownCommand = errors.New("unknown task command")

// Command is the closed set of task commands.
type Command interface {
	isTaskCommand()
}

// Create opens a new task directly in the open state.
type Create struct {
	TaskID      string
	Description string
	Priority    domain.Priority
	DueDate     time.Time
}

// CreateDraft opens a new task in the draft state.
type CreateDraft struct {
	TaskID      string
	Description string
}

// FinalizeDraft moves a draft to the open state.
type FinalizeDraft struct {
	TaskID string
}

// UpdateDescription replaces the description if Expected still matches the
// stored value.
type UpdateDescription struct {
	TaskID   string
	Expected string
	New      string
}

// UpdatePriority replaces the priority if Expected still matches.
type UpdatePriority struct {
	TaskID   string
	Expected domain.Priority
	New      domain.Priority
}

// UpdateDueDate replaces the due date if Expected still matches.
type UpdateDueDate struct {
	TaskID   string
	Expected time.Time
	New      time.Time
}

// Complete marks an open task as completed.
type Complete struct {
	TaskID string
}

// Reopen returns a completed task to the open state.
type Reopen struct {
	TaskID string
}

// Delete flags the task as deleted. The record persists.
type Delete struct {
	TaskID string
}

// Restore returns a deleted task to the open state.
type Restore struct {
	TaskID string
}

// AssignLabel attaches a label to the task.
type AssignLabel struct {
	TaskID  string
	LabelID string
}

// RemoveLabel detaches a label from the task.
type RemoveLabel struct {
	TaskID  string
	LabelID string
}

func (Create) isTaskCommand()            {}
func (CreateDraft) isTaskCommand()       {}
func (FinalizeDraft) isTaskCommand()     {}
func (UpdateDescription) isTaskCommand() {}
func (UpdatePriority) isTaskCommand()    {}
func (UpdateDueDate) isTaskCommand()     {}
func (Complete) isTaskCommand()          {}
func (Reopen) isTaskCommand()            {}
func (Delete) isTaskCommand()            {}
func (Restore) isTaskCommand()           {}
func (AssignLabel) isTaskCommand()       {}
func (RemoveLabel) isTaskCommand()       {}
