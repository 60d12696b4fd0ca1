// Package domain holds the shared model for the task/label engine: value
// types, the event union, rejections and value mismatches. Aggregate
// decision logic lives in the task and label subpackages.
package domain

import (
	"strings"
	"time"
)

// Priority is the task priority scale. The empty value means "not set".
type Priority string

const (
	PriorityUnset  Priority = ""
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalizes a raw priority string. The empty string is valid
// and maps to PriorityUnset.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(strings.TrimSpace(strings.ToLower(raw))) {
	case PriorityUnset:
		return PriorityUnset, true
	case PriorityLow:
		return PriorityLow, true
	case PriorityNormal:
		return PriorityNormal, true
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityUrgent:
		return PriorityUrgent, true
	default:
		return PriorityUnset, false
	}
}

// TaskStatus is the task lifecycle state.
type TaskStatus string

const (
	StatusNone      TaskStatus = ""
	StatusDraft     TaskStatus = "draft"
	StatusOpen      TaskStatus = "open"
	StatusCompleted TaskStatus = "completed"
	StatusDeleted   TaskStatus = "deleted"
)

// LabelDetails is the mutable part of a label. The zero value is the
// documented default for missing labels.
type LabelDetails struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// TaskDetails is the denormalized slice of task state joined into views.
type TaskDetails struct {
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	DueDate     time.Time  `json:"due_date"`
	Status      TaskStatus `json:"status"`
}
