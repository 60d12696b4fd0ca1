package domain

import "fmt"

// RejectKind classifies why a command was refused.
type RejectKind string

const (
	// RejectNotFound: the command targets a nonexistent aggregate or a
	// nonexistent association (for example removing an unassigned label).
	RejectNotFound RejectKind = "not_found"
	// RejectInvalidStatus: the command is not permitted in the current
	// lifecycle state.
	RejectInvalidStatus RejectKind = "invalid_status"
	// RejectValueMismatch: the command's expected prior value does not match
	// the stored value.
	RejectValueMismatch RejectKind = "value_mismatch"
)

// Rejection is the terminal outcome of a refused command. It never mutates
// state and is surfaced to the caller as-is; the engine performs no retries.
type Rejection struct {
	EntityID string
	Kind     RejectKind
	Reason   string
	Mismatch *ValueMismatch
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("command rejected (%s): %s", r.Kind, r.Reason)
}

// NewNotFound builds a NotFound rejection.
func NewNotFound(entityID, reason string) *Rejection {
	return &Rejection{EntityID: entityID, Kind: RejectNotFound, Reason: reason}
}

// NewInvalidStatus builds an InvalidStatus rejection.
func NewInvalidStatus(entityID, reason string) *Rejection {
	return &Rejection{EntityID: entityID, Kind: RejectInvalidStatus, Reason: reason}
}

// NewMismatchRejection wraps a ValueMismatch into a rejection.
func NewMismatchRejection(entityID, reason string, m ValueMismatch) *Rejection {
	return &Rejection{EntityID: entityID, Kind: RejectValueMismatch, Reason: reason, Mismatch: &m}
}
