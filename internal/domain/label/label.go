// Package label implements the label aggregate. Labels have a single active
// state: once created, only their details change, and they cannot be deleted.
package label

import (
	"errors"
	"time"

	"github.com/nats-io/nuid"

	"github.com/tasklist/engine/internal/domain"
)

// ErrUnknownCommand prevents unknown write-model transitions.
var ErrUnknownCommand = errors.New("unknown label command")

// State is the replayed label aggregate state.
type State struct {
	ID      string
	Details domain.LabelDetails
	Created bool
	Version int
}

func (s State) Exists() bool { return s.Created }

// Command is the closed set of label commands.
type Command interface {
	isLabelCommand()
}

// Create registers a new label.
type Create struct {
	LabelID string
	Details domain.LabelDetails
}

// UpdateDetails replaces the label details if Expected still matches the
// stored value.
type UpdateDetails struct {
	LabelID  string
	Expected domain.LabelDetails
	New      domain.LabelDetails
}

func (Create) isLabelCommand()        {}
func (UpdateDetails) isLabelCommand() {}

// Decider validates label commands against current state and emits events.
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

// Decide runs the live validate+decide path for one label command. Guard and
// mismatch failures come back as *domain.Rejection errors.
func (d *Decider) Decide(s State, cmd Command) ([]domain.Event, error) {
	switch c := cmd.(type) {
	case Create:
		if s.Exists() {
			return nil, domain.NewInvalidStatus(c.LabelID, "label already exists")
		}
		return d.emit(c.LabelID, domain.LabelCreated{Details: c.Details}), nil

	case UpdateDetails:
		if !s.Exists() {
			return nil, domain.NewNotFound(c.LabelID, "label does not exist")
		}
		if c.Expected != s.Details {
			m := domain.MismatchOfLabelDetails(c.Expected, s.Details, c.New, s.Version)
			return nil, domain.NewMismatchRejection(c.LabelID, "label details have changed", m)
		}
		return d.emit(c.LabelID, domain.LabelDetailsUpdated{Old: s.Details, New: c.New}), nil

	default:
		return nil, ErrUnknownCommand
	}
}

func (d *Decider) emit(labelID string, payload domain.EventPayload) []domain.Event {
	return []domain.Event{{
		ID:            d.NewID(),
		Kind:          payload.EventKind(),
		EntityID:      labelID,
		CorrelationID: labelID,
		OccurredAt:    d.Now(),
		Payload:       payload,
	}}
}

// Apply folds one event into label state. Total and deterministic; unknown
// kinds leave state unchanged.
func Apply(s State, evt domain.Event) State {
	switch p := evt.Payload.(type) {
	case domain.LabelCreated:
		return State{
			ID:      evt.EntityID,
			Details: p.Details,
			Created: true,
			Version: 0,
		}
	case domain.LabelDetailsUpdated:
		s.Details = p.New
		s.Version++
		return s
	default:
		return s
	}
}

// Replay reconstructs label state from an ordered event stream.
func Replay(events []domain.Event) State {
	var s State
	for _, evt := range events {
		s = Apply(s, evt)
	}
	return s
}
