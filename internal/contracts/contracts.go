// Package contracts defines the JSON envelopes exchanged between the
// command API, the decision engine and the view sink, plus the codec
// between envelopes and domain events.
package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tasklist/engine/internal/domain"
)

var ErrUnknownEventKind = errors.New("unknown event kind")

// CommandEnvelope is the command published by the command API and processed
// by the decision engine.
type CommandEnvelope struct {
	CommandID string          `json:"command_id"`
	Action    string          `json:"action"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventEnvelope is the event published by the decision engine and consumed
// by the view sink.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	CommandID     string          `json:"command_id,omitempty"`
	Kind          string          `json:"kind"`
	EntityID      string          `json:"entity_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// RejectionEnvelope is published when a command is refused. It carries the
// full mismatch detail so the caller can re-read and retry with corrected
// expectations.
type RejectionEnvelope struct {
	CommandID string                `json:"command_id"`
	EntityID  string                `json:"entity_id"`
	Kind      string                `json:"kind"`
	Reason    string                `json:"reason"`
	Mismatch  *domain.ValueMismatch `json:"mismatch,omitempty"`
}

// NewRejectionEnvelope flattens a domain rejection for the wire.
func NewRejectionEnvelope(commandID string, rej *domain.Rejection) RejectionEnvelope {
	return RejectionEnvelope{
		CommandID: commandID,
		EntityID:  rej.EntityID,
		Kind:      string(rej.Kind),
		Reason:    rej.Reason,
		Mismatch:  rej.Mismatch,
	}
}

// EncodeEvent packs a domain event into its wire envelope.
func EncodeEvent(evt domain.Event, commandID string) (EventEnvelope, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("encode event payload %s: %w", evt.Kind, err)
	}
	return EventEnvelope{
		EventID:       evt.ID,
		CommandID:     commandID,
		Kind:          string(evt.Kind),
		EntityID:      evt.EntityID,
		CorrelationID: evt.CorrelationID,
		Payload:       payload,
		OccurredAt:    evt.OccurredAt,
	}, nil
}

// DecodeEvent unpacks a wire envelope into a domain event. Unknown kinds are
// an error so consumers can decide whether to discard or fail.
func DecodeEvent(env EventEnvelope) (domain.Event, error) {
	payload, err := decodePayload(domain.EventKind(env.Kind), env.Payload)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:            env.EventID,
		Kind:          domain.EventKind(env.Kind),
		EntityID:      env.EntityID,
		CorrelationID: env.CorrelationID,
		OccurredAt:    env.OccurredAt,
		Payload:       payload,
	}, nil
}

func decodePayload(kind domain.EventKind, raw json.RawMessage) (domain.EventPayload, error) {
	unpack := func(target any) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return nil
	}

	switch kind {
	case domain.KindTaskCreated:
		var p domain.TaskCreated
		return p, unpack(&p)
	case domain.KindTaskDraftCreated:
		var p domain.TaskDraftCreated
		return p, unpack(&p)
	case domain.KindTaskDraftFinalized:
		return domain.TaskDraftFinalized{}, nil
	case domain.KindDescriptionUpdated:
		var p domain.TaskDescriptionUpdated
		return p, unpack(&p)
	case domain.KindPriorityUpdated:
		var p domain.TaskPriorityUpdated
		return p, unpack(&p)
	case domain.KindDueDateUpdated:
		var p domain.TaskDueDateUpdated
		return p, unpack(&p)
	case domain.KindTaskCompleted:
		return domain.TaskCompleted{}, nil
	case domain.KindTaskReopened:
		return domain.TaskReopened{}, nil
	case domain.KindTaskDeleted:
		return domain.TaskDeleted{}, nil
	case domain.KindTaskRestored:
		return domain.TaskRestored{}, nil
	case domain.KindLabelAssigned:
		var p domain.LabelAssignedToTask
		return p, unpack(&p)
	case domain.KindLabelRemoved:
		var p domain.LabelRemovedFromTask
		return p, unpack(&p)
	case domain.KindLabelCreated:
		var p domain.LabelCreated
		return p, unpack(&p)
	case domain.KindLabelDetailsUpd:
		var p domain.LabelDetailsUpdated
		return p, unpack(&p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}
}
