package contracts

import (
	"errors"
	"testing"
	"time"

	"github.com/tasklist/engine/internal/domain"
)

func TestEncodeDecodeEvent(t *testing.T) {
	evt := domain.Event{
		ID:         "evt-1",
		Kind:       domain.KindTaskCreated,
		EntityID:   "task-1",
		OccurredAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Payload:    domain.TaskCreated{Description: "write report", Priority: domain.PriorityHigh},
	}

	env, err := EncodeEvent(evt, "cmd-1")
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	if env.Kind != "task.created" || env.CommandID != "cmd-1" || env.EntityID != "task-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	decoded, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	p, ok := decoded.Payload.(domain.TaskCreated)
	if !ok {
		t.Fatalf("unexpected payload type: %T", decoded.Payload)
	}
	if p.Description != "write report" || p.Priority != domain.PriorityHigh {
		t.Fatalf("payload lost on the wire: %+v", p)
	}
	if !decoded.OccurredAt.Equal(evt.OccurredAt) {
		t.Fatalf("occurred_at lost on the wire: %v", decoded.OccurredAt)
	}
}

func TestDecodeEvent_CorrelationID(t *testing.T) {
	evt := domain.Event{
		ID:            "evt-2",
		Kind:          domain.KindLabelAssigned,
		EntityID:      "task-1",
		CorrelationID: "label-1",
		OccurredAt:    time.Now().UTC(),
		Payload:       domain.LabelAssignedToTask{LabelID: "label-1"},
	}
	env, err := EncodeEvent(evt, "")
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	decoded, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if decoded.CorrelationID != "label-1" {
		t.Fatalf("correlation id lost: %q", decoded.CorrelationID)
	}
}

func TestDecodeEvent_EmptyPayloadKinds(t *testing.T) {
	for _, kind := range []string{
		"task.draft-finalized", "task.completed", "task.reopened", "task.deleted", "task.restored",
	} {
		decoded, err := DecodeEvent(EventEnvelope{EventID: "e", Kind: kind, EntityID: "task-1"})
		if err != nil {
			t.Fatalf("DecodeEvent(%s): %v", kind, err)
		}
		if string(decoded.Payload.EventKind()) != kind {
			t.Fatalf("kind mismatch: %s vs %s", decoded.Payload.EventKind(), kind)
		}
	}
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	_, err := DecodeEvent(EventEnvelope{EventID: "e", Kind: "task.archived", EntityID: "task-1"})
	if !errors.Is(err, ErrUnknownEventKind) {
		t.Fatalf("expected ErrUnknownEventKind, got %v", err)
	}
}

func TestNewRejectionEnvelope(t *testing.T) {
	m := domain.MismatchOfLongText("a", "b", "c", 4)
	rej := domain.NewMismatchRejection("task-1", "description has changed", m)

	env := NewRejectionEnvelope("cmd-9", rej)
	if env.CommandID != "cmd-9" || env.EntityID != "task-1" || env.Kind != "value_mismatch" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Mismatch == nil || env.Mismatch.Version != 4 {
		t.Fatalf("mismatch detail lost: %+v", env.Mismatch)
	}
}

func TestIsLabelAction(t *testing.T) {
	if !IsLabelAction(ActionCreateLabel) || !IsLabelAction(ActionUpdateLabelDetails) {
		t.Fatal("label actions not recognized")
	}
	if IsLabelAction(ActionAssignLabel) {
		t.Fatal("assign-label targets the task aggregate")
	}
}
