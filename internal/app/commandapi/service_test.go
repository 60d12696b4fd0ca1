package commandapi

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tasklist/engine/internal/contracts"
	"github.com/tasklist/engine/internal/domain"
)

func testService(publish PublishFunc) *Service {
	svc := NewService(publish)
	svc.Now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }
	svc.NewID = func() string { return "cmd-1" }
	svc.NewEntityID = func() string { return "entity-1" }
	return svc
}

func marshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestAccept_CreateTaskMintsEntityID(t *testing.T) {
	var gotSubject string
	var gotPayload []byte
	svc := testService(func(subject string, payload []byte) error {
		gotSubject = subject
		gotPayload = payload
		return nil
	})

	resp, err := svc.Accept(CommandRequest{
		Action:  contracts.ActionCreateTask,
		Payload: marshal(t, contracts.CreateTaskPayload{Description: "write report", Priority: domain.PriorityHigh}),
	})
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if resp.Status != "accepted" || resp.CommandID != "cmd-1" || resp.EntityID != "entity-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotSubject == "" || gotSubject[:12] != "app.command." {
		t.Fatalf("unexpected subject: %q", gotSubject)
	}

	var env contracts.CommandEnvelope
	if err := json.Unmarshal(gotPayload, &env); err != nil {
		t.Fatalf("command payload invalid JSON: %v", err)
	}
	if env.Action != contracts.ActionCreateTask || env.EntityID != "entity-1" || env.CommandID != "cmd-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestAccept_CreateTaskRequiresDescription(t *testing.T) {
	svc := testService(func(string, []byte) error { return nil })
	_, err := svc.Accept(CommandRequest{
		Action:  contracts.ActionCreateTask,
		Payload: marshal(t, contracts.CreateTaskPayload{Description: "   "}),
	})
	if !errors.Is(err, ErrDescriptionRequired) {
		t.Fatalf("expected ErrDescriptionRequired, got %v", err)
	}
}

func TestAccept_InvalidPriority(t *testing.T) {
	svc := testService(func(string, []byte) error { return nil })
	_, err := svc.Accept(CommandRequest{
		Action:  contracts.ActionCreateTask,
		Payload: json.RawMessage(`{"description":"x","priority":"critical"}`),
	})
	if !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestAccept_UpdateRequiresEntityID(t *testing.T) {
	svc := testService(func(string, []byte) error { return nil })
	_, err := svc.Accept(CommandRequest{
		Action:  contracts.ActionUpdateDescription,
		Payload: marshal(t, contracts.UpdateTextPayload{Expected: "a", New: "b"}),
	})
	if !errors.Is(err, ErrEntityIDRequired) {
		t.Fatalf("expected ErrEntityIDRequired, got %v", err)
	}
}

func TestAccept_LabelActionsRouteToLabelSubject(t *testing.T) {
	var gotSubject string
	svc := testService(func(subject string, _ []byte) error {
		gotSubject = subject
		return nil
	})

	_, err := svc.Accept(CommandRequest{
		Action:  contracts.ActionCreateLabel,
		Payload: marshal(t, contracts.CreateLabelPayload{Details: domain.LabelDetails{Title: "home"}}),
	})
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	want := "app.command."
	if gotSubject[:len(want)] != want {
		t.Fatalf("unexpected subject: %q", gotSubject)
	}
	if gotSubject[len(gotSubject)-len(".label.entity-1"):] != ".label.entity-1" {
		t.Fatalf("label command must route to the label aggregate: %q", gotSubject)
	}
}

func TestAccept_CreateLabelRequiresTitle(t *testing.T) {
	svc := testService(func(string, []byte) error { return nil })
	_, err := svc.Accept(CommandRequest{
		Action:  contracts.ActionCreateLabel,
		Payload: marshal(t, contracts.CreateLabelPayload{}),
	})
	if !errors.Is(err, ErrLabelTitleRequired) {
		t.Fatalf("expected ErrLabelTitleRequired, got %v", err)
	}
}

func TestAccept_AssignLabelRequiresLabelID(t *testing.T) {
	svc := testService(func(string, []byte) error { return nil })
	_, err := svc.Accept(CommandRequest{
		Action:   contracts.ActionAssignLabel,
		EntityID: "task-1",
		Payload:  marshal(t, contracts.LabelRefPayload{}),
	})
	if !errors.Is(err, ErrLabelIDRequired) {
		t.Fatalf("expected ErrLabelIDRequired, got %v", err)
	}
}

func TestAccept_UnsupportedAction(t *testing.T) {
	svc := testService(func(string, []byte) error { return nil })
	_, err := svc.Accept(CommandRequest{Action: "archive-task", EntityID: "task-1"})
	if !errors.Is(err, ErrUnsupportedAction) {
		t.Fatalf("expected ErrUnsupportedAction, got %v", err)
	}
}

func TestAccept_NormalizesAction(t *testing.T) {
	var published bool
	svc := testService(func(string, []byte) error {
		published = true
		return nil
	})
	_, err := svc.Accept(CommandRequest{Action: " Complete-Task ", EntityID: "task-1"})
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if !published {
		t.Fatal("command not published")
	}
}
