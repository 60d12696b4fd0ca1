package integration_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tasklist/engine/internal/app/commandapi"
	"github.com/tasklist/engine/internal/app/decisionengine"
	"github.com/tasklist/engine/internal/app/query"
	"github.com/tasklist/engine/internal/app/viewsink"
	"github.com/tasklist/engine/internal/contracts"
	"github.com/tasklist/engine/internal/domain"
	"github.com/tasklist/engine/internal/store/statestore"
	"github.com/tasklist/engine/internal/store/viewrepo"
)

// memoryBus routes published messages straight into the consuming services,
// standing in for JetStream. Per-entity ordering holds trivially because
// delivery is synchronous.
type memoryBus struct {
	t          *testing.T
	engine     *decisionengine.Service
	sink       *viewsink.Service
	seq        uint64
	rejections []contracts.RejectionEnvelope
}

func (b *memoryBus) publish(subject string, payload []byte) error {
	ctx := context.Background()
	switch {
	case strings.HasPrefix(subject, "app.command."):
		return b.engine.Handle(ctx, payload)
	case strings.HasPrefix(subject, "app.event."):
		b.seq++
		return b.sink.Handle(ctx, payload, b.seq)
	case strings.HasPrefix(subject, "app.rejection."):
		var rej contracts.RejectionEnvelope
		if err := json.Unmarshal(payload, &rej); err != nil {
			return err
		}
		b.rejections = append(b.rejections, rej)
		return nil
	default:
		b.t.Fatalf("unexpected subject: %q", subject)
		return nil
	}
}

type memoryViews struct {
	docs map[string][]byte
	seqs map[string]uint64
}

func newMemoryViews() *memoryViews {
	return &memoryViews{docs: map[string][]byte{}, seqs: map[string]uint64{}}
}

func (m *memoryViews) Get(_ context.Context, viewID string, target any) (uint64, error) {
	body, ok := m.docs[viewID]
	if !ok {
		return 0, viewrepo.ErrViewNotFound
	}
	if err := json.Unmarshal(body, target); err != nil {
		return 0, err
	}
	return m.seqs[viewID], nil
}

func (m *memoryViews) Put(_ context.Context, viewID, _ string, doc any, eventSeq uint64) error {
	if eventSeq < m.seqs[viewID] {
		return nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[viewID] = body
	m.seqs[viewID] = eventSeq
	return nil
}

type stack struct {
	api     *commandapi.Service
	queries *query.Service
	bus     *memoryBus
}

func newStack(t *testing.T) *stack {
	t.Helper()
	views := newMemoryViews()
	sink, err := viewsink.NewService(views)
	if err != nil {
		t.Fatalf("viewsink.NewService: %v", err)
	}

	bus := &memoryBus{t: t}
	bus.sink = sink
	bus.engine = decisionengine.NewService(bus.publish, nil, statestore.New())

	return &stack{
		api:     commandapi.NewService(bus.publish),
		queries: query.NewService(views, nil),
		bus:     bus,
	}
}

func (s *stack) send(t *testing.T, action, entityID string, payload any) commandapi.CommandResponse {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = b
	}
	resp, err := s.api.Accept(commandapi.CommandRequest{Action: action, EntityID: entityID, Payload: raw})
	if err != nil {
		t.Fatalf("Accept(%s): %v", action, err)
	}
	return resp
}

func TestTaskFlowEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	created := s.send(t, contracts.ActionCreateTask, "", contracts.CreateTaskPayload{
		Description: "write report",
		Priority:    domain.PriorityHigh,
	})
	taskID := created.EntityID
	if taskID == "" {
		t.Fatal("no entity id minted")
	}

	active, err := s.queries.ActiveTasks(ctx)
	if err != nil {
		t.Fatalf("ActiveTasks: %v", err)
	}
	if len(active.Items) != 1 || active.Items[0].Description != "write report" {
		t.Fatalf("unexpected active view: %+v", active.Items)
	}

	s.send(t, contracts.ActionCompleteTask, taskID, nil)
	active, _ = s.queries.ActiveTasks(ctx)
	if !active.Items[0].Completed {
		t.Fatalf("completion not visible: %+v", active.Items[0])
	}

	s.send(t, contracts.ActionDeleteTask, taskID, nil)
	active, _ = s.queries.ActiveTasks(ctx)
	if len(active.Items) != 0 {
		t.Fatalf("deleted task still active: %+v", active.Items)
	}
	all, _ := s.queries.AllTasks(ctx)
	if len(all.Items) != 1 || !all.Items[0].Deleted {
		t.Fatalf("all view must flag the deleted task: %+v", all.Items)
	}

	s.send(t, contracts.ActionRestoreTask, taskID, nil)
	active, _ = s.queries.ActiveTasks(ctx)
	if len(active.Items) != 1 {
		t.Fatalf("restored task missing: %+v", active.Items)
	}
	if len(s.bus.rejections) != 0 {
		t.Fatalf("unexpected rejections: %+v", s.bus.rejections)
	}
}

func TestDraftFlowEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	created := s.send(t, contracts.ActionCreateDraft, "", contracts.CreateDraftPayload{Description: "sketch"})
	drafts, _ := s.queries.DraftTasks(ctx)
	if len(drafts.Items) != 1 {
		t.Fatalf("draft missing: %+v", drafts.Items)
	}

	s.send(t, contracts.ActionFinalizeDraft, created.EntityID, nil)
	drafts, _ = s.queries.DraftTasks(ctx)
	if len(drafts.Items) != 0 {
		t.Fatalf("finalized draft still listed: %+v", drafts.Items)
	}
	active, _ := s.queries.ActiveTasks(ctx)
	if len(active.Items) != 1 || active.Items[0].Description != "sketch" {
		t.Fatalf("finalized draft not active: %+v", active.Items)
	}
}

func TestLabelFlowEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	label := s.send(t, contracts.ActionCreateLabel, "", contracts.CreateLabelPayload{
		Details: domain.LabelDetails{Title: "home", Color: "red"},
	})
	task := s.send(t, contracts.ActionCreateTask, "", contracts.CreateTaskPayload{Description: "water plants"})
	s.send(t, contracts.ActionAssignLabel, task.EntityID, contracts.LabelRefPayload{LabelID: label.EntityID})

	view, err := s.queries.LabelledTasks(ctx, label.EntityID)
	if err != nil {
		t.Fatalf("LabelledTasks: %v", err)
	}
	if view.LabelTitle != "home" || len(view.Items) != 1 {
		t.Fatalf("unexpected labelled view: %+v", view)
	}

	s.send(t, contracts.ActionUpdateLabelDetails, label.EntityID, contracts.UpdateLabelDetailsPayload{
		Expected: domain.LabelDetails{Title: "home", Color: "red"},
		New:      domain.LabelDetails{Title: "house", Color: "green"},
	})
	view, _ = s.queries.LabelledTasks(ctx, label.EntityID)
	if view.LabelTitle != "house" || view.Items[0].LabelTitle != "house" {
		t.Fatalf("label details not propagated: %+v", view)
	}

	item, err := s.queries.Task(ctx, task.EntityID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if item.LabelTitle != "house" {
		t.Fatalf("item view stale: %+v", item)
	}

	s.send(t, contracts.ActionRemoveLabel, task.EntityID, contracts.LabelRefPayload{LabelID: label.EntityID})
	view, _ = s.queries.LabelledTasks(ctx, label.EntityID)
	if len(view.Items) != 0 {
		t.Fatalf("removed task still labelled: %+v", view.Items)
	}
}

func TestCompletedTaskLabelGuardEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	label := s.send(t, contracts.ActionCreateLabel, "", contracts.CreateLabelPayload{
		Details: domain.LabelDetails{Title: "home", Color: "red"},
	})
	task := s.send(t, contracts.ActionCreateTask, "", contracts.CreateTaskPayload{Description: "done already"})
	s.send(t, contracts.ActionCompleteTask, task.EntityID, nil)
	s.send(t, contracts.ActionAssignLabel, task.EntityID, contracts.LabelRefPayload{LabelID: label.EntityID})

	if len(s.bus.rejections) != 1 {
		t.Fatalf("expected one rejection, got %d", len(s.bus.rejections))
	}
	if rej := s.bus.rejections[0]; rej.Kind != string(domain.RejectInvalidStatus) || rej.EntityID != task.EntityID {
		t.Fatalf("unexpected rejection: %+v", rej)
	}

	view, err := s.queries.LabelledTasks(ctx, label.EntityID)
	if err != nil {
		t.Fatalf("LabelledTasks: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("refused assignment must not reach the labelled view: %+v", view.Items)
	}
}

func TestRejectionFlowEndToEnd(t *testing.T) {
	s := newStack(t)

	created := s.send(t, contracts.ActionCreateTask, "", contracts.CreateTaskPayload{Description: "stored"})
	s.send(t, contracts.ActionUpdateDescription, created.EntityID, contracts.UpdateTextPayload{
		Expected: "believed",
		New:      "next",
	})

	if len(s.bus.rejections) != 1 {
		t.Fatalf("expected one rejection, got %d", len(s.bus.rejections))
	}
	rej := s.bus.rejections[0]
	if rej.Kind != string(domain.RejectValueMismatch) || rej.Mismatch == nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	expected, actual, newValue, err := rej.Mismatch.TextValues()
	if err != nil {
		t.Fatalf("TextValues: %v", err)
	}
	if expected != "believed" || actual != "stored" || newValue != "next" {
		t.Fatalf("unexpected mismatch values: %q %q %q", expected, actual, newValue)
	}

	// The rejected command changed nothing.
	item, err := s.queries.Task(context.Background(), created.EntityID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if item.Description != "stored" {
		t.Fatalf("rejected command mutated the view: %+v", item)
	}
}
