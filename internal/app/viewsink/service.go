// Package viewsink consumes event envelopes and folds them into the
// persisted read views. It keeps its own replica of aggregate state so the
// enrichment lookups work without reaching into the decision engine.
package viewsink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tasklist/engine/internal/contracts"
	"github.com/tasklist/engine/internal/domain"
	"github.com/tasklist/engine/internal/domain/label"
	"github.com/tasklist/engine/internal/domain/task"
	"github.com/tasklist/engine/internal/enrich"
	"github.com/tasklist/engine/internal/platform/metrics"
	"github.com/tasklist/engine/internal/projection"
	"github.com/tasklist/engine/internal/store/statestore"
	"github.com/tasklist/engine/internal/store/viewrepo"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")

var eventsFoldedTotal = metrics.NewCounterVec(metrics.Opts{
	Name: "events_folded_total",
	Help: "Events folded into views, by kind.",
}, []string{"kind"})

func init() {
	metrics.Default.MustRegister(eventsFoldedTotal)
}

// ViewStore persists view documents keyed by view id.
type ViewStore interface {
	Get(ctx context.Context, viewID string, target any) (uint64, error)
	Put(ctx context.Context, viewID, kind string, doc any, eventSeq uint64) error
}

type Service struct {
	Store  ViewStore
	States *statestore.Store
	Views  projection.Views
}

func NewService(store ViewStore) (*Service, error) {
	states := statestore.New()
	resolver := enrich.New()
	resolver.SetTaskStates(states)
	resolver.SetLabelStates(states)
	if err := resolver.Wire(); err != nil {
		return nil, err
	}
	return &Service{
		Store:  store,
		States: states,
		Views:  projection.NewViews(resolver),
	}, nil
}

// Handle folds one event envelope into every view it affects. Envelopes with
// unknown kinds are skipped so old sinks survive newer producers.
func (s *Service) Handle(ctx context.Context, payload []byte, eventSeq uint64) error {
	var env contracts.EventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ErrInvalidEventPayload
	}
	evt, err := contracts.DecodeEvent(env)
	if err != nil {
		if errors.Is(err, contracts.ErrUnknownEventKind) {
			return nil
		}
		return err
	}

	s.applyState(evt)

	if err := s.foldLists(ctx, evt, eventSeq); err != nil {
		return err
	}
	if err := s.foldLabelled(ctx, evt, eventSeq); err != nil {
		return err
	}
	if err := s.foldItems(ctx, evt, eventSeq); err != nil {
		return err
	}
	eventsFoldedTotal.WithLabelValues(string(evt.Kind)).Inc()
	return nil
}

// applyState advances the sink's aggregate replica before the folds run, so
// enrichment sees post-event state.
func (s *Service) applyState(evt domain.Event) {
	if isLabelAggregate(evt.Kind) {
		st, _ := s.States.LabelState(evt.EntityID)
		s.States.PutLabel(label.Apply(st, evt))
		return
	}
	st, _ := s.States.TaskState(evt.EntityID)
	s.States.PutTask(task.Apply(st, evt))
}

func (s *Service) foldLists(ctx context.Context, evt domain.Event, eventSeq uint64) error {
	folds := []struct {
		viewID string
		fold   func(projection.TaskListView, domain.Event) (projection.TaskListView, error)
	}{
		{viewrepo.ViewActiveTasks, s.Views.FoldActiveTasks},
		{viewrepo.ViewAllTasks, s.Views.FoldAllTasks},
		{viewrepo.ViewDraftTasks, s.Views.FoldDraftTasks},
	}
	for _, f := range folds {
		var list projection.TaskListView
		if _, err := s.Store.Get(ctx, f.viewID, &list); err != nil && !errors.Is(err, viewrepo.ErrViewNotFound) {
			return err
		}
		next, err := f.fold(list, evt)
		if err != nil {
			return err
		}
		if err := s.Store.Put(ctx, f.viewID, viewrepo.KindTaskList, next, eventSeq); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) foldLabelled(ctx context.Context, evt domain.Event, eventSeq uint64) error {
	for _, labelID := range s.affectedLabels(evt) {
		viewID := LabelledViewID(labelID)
		view := projection.LabelledTasksView{LabelID: labelID}
		if _, err := s.Store.Get(ctx, viewID, &view); err != nil && !errors.Is(err, viewrepo.ErrViewNotFound) {
			return err
		}
		if view.LabelID == "" {
			view.LabelID = labelID
		}
		next, err := s.Views.FoldLabelledTasks(view, evt)
		if err != nil {
			return err
		}
		if err := s.Store.Put(ctx, viewID, viewrepo.KindLabelledTasks, next, eventSeq); err != nil {
			return err
		}
	}
	return nil
}

// affectedLabels resolves which labelled views one event touches: the label
// aggregate itself, the correlated label of an assign/remove, and every label
// the task currently carries for field updates and lifecycle changes.
func (s *Service) affectedLabels(evt domain.Event) []string {
	if isLabelAggregate(evt.Kind) {
		return []string{evt.EntityID}
	}
	seen := map[string]bool{}
	var labels []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			labels = append(labels, id)
		}
	}
	add(evt.CorrelationID)
	if st, ok := s.States.TaskState(evt.EntityID); ok {
		for _, id := range st.LabelIDs {
			add(id)
		}
	}
	return labels
}

func (s *Service) foldItems(ctx context.Context, evt domain.Event, eventSeq uint64) error {
	if evt.Kind == domain.KindLabelDetailsUpd {
		// Fan the label change out to the item view of every task that
		// carries the label.
		for _, taskID := range s.States.TasksWithLabel(evt.EntityID) {
			if err := s.foldItem(ctx, taskID, evt, eventSeq); err != nil {
				return err
			}
		}
		return nil
	}
	if isLabelAggregate(evt.Kind) {
		return nil
	}
	return s.foldItem(ctx, evt.EntityID, evt, eventSeq)
}

func (s *Service) foldItem(ctx context.Context, taskID string, evt domain.Event, eventSeq uint64) error {
	viewID := TaskItemViewID(taskID)
	var item projection.TaskItem
	if _, err := s.Store.Get(ctx, viewID, &item); err != nil && !errors.Is(err, viewrepo.ErrViewNotFound) {
		return err
	}
	next, err := s.Views.FoldTaskItem(item, evt)
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, viewID, viewrepo.KindTaskItem, next, eventSeq)
}

// LabelledViewID is the document id of the per-label task view.
func LabelledViewID(labelID string) string { return "labelled:" + labelID }

// TaskItemViewID is the document id of the per-task item view.
func TaskItemViewID(taskID string) string { return "task:" + taskID }

func isLabelAggregate(kind domain.EventKind) bool {
	return strings.HasPrefix(string(kind), "label.")
}
