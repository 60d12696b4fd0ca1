// Package decisionengine consumes command envelopes, runs them through the
// aggregate deciders and publishes the resulting events or rejections.
package decisionengine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tasklist/engine/internal/contracts"
	"github.com/tasklist/engine/internal/domain"
	"github.com/tasklist/engine/internal/domain/label"
	"github.com/tasklist/engine/internal/domain/task"
	"github.com/tasklist/engine/internal/platform/metrics"
	"github.com/tasklist/engine/internal/sharding"
	"github.com/tasklist/engine/internal/store/statestore"
)

var ErrInvalidCommandPayload = errors.New("invalid command payload")

// ErrUnsupportedCommandAction prevents unknown write-model transitions.
var ErrUnsupportedCommandAction = errors.New("unsupported command action")

var decisionsTotal = metrics.NewCounterVec(metrics.Opts{
	Name: "decisions_total",
	Help: "Commands decided, by action and outcome.",
}, []string{"action", "outcome"})

func init() {
	metrics.Default.MustRegister(decisionsTotal)
}

type PublishFunc func(subject string, payload []byte) error

// EventLog persists accepted events before they are published. A nil log
// keeps the engine purely in memory.
type EventLog interface {
	Append(ctx context.Context, envelopes ...contracts.EventEnvelope) error
	Replay(ctx context.Context, entityID string) ([]domain.Event, error)
	CommandEvents(ctx context.Context, commandID string) ([]contracts.EventEnvelope, error)
}

type Service struct {
	Publish PublishFunc
	Log     EventLog
	States  *statestore.Store
	Tasks   *task.Decider
	Labels  *label.Decider
}

func NewService(publish PublishFunc, log EventLog, states *statestore.Store) *Service {
	return &Service{
		Publish: publish,
		Log:     log,
		States:  states,
		Tasks:   task.NewDecider(),
		Labels:  label.NewDecider(),
	}
}

// Handle decides one command envelope. Guard and mismatch failures publish a
// rejection and return nil: the command was handled, the caller must not
// redeliver it.
func (s *Service) Handle(ctx context.Context, payload []byte) error {
	var env contracts.CommandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ErrInvalidCommandPayload
	}
	if env.EntityID == "" {
		return ErrInvalidCommandPayload
	}
	if s.Log != nil {
		done, err := s.announceLogged(ctx, env.CommandID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if contracts.IsLabelAction(env.Action) {
		return s.handleLabel(ctx, env)
	}
	return s.handleTask(ctx, env)
}

func (s *Service) handleTask(ctx context.Context, env contracts.CommandEnvelope) error {
	cmd, err := taskCommand(env)
	if err != nil {
		return err
	}

	st, ok := s.States.TaskState(env.EntityID)
	if !ok && s.Log != nil {
		history, err := s.Log.Replay(ctx, env.EntityID)
		if err != nil {
			return err
		}
		st = task.Replay(history)
	}

	events, err := s.Tasks.Decide(st, cmd)
	if err != nil {
		return s.refuse(env, err)
	}

	if err := s.commit(ctx, env, events); err != nil {
		return err
	}
	for _, evt := range events {
		st = task.Apply(st, evt)
	}
	s.States.PutTask(st)
	decisionsTotal.WithLabelValues(env.Action, "accepted").Inc()
	return s.announce(env, sharding.EntityTask, events)
}

func (s *Service) handleLabel(ctx context.Context, env contracts.CommandEnvelope) error {
	cmd, err := labelCommand(env)
	if err != nil {
		return err
	}

	st, ok := s.States.LabelState(env.EntityID)
	if !ok && s.Log != nil {
		history, err := s.Log.Replay(ctx, env.EntityID)
		if err != nil {
			return err
		}
		st = label.Replay(history)
	}

	events, err := s.Labels.Decide(st, cmd)
	if err != nil {
		return s.refuse(env, err)
	}

	if err := s.commit(ctx, env, events); err != nil {
		return err
	}
	for _, evt := range events {
		st = label.Apply(st, evt)
	}
	s.States.PutLabel(st)
	decisionsTotal.WithLabelValues(env.Action, "accepted").Inc()
	return s.announce(env, sharding.EntityLabel, events)
}

// announceLogged republishes the events of a command that an earlier
// delivery already committed. A redelivery that re-decided against the
// post-event state would refuse its own command and the logged events would
// never reach the event stream.
func (s *Service) announceLogged(ctx context.Context, commandID string) (bool, error) {
	envelopes, err := s.Log.CommandEvents(ctx, commandID)
	if err != nil || len(envelopes) == 0 {
		return false, err
	}
	for _, wire := range envelopes {
		body, err := json.Marshal(wire)
		if err != nil {
			return false, err
		}
		entityKind := sharding.EntityTask
		if strings.HasPrefix(wire.Kind, "label.") {
			entityKind = sharding.EntityLabel
		}
		if err := s.Publish(sharding.EventSubject(entityKind, wire.EntityID), body); err != nil {
			return false, err
		}
	}
	return true, nil
}

// refuse publishes a rejection for domain refusals and propagates everything
// else as a processing error.
func (s *Service) refuse(env contracts.CommandEnvelope, err error) error {
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		return err
	}
	body, marshalErr := json.Marshal(contracts.NewRejectionEnvelope(env.CommandID, rej))
	if marshalErr != nil {
		return marshalErr
	}
	if pubErr := s.Publish(sharding.RejectionSubject(env.CommandID), body); pubErr != nil {
		return pubErr
	}
	decisionsTotal.WithLabelValues(env.Action, "rejected").Inc()
	return nil
}

func (s *Service) commit(ctx context.Context, env contracts.CommandEnvelope, events []domain.Event) error {
	if s.Log == nil {
		return nil
	}
	envelopes := make([]contracts.EventEnvelope, 0, len(events))
	for _, evt := range events {
		wire, err := contracts.EncodeEvent(evt, env.CommandID)
		if err != nil {
			return err
		}
		envelopes = append(envelopes, wire)
	}
	return s.Log.Append(ctx, envelopes...)
}

func (s *Service) announce(env contracts.CommandEnvelope, entityKind string, events []domain.Event) error {
	for _, evt := range events {
		wire, err := contracts.EncodeEvent(evt, env.CommandID)
		if err != nil {
			return err
		}
		body, err := json.Marshal(wire)
		if err != nil {
			return err
		}
		if err := s.Publish(sharding.EventSubject(entityKind, evt.EntityID), body); err != nil {
			return err
		}
	}
	return nil
}

func taskCommand(env contracts.CommandEnvelope) (task.Command, error) {
	switch env.Action {
	case contracts.ActionCreateTask:
		var p contracts.CreateTaskPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.Create{
			TaskID:      env.EntityID,
			Description: p.Description,
			Priority:    p.Priority,
			DueDate:     p.DueDate,
		}, nil
	case contracts.ActionCreateDraft:
		var p contracts.CreateDraftPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.CreateDraft{TaskID: env.EntityID, Description: p.Description}, nil
	case contracts.ActionFinalizeDraft:
		return task.FinalizeDraft{TaskID: env.EntityID}, nil
	case contracts.ActionUpdateDescription:
		var p contracts.UpdateTextPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.UpdateDescription{TaskID: env.EntityID, Expected: p.Expected, New: p.New}, nil
	case contracts.ActionUpdatePriority:
		var p contracts.UpdatePriorityPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.UpdatePriority{TaskID: env.EntityID, Expected: p.Expected, New: p.New}, nil
	case contracts.ActionUpdateDueDate:
		var p contracts.UpdateDueDatePayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.UpdateDueDate{TaskID: env.EntityID, Expected: p.Expected, New: p.New}, nil
	case contracts.ActionCompleteTask:
		return task.Complete{TaskID: env.EntityID}, nil
	case contracts.ActionReopenTask:
		return task.Reopen{TaskID: env.EntityID}, nil
	case contracts.ActionDeleteTask:
		return task.Delete{TaskID: env.EntityID}, nil
	case contracts.ActionRestoreTask:
		return task.Restore{TaskID: env.EntityID}, nil
	case contracts.ActionAssignLabel:
		var p contracts.LabelRefPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.AssignLabel{TaskID: env.EntityID, LabelID: p.LabelID}, nil
	case contracts.ActionRemoveLabel:
		var p contracts.LabelRefPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return task.RemoveLabel{TaskID: env.EntityID, LabelID: p.LabelID}, nil
	default:
		return nil, ErrUnsupportedCommandAction
	}
}

func labelCommand(env contracts.CommandEnvelope) (label.Command, error) {
	switch env.Action {
	case contracts.ActionCreateLabel:
		var p contracts.CreateLabelPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return label.Create{LabelID: env.EntityID, Details: p.Details}, nil
	case contracts.ActionUpdateLabelDetails:
		var p contracts.UpdateLabelDetailsPayload
		if err := unpack(env.Payload, &p); err != nil {
			return nil, err
		}
		return label.UpdateDetails{LabelID: env.EntityID, Expected: p.Expected, New: p.New}, nil
	default:
		return nil, ErrUnsupportedCommandAction
	}
}

func unpack(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return ErrInvalidCommandPayload
	}
	return nil
}
