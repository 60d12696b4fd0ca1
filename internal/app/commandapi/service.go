// Package commandapi accepts writes over HTTP, validates them and publishes
// command envelopes for the decision engine.
package commandapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nuid"

	"github.com/tasklist/engine/internal/contracts"
	"github.com/tasklist/engine/internal/domain"
	"github.com/tasklist/engine/internal/platform/metrics"
	"github.com/tasklist/engine/internal/sharding"
)

var ErrDescriptionRequired = errors.New("description is required")
var ErrEntityIDRequired = errors.New("entity_id is required")
var ErrLabelIDRequired = errors.New("label_id is required")
var ErrLabelTitleRequired = errors.New("label title is required")
var ErrInvalidPriority = errors.New("invalid priority")
var ErrInvalidPayload = errors.New("invalid payload")
var ErrUnsupportedAction = errors.New("unsupported action")

var commandsAcceptedTotal = metrics.NewCounterVec(metrics.Opts{
	Name: "commands_accepted_total",
	Help: "Commands accepted by the API, by action.",
}, []string{"action"})

func init() {
	metrics.Default.MustRegister(commandsAcceptedTotal)
}

type PublishFunc func(subject string, payload []byte) error

type Service struct {
	Publish     PublishFunc
	Now         func() time.Time
	NewID       func() string
	NewEntityID func() string
}

// CommandRequest is the write request body. Payload is action-specific and
// forwarded to the decision engine after validation.
type CommandRequest struct {
	Action   string          `json:"action"`
	EntityID string          `json:"entity_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type CommandResponse struct {
	Status    string `json:"status"`
	CommandID string `json:"command_id"`
	EntityID  string `json:"entity_id"`
}

func NewService(publish PublishFunc) *Service {
	return &Service{
		Publish:     publish,
		Now:         func() time.Time { return time.Now().UTC() },
		NewID:       nuid.Next,
		NewEntityID: uuid.NewString,
	}
}

// Accept validates one command request and publishes it. Creation actions
// mint the entity id when the caller did not supply one.
func (s *Service) Accept(req CommandRequest) (CommandResponse, error) {
	action := strings.TrimSpace(strings.ToLower(req.Action))
	entityID := strings.TrimSpace(req.EntityID)

	if err := validatePayload(action, req.Payload); err != nil {
		return CommandResponse{}, err
	}

	if entityID == "" {
		if !isCreateAction(action) {
			return CommandResponse{}, ErrEntityIDRequired
		}
		entityID = s.NewEntityID()
	}

	env := contracts.CommandEnvelope{
		CommandID: s.NewID(),
		Action:    action,
		EntityID:  entityID,
		Payload:   req.Payload,
		CreatedAt: s.Now(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return CommandResponse{}, err
	}

	entityKind := sharding.EntityTask
	if contracts.IsLabelAction(action) {
		entityKind = sharding.EntityLabel
	}
	if err := s.Publish(sharding.CommandSubject(entityKind, entityID), body); err != nil {
		return CommandResponse{}, err
	}

	commandsAcceptedTotal.WithLabelValues(action).Inc()
	return CommandResponse{
		Status:    "accepted",
		CommandID: env.CommandID,
		EntityID:  entityID,
	}, nil
}

func isCreateAction(action string) bool {
	return action == contracts.ActionCreateTask ||
		action == contracts.ActionCreateDraft ||
		action == contracts.ActionCreateLabel
}

// validatePayload rejects malformed requests before they reach the engine.
// Domain guards (status, mismatches) stay with the deciders; only shape and
// required fields are checked here.
func validatePayload(action string, raw json.RawMessage) error {
	decode := func(target any) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return ErrInvalidPayload
		}
		return nil
	}

	switch action {
	case contracts.ActionCreateTask:
		var p contracts.CreateTaskPayload
		if err := decode(&p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Description) == "" {
			return ErrDescriptionRequired
		}
		if _, ok := domain.ParsePriority(string(p.Priority)); !ok {
			return ErrInvalidPriority
		}
		return nil
	case contracts.ActionCreateDraft:
		var p contracts.CreateDraftPayload
		if err := decode(&p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Description) == "" {
			return ErrDescriptionRequired
		}
		return nil
	case contracts.ActionUpdateDescription:
		var p contracts.UpdateTextPayload
		if err := decode(&p); err != nil {
			return err
		}
		if strings.TrimSpace(p.New) == "" {
			return ErrDescriptionRequired
		}
		return nil
	case contracts.ActionUpdatePriority:
		var p contracts.UpdatePriorityPayload
		if err := decode(&p); err != nil {
			return err
		}
		if _, ok := domain.ParsePriority(string(p.New)); !ok {
			return ErrInvalidPriority
		}
		if _, ok := domain.ParsePriority(string(p.Expected)); !ok {
			return ErrInvalidPriority
		}
		return nil
	case contracts.ActionUpdateDueDate:
		var p contracts.UpdateDueDatePayload
		return decode(&p)
	case contracts.ActionFinalizeDraft,
		contracts.ActionCompleteTask,
		contracts.ActionReopenTask,
		contracts.ActionDeleteTask,
		contracts.ActionRestoreTask:
		return nil
	case contracts.ActionAssignLabel, contracts.ActionRemoveLabel:
		var p contracts.LabelRefPayload
		if err := decode(&p); err != nil {
			return err
		}
		if strings.TrimSpace(p.LabelID) == "" {
			return ErrLabelIDRequired
		}
		return nil
	case contracts.ActionCreateLabel:
		var p contracts.CreateLabelPayload
		if err := decode(&p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Details.Title) == "" {
			return ErrLabelTitleRequired
		}
		return nil
	case contracts.ActionUpdateLabelDetails:
		var p contracts.UpdateLabelDetailsPayload
		if err := decode(&p); err != nil {
			return err
		}
		if strings.TrimSpace(p.New.Title) == "" {
			return ErrLabelTitleRequired
		}
		return nil
	default:
		return ErrUnsupportedAction
	}
}
