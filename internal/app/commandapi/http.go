package commandapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tasklist/engine/internal/app/query"
	"github.com/tasklist/engine/internal/platform/metrics"
)

// awaitTimeout caps how long a read blocks on ?await_command.
const awaitTimeout = 2 * time.Second

type Handler struct {
	Service *Service
	Queries *query.Service
}

func NewHandler(service *Service, queries *query.Service) *Handler {
	return &Handler{Service: service, Queries: queries}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/v1/commands", h.handleCommand)
	r.Get("/api/v1/tasks", h.handleActiveTasks)
	r.Get("/api/v1/tasks/all", h.handleAllTasks)
	r.Get("/api/v1/tasks/{taskID}", h.handleTask)
	r.Get("/api/v1/drafts", h.handleDrafts)
	r.Get("/api/v1/labels/{labelID}/tasks", h.handleLabelledTasks)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.DefaultHandler())

	return r
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	resp, err := h.Service.Accept(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDescriptionRequired),
			errors.Is(err, ErrEntityIDRequired),
			errors.Is(err, ErrLabelIDRequired),
			errors.Is(err, ErrLabelTitleRequired),
			errors.Is(err, ErrInvalidPriority),
			errors.Is(err, ErrInvalidPayload),
			errors.Is(err, ErrUnsupportedAction):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, resp)
}

// awaitCommand blocks the read until the command named by ?await_command has
// been decided, so a client can read its own write.
func (h *Handler) awaitCommand(r *http.Request) {
	commandID := strings.TrimSpace(r.URL.Query().Get("await_command"))
	if commandID == "" {
		return
	}
	_ = h.Queries.WaitForCommand(r.Context(), commandID, awaitTimeout)
}

func (h *Handler) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	h.awaitCommand(r)
	list, err := h.Queries.ActiveTasks(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAllTasks(w http.ResponseWriter, r *http.Request) {
	h.awaitCommand(r)
	list, err := h.Queries.AllTasks(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleDrafts(w http.ResponseWriter, r *http.Request) {
	h.awaitCommand(r)
	list, err := h.Queries.DraftTasks(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleTask(w http.ResponseWriter, r *http.Request) {
	h.awaitCommand(r)
	item, err := h.Queries.Task(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		if errors.Is(err, query.ErrTaskNotFound) {
			h.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleLabelledTasks(w http.ResponseWriter, r *http.Request) {
	h.awaitCommand(r)
	view, err := h.Queries.LabelledTasks(r.Context(), chi.URLParam(r, "labelID"))
	if err != nil {
		if errors.Is(err, query.ErrLabelNotFound) {
			h.writeError(w, http.StatusNotFound, "label not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
