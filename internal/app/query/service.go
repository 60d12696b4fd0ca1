// Package query serves the persisted read views to the HTTP API.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/tasklist/engine/internal/app/viewsink"
	"github.com/tasklist/engine/internal/projection"
	"github.com/tasklist/engine/internal/store/viewrepo"
)

var ErrTaskNotFound = errors.New("task not found")
var ErrLabelNotFound = errors.New("label not found")

// ViewReader loads view documents by id.
type ViewReader interface {
	Get(ctx context.Context, viewID string, target any) (uint64, error)
}

// CommandTracker reports whether a command's events have been logged. Used
// for read-your-write polling.
type CommandTracker interface {
	CommandApplied(ctx context.Context, commandID string) (bool, error)
}

type Service struct {
	Views   ViewReader
	Tracker CommandTracker
}

func NewService(views ViewReader, tracker CommandTracker) *Service {
	return &Service{Views: views, Tracker: tracker}
}

func (s *Service) listView(ctx context.Context, viewID string) (projection.TaskListView, error) {
	var list projection.TaskListView
	_, err := s.Views.Get(ctx, viewID, &list)
	if err != nil {
		if errors.Is(err, viewrepo.ErrViewNotFound) {
			return projection.TaskListView{}, nil
		}
		return projection.TaskListView{}, err
	}
	return list, nil
}

// ActiveTasks returns the open and completed tasks; deleted ones are gone.
func (s *Service) ActiveTasks(ctx context.Context) (projection.TaskListView, error) {
	return s.listView(ctx, viewrepo.ViewActiveTasks)
}

// AllTasks returns every task ever created, deleted ones flagged.
func (s *Service) AllTasks(ctx context.Context) (projection.TaskListView, error) {
	return s.listView(ctx, viewrepo.ViewAllTasks)
}

// DraftTasks returns the unfinalized drafts.
func (s *Service) DraftTasks(ctx context.Context) (projection.TaskListView, error) {
	return s.listView(ctx, viewrepo.ViewDraftTasks)
}

// Task returns the entity view of one task.
func (s *Service) Task(ctx context.Context, taskID string) (projection.TaskItem, error) {
	var item projection.TaskItem
	_, err := s.Views.Get(ctx, viewsink.TaskItemViewID(taskID), &item)
	if err != nil {
		if errors.Is(err, viewrepo.ErrViewNotFound) {
			return projection.TaskItem{}, ErrTaskNotFound
		}
		return projection.TaskItem{}, err
	}
	return item, nil
}

// LabelledTasks returns the tasks carrying one label.
func (s *Service) LabelledTasks(ctx context.Context, labelID string) (projection.LabelledTasksView, error) {
	var view projection.LabelledTasksView
	_, err := s.Views.Get(ctx, viewsink.LabelledViewID(labelID), &view)
	if err != nil {
		if errors.Is(err, viewrepo.ErrViewNotFound) {
			return projection.LabelledTasksView{}, ErrLabelNotFound
		}
		return projection.LabelledTasksView{}, err
	}
	return view, nil
}

// WaitForCommand polls until the command's events are logged or the timeout
// passes. Rejected commands never produce events, so a timeout is not an
// error; the caller just reads the current view.
func (s *Service) WaitForCommand(ctx context.Context, commandID string, timeout time.Duration) error {
	if s.Tracker == nil || commandID == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	deadline := time.Now().Add(timeout)
	delay := 20 * time.Millisecond
	for time.Now().Before(deadline) {
		applied, err := s.Tracker.CommandApplied(ctx, commandID)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		nextDelay := time.Duration(float64(delay) * 1.5)
		if nextDelay > 250*time.Millisecond {
			nextDelay = 250 * time.Millisecond
		}
		delay = nextDelay
	}
	return nil
}
