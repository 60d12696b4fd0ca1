package projection

import (
	"errors"
	"fmt"

	"github.com/tasklist/engine/internal/domain"
)

// ErrBadPayload reports an event whose payload type does not match its kind.
// This is a programmer error and is propagated, never defaulted.
var ErrBadPayload = errors.New("projection: event payload does not match its kind")

// Enricher joins cross-aggregate data into views at fold time. Missing
// targets resolve to zero values, not errors.
type Enricher interface {
	TaskDetails(taskID string) (domain.TaskDetails, error)
	LabelDetails(labelID string) (domain.LabelDetails, error)
	TaskLabelIDs(taskID string) ([]string, error)
}

// Views bundles the fold dispatch tables with the enricher they consult.
// All fold methods are pure with respect to their view argument.
type Views struct {
	Enrich Enricher
}

func NewViews(enricher Enricher) Views {
	return Views{Enrich: enricher}
}

func payloadAs[T domain.EventPayload](evt domain.Event) (T, error) {
	p, ok := evt.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: kind %s carries %T", ErrBadPayload, evt.Kind, evt.Payload)
	}
	return p, nil
}

type listFold func(v Views, list TaskListView, evt domain.Event) (TaskListView, error)

type labelledFold func(v Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error)

// FoldActiveTasks maintains the list of tasks a user is working with:
// open and completed tasks, with deleted tasks removed entirely.
func (v Views) FoldActiveTasks(list TaskListView, evt domain.Event) (TaskListView, error) {
	fn, ok := activeTaskFolds[evt.Kind]
	if !ok {
		return list, nil
	}
	return fn(v, list, evt)
}

// FoldAllTasks maintains the list of every task ever created. Deleted tasks
// stay in the list flagged as deleted; a restore clears the flag.
func (v Views) FoldAllTasks(list TaskListView, evt domain.Event) (TaskListView, error) {
	fn, ok := allTaskFolds[evt.Kind]
	if !ok {
		return list, nil
	}
	return fn(v, list, evt)
}

// FoldDraftTasks maintains the list of unfinalized drafts.
func (v Views) FoldDraftTasks(list TaskListView, evt domain.Event) (TaskListView, error) {
	fn, ok := draftTaskFolds[evt.Kind]
	if !ok {
		return list, nil
	}
	return fn(v, list, evt)
}

// FoldLabelledTasks maintains the per-label view of tasks carrying that
// label. Events for other labels pass through unchanged.
func (v Views) FoldLabelledTasks(view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
	fn, ok := labelledTaskFolds[evt.Kind]
	if !ok {
		return view, nil
	}
	return fn(v, view, evt)
}

var activeTaskFolds = map[domain.EventKind]listFold{
	domain.KindTaskCreated:        foldListTaskCreated,
	domain.KindTaskDraftFinalized: foldListTaskEnriched,
	domain.KindTaskRestored:       foldListTaskEnriched,
	domain.KindDescriptionUpdated: foldListDescriptionUpdated,
	domain.KindPriorityUpdated:    foldListPriorityUpdated,
	domain.KindDueDateUpdated:     foldListDueDateUpdated,
	domain.KindTaskCompleted:      foldListCompleted,
	domain.KindTaskReopened:       foldListReopened,
	domain.KindTaskDeleted: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		return TaskListView{Items: removeByTaskID(list.Items, evt.EntityID)}, nil
	},
	domain.KindLabelAssigned:   foldListLabelAssigned,
	domain.KindLabelRemoved:    foldListLabelRemoved,
	domain.KindLabelDetailsUpd: foldListLabelDetailsUpdated,
}

var allTaskFolds = map[domain.EventKind]listFold{
	domain.KindTaskCreated: foldListTaskCreated,
	domain.KindTaskDraftCreated: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		p, err := payloadAs[domain.TaskDraftCreated](evt)
		if err != nil {
			return list, err
		}
		return TaskListView{Items: upsertItem(list.Items, TaskItem{
			ID:          evt.EntityID,
			Description: p.Description,
		})}, nil
	},
	domain.KindTaskDraftFinalized: foldListTaskEnriched,
	domain.KindDescriptionUpdated: foldListDescriptionUpdated,
	domain.KindPriorityUpdated:    foldListPriorityUpdated,
	domain.KindDueDateUpdated:     foldListDueDateUpdated,
	domain.KindTaskCompleted:      foldListCompleted,
	domain.KindTaskReopened:       foldListReopened,
	domain.KindTaskDeleted: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
			item.Deleted = true
			return item
		})}, nil
	},
	domain.KindTaskRestored: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
			item.Deleted = false
			return item
		})}, nil
	},
	domain.KindLabelAssigned:   foldListLabelAssigned,
	domain.KindLabelRemoved:    foldListLabelRemoved,
	domain.KindLabelDetailsUpd: foldListLabelDetailsUpdated,
}

var draftTaskFolds = map[domain.EventKind]listFold{
	domain.KindTaskDraftCreated: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		p, err := payloadAs[domain.TaskDraftCreated](evt)
		if err != nil {
			return list, err
		}
		return TaskListView{Items: upsertItem(list.Items, TaskItem{
			ID:          evt.EntityID,
			Description: p.Description,
		})}, nil
	},
	domain.KindDescriptionUpdated: foldListDescriptionUpdated,
	domain.KindTaskDraftFinalized: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		return TaskListView{Items: removeByTaskID(list.Items, evt.EntityID)}, nil
	},
	domain.KindTaskDeleted: func(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
		return TaskListView{Items: removeByTaskID(list.Items, evt.EntityID)}, nil
	},
}

var labelledTaskFolds = map[domain.EventKind]labelledFold{
	domain.KindLabelAssigned: foldLabelledAssigned,
	domain.KindLabelRemoved:  foldLabelledRemoved,
	domain.KindTaskDeleted: func(_ Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
		view.Items = removeByTaskID(view.Items, evt.EntityID)
		return view, nil
	},
	domain.KindTaskRestored:       foldLabelledRestored,
	domain.KindDescriptionUpdated: labelledFieldFold(foldListDescriptionUpdated),
	domain.KindPriorityUpdated:    labelledFieldFold(foldListPriorityUpdated),
	domain.KindDueDateUpdated:     labelledFieldFold(foldListDueDateUpdated),
	domain.KindTaskCompleted:      labelledFieldFold(foldListCompleted),
	domain.KindTaskReopened:       labelledFieldFold(foldListReopened),
	domain.KindLabelCreated:       foldLabelledCreated,
	domain.KindLabelDetailsUpd:    foldLabelledDetailsUpdated,
}

func foldListTaskCreated(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.TaskCreated](evt)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: upsertItem(list.Items, TaskItem{
		ID:          evt.EntityID,
		Description: p.Description,
		Priority:    p.Priority,
		DueDate:     p.DueDate,
	})}, nil
}

// foldListTaskEnriched rebuilds a list entry from the task's current state.
// Used when the event itself carries no field data (finalize, restore).
func foldListTaskEnriched(v Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	details, err := v.Enrich.TaskDetails(evt.EntityID)
	if err != nil {
		return list, err
	}
	item := TaskItem{
		ID:          evt.EntityID,
		Description: details.Description,
		Priority:    details.Priority,
		DueDate:     details.DueDate,
	}
	labelIDs, err := v.Enrich.TaskLabelIDs(evt.EntityID)
	if err != nil {
		return list, err
	}
	if len(labelIDs) > 0 {
		labelID := labelIDs[len(labelIDs)-1]
		labelDetails, err := v.Enrich.LabelDetails(labelID)
		if err != nil {
			return list, err
		}
		item.LabelID = labelID
		item.LabelTitle = labelDetails.Title
		item.LabelColor = labelDetails.Color
	}
	return TaskListView{Items: upsertItem(list.Items, item)}, nil
}

func foldListDescriptionUpdated(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.TaskDescriptionUpdated](evt)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.Description = p.New
		return item
	})}, nil
}

func foldListPriorityUpdated(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.TaskPriorityUpdated](evt)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.Priority = p.New
		return item
	})}, nil
}

func foldListDueDateUpdated(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.TaskDueDateUpdated](evt)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.DueDate = p.New
		return item
	})}, nil
}

func foldListCompleted(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.Completed = true
		return item
	})}, nil
}

func foldListReopened(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.Completed = false
		return item
	})}, nil
}

func foldListLabelAssigned(v Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.LabelAssignedToTask](evt)
	if err != nil {
		return list, err
	}
	details, err := v.Enrich.LabelDetails(p.LabelID)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.LabelID = p.LabelID
		item.LabelTitle = details.Title
		item.LabelColor = details.Color
		return item
	})}, nil
}

func foldListLabelRemoved(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.LabelRemovedFromTask](evt)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: updateByTaskID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		if item.LabelID == p.LabelID {
			item.LabelID = ""
			item.LabelTitle = ""
			item.LabelColor = ""
		}
		return item
	})}, nil
}

func foldListLabelDetailsUpdated(_ Views, list TaskListView, evt domain.Event) (TaskListView, error) {
	p, err := payloadAs[domain.LabelDetailsUpdated](evt)
	if err != nil {
		return list, err
	}
	return TaskListView{Items: updateByLabelID(list.Items, evt.EntityID, func(item TaskItem) TaskItem {
		item.LabelTitle = p.New.Title
		item.LabelColor = p.New.Color
		return item
	})}, nil
}

// labelledFieldFold lifts a task-list field fold onto the labelled view's
// item list.
func labelledFieldFold(fold listFold) labelledFold {
	return func(v Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
		list, err := fold(v, TaskListView{Items: view.Items}, evt)
		if err != nil {
			return view, err
		}
		view.Items = list.Items
		return view, nil
	}
}

func foldLabelledAssigned(v Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
	p, err := payloadAs[domain.LabelAssignedToTask](evt)
	if err != nil {
		return view, err
	}
	if p.LabelID != view.LabelID {
		return view, nil
	}
	item, err := labelledItem(v, evt.EntityID, view.LabelID)
	if err != nil {
		return view, err
	}
	view.Items = upsertItem(view.Items, item)
	return view, nil
}

func foldLabelledRemoved(_ Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
	p, err := payloadAs[domain.LabelRemovedFromTask](evt)
	if err != nil {
		return view, err
	}
	if p.LabelID != view.LabelID {
		return view, nil
	}
	view.Items = removeByTaskID(view.Items, evt.EntityID)
	return view, nil
}

// foldLabelledRestored re-adds a restored task when it still carries the
// view's label.
func foldLabelledRestored(v Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
	labelIDs, err := v.Enrich.TaskLabelIDs(evt.EntityID)
	if err != nil {
		return view, err
	}
	carries := false
	for _, id := range labelIDs {
		if id == view.LabelID {
			carries = true
			break
		}
	}
	if !carries {
		return view, nil
	}
	item, err := labelledItem(v, evt.EntityID, view.LabelID)
	if err != nil {
		return view, err
	}
	view.Items = upsertItem(view.Items, item)
	return view, nil
}

func foldLabelledCreated(_ Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
	p, err := payloadAs[domain.LabelCreated](evt)
	if err != nil {
		return view, err
	}
	if evt.EntityID != view.LabelID {
		return view, nil
	}
	view.LabelTitle = p.Details.Title
	view.LabelColor = p.Details.Color
	return view, nil
}

func foldLabelledDetailsUpdated(_ Views, view LabelledTasksView, evt domain.Event) (LabelledTasksView, error) {
	p, err := payloadAs[domain.LabelDetailsUpdated](evt)
	if err != nil {
		return view, err
	}
	if evt.EntityID != view.LabelID {
		return view, nil
	}
	view.LabelTitle = p.New.Title
	view.LabelColor = p.New.Color
	view.Items = updateByLabelID(view.Items, view.LabelID, func(item TaskItem) TaskItem {
		item.LabelTitle = p.New.Title
		item.LabelColor = p.New.Color
		return item
	})
	return view, nil
}

// labelledItem builds a labelled-view entry from current task and label
// state.
func labelledItem(v Views, taskID, labelID string) (TaskItem, error) {
	details, err := v.Enrich.TaskDetails(taskID)
	if err != nil {
		return TaskItem{}, err
	}
	labelDetails, err := v.Enrich.LabelDetails(labelID)
	if err != nil {
		return TaskItem{}, err
	}
	return TaskItem{
		ID:          taskID,
		Description: details.Description,
		Priority:    details.Priority,
		DueDate:     details.DueDate,
		Completed:   details.Status == domain.StatusCompleted,
		LabelID:     labelID,
		LabelTitle:  labelDetails.Title,
		LabelColor:  labelDetails.Color,
	}, nil
}
