package projection

import "github.com/tasklist/engine/internal/domain"

// FoldTaskItem is the entity-view fold: it matches by id, returns an updated
// copy when the event targets this item and the input unchanged otherwise.
// Label-details events match through the item's label id instead.
func (v Views) FoldTaskItem(item TaskItem, evt domain.Event) (TaskItem, error) {
	if evt.Kind == domain.KindLabelDetailsUpd {
		p, err := payloadAs[domain.LabelDetailsUpdated](evt)
		if err != nil {
			return item, err
		}
		if item.LabelID != evt.EntityID {
			return item, nil
		}
		item.LabelTitle = p.New.Title
		item.LabelColor = p.New.Color
		return item, nil
	}

	if item.ID == "" {
		// Only creation events materialize a fresh item; anything else on a
		// zero item is out of order and passes through.
		switch evt.Payload.(type) {
		case domain.TaskCreated, domain.TaskDraftCreated:
		default:
			return item, nil
		}
	} else if evt.EntityID != item.ID {
		return item, nil
	}

	switch p := evt.Payload.(type) {
	case domain.TaskCreated:
		return TaskItem{
			ID:          evt.EntityID,
			Description: p.Description,
			Priority:    p.Priority,
			DueDate:     p.DueDate,
		}, nil
	case domain.TaskDraftCreated:
		return TaskItem{
			ID:          evt.EntityID,
			Description: p.Description,
		}, nil
	case domain.TaskDescriptionUpdated:
		item.Description = p.New
	case domain.TaskPriorityUpdated:
		item.Priority = p.New
	case domain.TaskDueDateUpdated:
		item.DueDate = p.New
	case domain.TaskCompleted:
		item.Completed = true
	case domain.TaskReopened:
		item.Completed = false
	case domain.TaskDeleted:
		item.Deleted = true
	case domain.TaskRestored:
		item.Deleted = false
	case domain.LabelAssignedToTask:
		details, err := v.Enrich.LabelDetails(p.LabelID)
		if err != nil {
			return item, err
		}
		item.LabelID = p.LabelID
		item.LabelTitle = details.Title
		item.LabelColor = details.Color
	case domain.LabelRemovedFromTask:
		if item.LabelID == p.LabelID {
			item.LabelID = ""
			item.LabelTitle = ""
			item.LabelColor = ""
		}
	}
	return item, nil
}
