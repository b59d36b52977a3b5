package telemetry

import (
	"cadence/internal/model"
	"cadence/internal/task"
)

// RecordingRepo decorates a task.Repo so every successful mutation leaves an
// event in the log. Reads pass through untouched; recording failures are
// swallowed because telemetry must never fail a request.
type RecordingRepo struct {
	task.Repo
	events Repository
}

func NewRecordingRepo(inner task.Repo, events Repository) *RecordingRepo {
	return &RecordingRepo{Repo: inner, events: events}
}

func (r *RecordingRepo) record(eventType EventType, metadata EventMetadata) {
	if r.events == nil {
		return
	}
	_ = r.events.RecordEvent(eventType, metadata)
}

func (r *RecordingRepo) Create(t model.RecurringTask) (model.RecurringTask, error) {
	created, err := r.Repo.Create(t)
	if err != nil {
		return created, err
	}
	r.record(EventTaskCreated, EventMetadata{"task_id": string(created.ID)})
	return created, nil
}

func (r *RecordingRepo) Update(id model.TaskID, patch model.TaskPatch) (model.RecurringTask, error) {
	updated, err := r.Repo.Update(id, patch)
	if err != nil {
		return updated, err
	}
	r.record(EventTaskUpdated, EventMetadata{
		"task_id": string(id),
		"fields":  patchedFields(patch),
	})
	return updated, nil
}

func (r *RecordingRepo) Delete(id model.TaskID) error {
	if err := r.Repo.Delete(id); err != nil {
		return err
	}
	r.record(EventTaskDeleted, EventMetadata{"task_id": string(id)})
	return nil
}

func (r *RecordingRepo) AddAttachment(id model.TaskID, att model.Attachment) (model.Attachment, error) {
	added, err := r.Repo.AddAttachment(id, att)
	if err != nil {
		return added, err
	}
	r.record(EventAttachmentAdded, EventMetadata{
		"task_id":       string(id),
		"attachment_id": added.ID,
		"folder":        added.Folder,
	})
	return added, nil
}

func (r *RecordingRepo) RemoveAttachment(id model.TaskID, attachmentID string) error {
	if err := r.Repo.RemoveAttachment(id, attachmentID); err != nil {
		return err
	}
	r.record(EventAttachmentRemoved, EventMetadata{
		"task_id":       string(id),
		"attachment_id": attachmentID,
	})
	return nil
}

// RecordBulkDelete logs one event for a whole bulk-delete request, on top of
// the per-id task_deleted events.
func (r *RecordingRepo) RecordBulkDelete(succeeded, failed int) {
	if succeeded == 0 && failed == 0 {
		return
	}
	r.record(EventBulkDelete, EventMetadata{
		"count":  succeeded,
		"failed": failed,
	})
}

func patchedFields(p model.TaskPatch) []string {
	var fields []string
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Frequency != nil {
		fields = append(fields, "frequency")
	}
	if p.StartDate != nil || p.EndDate != nil {
		fields = append(fields, "dateRange")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Project != nil {
		fields = append(fields, "project")
	}
	if p.Assignees != nil {
		fields = append(fields, "assignees")
	}
	if p.AllocatedHours != nil {
		fields = append(fields, "allocatedHours")
	}
	if p.Active != nil {
		fields = append(fields, "active")
	}
	return fields
}
