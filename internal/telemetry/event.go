package telemetry

import "time"

type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskUpdated       EventType = "task_updated"
	EventTaskDeleted       EventType = "task_deleted"
	EventBulkDelete        EventType = "bulk_delete"
	EventAttachmentAdded   EventType = "attachment_added"
	EventAttachmentRemoved EventType = "attachment_removed"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
