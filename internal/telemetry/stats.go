package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period             string            `json:"period"`
	EventCounts        map[EventType]int `json:"event_counts"`
	TasksCreated       int               `json:"tasks_created"`
	TasksDeleted       int               `json:"tasks_deleted"`
	BulkDeletes        int               `json:"bulk_deletes"`
	AttachmentsAdded   int               `json:"attachments_added"`
	AttachmentsRemoved int               `json:"attachments_removed"`
	UpdatesByField     map[string]int    `json:"updates_by_field"`
}

// CalculateStats summarizes sync activity from events.
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:         since.Format("2006-01-02"),
		EventCounts:    make(map[EventType]int),
		UpdatesByField: make(map[string]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventTaskCreated:
			stats.TasksCreated++
		case EventTaskDeleted:
			stats.TasksDeleted++
		case EventBulkDelete:
			stats.BulkDeletes++
		case EventAttachmentAdded:
			stats.AttachmentsAdded++
		case EventAttachmentRemoved:
			stats.AttachmentsRemoved++
		case EventTaskUpdated:
			if fields, ok := metadata["fields"].([]interface{}); ok {
				for _, f := range fields {
					if name, ok := f.(string); ok {
						stats.UpdatesByField[name]++
					}
				}
			}
		}
	}

	return stats, nil
}
