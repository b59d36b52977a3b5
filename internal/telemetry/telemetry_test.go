package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/model"
	"cadence/internal/task"
)

func TestMemoryRepository_FilterByTypeAndTime(t *testing.T) {
	r := NewMemoryRepository()
	require.NoError(t, r.RecordEvent(EventTaskCreated, EventMetadata{"task_id": "t1"}))
	require.NoError(t, r.RecordEvent(EventTaskDeleted, EventMetadata{"task_id": "t1"}))

	all, err := r.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	created, err := r.GetEvents(time.Time{}, []EventType{EventTaskCreated})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, EventTaskCreated, created[0].Type)

	future, err := r.GetEvents(time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Empty(t, future)

	require.NoError(t, r.Clear())
	all, err = r.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecordingRepo(t *testing.T) {
	events := NewMemoryRepository()
	repo := NewRecordingRepo(task.NewMemoryRepo(), events)

	created, err := repo.Create(model.RecurringTask{
		Name:      "tracked",
		Frequency: model.FrequencyRule{Kind: model.FrequencyDaily, Interval: 1},
	})
	require.NoError(t, err)

	name := "renamed"
	start := "2024-01-01"
	_, err = repo.Update(created.ID, model.TaskPatch{Name: &name, StartDate: &start})
	require.NoError(t, err)

	att, err := repo.AddAttachment(created.ID, model.Attachment{
		URL: "http://blobs.local/x.png", Folder: model.FolderAttachments,
	})
	require.NoError(t, err)
	require.NoError(t, repo.RemoveAttachment(created.ID, att.ID))
	require.NoError(t, repo.Delete(created.ID))

	got, err := events.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	types := make([]EventType, 0, len(got))
	for _, e := range got {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventTaskCreated, EventTaskUpdated,
		EventAttachmentAdded, EventAttachmentRemoved, EventTaskDeleted,
	}, types)
}

func TestRecordingRepo_NoEventOnFailure(t *testing.T) {
	events := NewMemoryRepository()
	repo := NewRecordingRepo(task.NewMemoryRepo(), events)

	_, err := repo.Create(model.RecurringTask{Name: ""})
	require.Error(t, err)

	got, err := events.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordBulkDelete(t *testing.T) {
	events := NewMemoryRepository()
	repo := NewRecordingRepo(task.NewMemoryRepo(), events)

	repo.RecordBulkDelete(3, 2)
	repo.RecordBulkDelete(0, 0) // empty request leaves no event

	got, err := events.GetEvents(time.Time{}, []EventType{EventBulkDelete})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Metadata, `"count":3`)
	assert.Contains(t, got[0].Metadata, `"failed":2`)
}

func TestCalculateStats(t *testing.T) {
	r := NewMemoryRepository()
	require.NoError(t, r.RecordEvent(EventTaskCreated, EventMetadata{"task_id": "t1"}))
	require.NoError(t, r.RecordEvent(EventTaskUpdated, EventMetadata{
		"task_id": "t1", "fields": []string{"name", "status"},
	}))
	require.NoError(t, r.RecordEvent(EventTaskUpdated, EventMetadata{
		"task_id": "t1", "fields": []string{"name"},
	}))
	require.NoError(t, r.RecordEvent(EventBulkDelete, EventMetadata{"count": 3}))

	events, err := r.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	stats, err := CalculateStats(events, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TasksCreated)
	assert.Equal(t, 1, stats.BulkDeletes)
	assert.Equal(t, 2, stats.UpdatesByField["name"])
	assert.Equal(t, 1, stats.UpdatesByField["status"])
	assert.Equal(t, 2, stats.EventCounts[EventTaskUpdated])
}
