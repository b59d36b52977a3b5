package main

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/config"
	"cadence/internal/engine"
	"cadence/internal/model"
	"cadence/internal/remote"
	"cadence/internal/serverapp"
)

// End-to-end: a real engine talking to a real server over HTTP.
func newLiveStack(t *testing.T) (*engine.Engine, *remote.Client) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Storage = "memory"
	cfg.Server.DataDir = t.TempDir()

	app, err := serverapp.New(serverapp.Options{
		Config: cfg,
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	client := remote.NewClient(srv.URL, nil)
	eng, err := engine.New(engine.Options{
		Gateway:  client,
		Uploader: client,
		Delays: engine.Delays{
			Name:           20 * time.Millisecond,
			Description:    20 * time.Millisecond,
			AllocatedHours: 20 * time.Millisecond,
		},
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng, client
}

func TestEndToEnd_CreateEditAndList(t *testing.T) {
	eng, _ := newLiveStack(t)

	ent := eng.Create(model.RecurringTask{
		Name:      "weekly review",
		Frequency: model.FrequencyRule{Kind: model.FrequencyWeekly, Interval: 1},
	})
	require.NoError(t, eng.SetPriority(ent.LocalID, "high"))
	eng.Drain()

	got, ok := eng.Get(ent.LocalID)
	require.True(t, ok)
	require.Equal(t, engine.LifecyclePersisted, got.Lifecycle)
	require.NotEmpty(t, got.RemoteID)

	// Rename with the debounced group and let the commit land remotely.
	require.NoError(t, eng.SetName(ent.LocalID, "weekly review v2"))
	require.Eventually(t, func() bool {
		cur, ok := eng.Get(ent.LocalID)
		return ok && cur.Lifecycle == engine.LifecyclePersisted
	}, 2*time.Second, 10*time.Millisecond)
	eng.Drain()
}

func TestEndToEnd_ServerNormalizesDates(t *testing.T) {
	eng, _ := newLiveStack(t)

	ent := eng.Create(model.RecurringTask{
		Name:      "dated",
		Frequency: model.FrequencyRule{Kind: model.FrequencyDaily, Interval: 1},
	})
	eng.Drain()

	start := "2026-03-10"
	end := "2026-03-01"
	require.NoError(t, eng.OnDateRangeChange(ent.LocalID, &start, &end))
	eng.Drain()

	got, ok := eng.Get(ent.LocalID)
	require.True(t, ok)
	assert.Equal(t, "2026-03-10", got.Fields.StartDate)
	assert.Equal(t, "2026-04-10", got.Fields.EndDate)
}

func TestEndToEnd_AttachmentUploadRoundTrip(t *testing.T) {
	eng, _ := newLiveStack(t)

	ent := eng.Create(model.RecurringTask{
		Name:      "with attachment",
		Frequency: model.FrequencyRule{Kind: model.FrequencyWeekly, Interval: 1},
	})
	require.NoError(t, eng.SetPriority(ent.LocalID, "medium"))
	eng.Drain()

	persisted, ok := eng.Get(ent.LocalID)
	require.True(t, ok)
	require.Equal(t, engine.LifecyclePersisted, persisted.Lifecycle)

	require.NoError(t, eng.OnAttachmentUpload(
		ent.LocalID, "diagram.png", "image/png", model.FolderAttachments, []byte("png bytes"),
	))
	eng.Drain()

	got, ok := eng.Get(ent.LocalID)
	require.True(t, ok)
	require.Len(t, got.Fields.Attachments, 1)
	att := got.Fields.Attachments[0]
	assert.NotEmpty(t, att.ID)
	assert.Contains(t, att.URL, "/blobs/")
	assert.Equal(t, model.FolderAttachments, att.Folder)
}

func TestEndToEnd_BulkDelete(t *testing.T) {
	eng, client := newLiveStack(t)

	ids := make([]string, 0, 3)
	for _, name := range []string{"one", "two", "three"} {
		ent := eng.Create(model.RecurringTask{
			Name:      name,
			Frequency: model.FrequencyRule{Kind: model.FrequencyDaily, Interval: 1},
		})
		require.NoError(t, eng.SetPriority(ent.LocalID, "low"))
		ids = append(ids, ent.LocalID)
	}
	eng.Drain()

	for _, id := range ids {
		got, ok := eng.Get(id)
		require.True(t, ok)
		require.NotEmpty(t, got.RemoteID)
	}

	for _, id := range ids[:2] {
		eng.OnSelectionToggle(id)
	}
	eng.OnBulkDeleteRequest()
	eng.Drain()

	remaining := eng.List()
	require.Len(t, remaining, 1)

	// The survivor is still on the server too.
	got, ok := eng.Get(ids[2])
	require.True(t, ok)
	_, err := client.PatchEntity(context.Background(), got.RemoteID, model.TaskPatch{})
	require.NoError(t, err)
}
