package serverapp

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/config"
	"cadence/internal/model"
)

func newTestApp(t *testing.T, storage string) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Storage = storage
	cfg.Server.DataDir = t.TempDir()
	cfg.Server.SQLitePath = cfg.Server.DataDir + "/cadence.db"

	app, err := New(Options{
		Config: cfg,
		Logger: log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestApp(t, "memory")

	var health map[string]any
	require.Equal(t, 200, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "cadence", health["service"])

	require.Equal(t, 200, getJSON(t, srv.URL+"/readyz", nil))
}

func TestConfigEndpoint(t *testing.T) {
	srv := newTestApp(t, "memory")

	var cfg config.Config
	require.Equal(t, 200, getJSON(t, srv.URL+"/api/config", &cfg))
	assert.Equal(t, "memory", cfg.Server.Storage)
	assert.Equal(t, 300, cfg.Sync.NameDebounceMS)
}

func TestTaskFlowRecordsTelemetry(t *testing.T) {
	srv := newTestApp(t, "memory")

	body, _ := json.Marshal(model.RecurringTask{
		Name:      "wired",
		Frequency: model.FrequencyRule{Kind: model.FrequencyWeekly, Interval: 1},
	})
	resp, err := http.Post(srv.URL+"/api/recurring", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	var created model.RecurringTask
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	var tasks []model.RecurringTask
	require.Equal(t, 200, getJSON(t, srv.URL+"/api/recurring", &tasks))
	require.Len(t, tasks, 1)

	var events []map[string]any
	require.Equal(t, 200, getJSON(t, srv.URL+"/api/events", &events))
	require.Len(t, events, 1)
	assert.Equal(t, "task_created", events[0]["type"])

	var stats struct {
		TasksCreated int `json:"tasks_created"`
	}
	require.Equal(t, 200, getJSON(t, srv.URL+"/api/stats", &stats))
	assert.Equal(t, 1, stats.TasksCreated)
}

func TestBulkDeleteRecordsOneEvent(t *testing.T) {
	srv := newTestApp(t, "memory")

	ids := make([]string, 0, 2)
	for _, name := range []string{"first", "second"} {
		body, _ := json.Marshal(model.RecurringTask{
			Name:      name,
			Frequency: model.FrequencyRule{Kind: model.FrequencyDaily, Interval: 1},
		})
		resp, err := http.Post(srv.URL+"/api/recurring", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, 201, resp.StatusCode)
		var created model.RecurringTask
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		resp.Body.Close()
		ids = append(ids, string(created.ID))
	}

	body, _ := json.Marshal(map[string][]string{"ids": ids})
	resp, err := http.Post(srv.URL+"/api/recurring/bulk-delete", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	resp.Body.Close()

	var events []map[string]any
	require.Equal(t, 200, getJSON(t, srv.URL+"/api/events?type=bulk_delete", &events))
	require.Len(t, events, 1)

	var stats struct {
		BulkDeletes  int `json:"bulk_deletes"`
		TasksDeleted int `json:"tasks_deleted"`
	}
	require.Equal(t, 200, getJSON(t, srv.URL+"/api/stats", &stats))
	assert.Equal(t, 1, stats.BulkDeletes)
	assert.Equal(t, 2, stats.TasksDeleted)
}

func TestStorageBackends(t *testing.T) {
	for _, storage := range []string{"memory", "file", "sqlite"} {
		t.Run(storage, func(t *testing.T) {
			srv := newTestApp(t, storage)

			body, _ := json.Marshal(model.RecurringTask{
				Name:      "stored",
				Frequency: model.FrequencyRule{Kind: model.FrequencyDaily, Interval: 1},
			})
			resp, err := http.Post(srv.URL+"/api/recurring", "application/json", bytes.NewReader(body))
			require.NoError(t, err)
			require.Equal(t, 201, resp.StatusCode)
			resp.Body.Close()

			var tasks []model.RecurringTask
			require.Equal(t, 200, getJSON(t, srv.URL+"/api/recurring", &tasks))
			assert.Len(t, tasks, 1)
		})
	}
}

func TestBlobUploadAndServe(t *testing.T) {
	srv := newTestApp(t, "memory")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/blobs", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Blob-Name", "notes.txt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	var up struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	resp.Body.Close()

	resp, err = http.Get(srv.URL + up.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestUnknownStorageRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Storage = "redis"
	cfg.Server.DataDir = t.TempDir()

	_, err := New(Options{Config: cfg, Logger: log.New(io.Discard, "", 0)})
	require.Error(t, err)
}
