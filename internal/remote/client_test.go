package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/blob"
	"cadence/internal/engine"
	"cadence/internal/model"
	"cadence/internal/task"
)

func newClientAgainstServer(t *testing.T) (*Client, *task.MemoryRepo) {
	t.Helper()

	repo := task.NewMemoryRepo()
	taskH := task.NewHandler(repo)
	store, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	blobH := blob.NewHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/recurring", taskH.RecurringRoot)
	mux.HandleFunc("/api/recurring/bulk-delete", taskH.BulkDelete)
	mux.HandleFunc("/api/recurring/", taskH.RecurringSub)
	mux.HandleFunc("/api/blobs", blobH.Upload)
	mux.HandleFunc("/blobs/", blobH.Serve)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client()), repo
}

func sample(name string) model.RecurringTask {
	return model.RecurringTask{
		Name:      name,
		Frequency: model.FrequencyRule{Kind: model.FrequencyWeekly, Interval: 1},
	}
}

func TestClientCreateAndPatch(t *testing.T) {
	c, _ := newClientAgainstServer(t)
	ctx := context.Background()

	created, err := c.CreateEntity(ctx, sample("from client"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	name := "renamed"
	updated, err := c.PatchEntity(ctx, created.ID, model.TaskPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
}

func TestClientCreate_ValidationError(t *testing.T) {
	c, _ := newClientAgainstServer(t)

	_, err := c.CreateEntity(context.Background(), model.RecurringTask{Name: ""})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "name")
}

func TestClientPatch_MissingIsConflict(t *testing.T) {
	c, _ := newClientAgainstServer(t)

	name := "x"
	_, err := c.PatchEntity(context.Background(), "task_gone", model.TaskPatch{Name: &name})
	var cerr *engine.ConflictError
	assert.ErrorAs(t, err, &cerr)
}

func TestClientDelete(t *testing.T) {
	c, repo := newClientAgainstServer(t)
	created, err := repo.Create(sample("doomed"))
	require.NoError(t, err)

	require.NoError(t, c.DeleteEntity(context.Background(), created.ID))
	_, err = repo.Get(created.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestClientBulkDelete(t *testing.T) {
	c, repo := newClientAgainstServer(t)
	a, err := repo.Create(sample("a"))
	require.NoError(t, err)
	b, err := repo.Create(sample("b"))
	require.NoError(t, err)

	res, err := c.BulkDeleteEntities(context.Background(), []model.TaskID{a.ID, b.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.TaskID{a.ID, b.ID}, res.Succeeded)
	assert.Empty(t, res.Failed)
}

func TestClientToggleActive(t *testing.T) {
	c, repo := newClientAgainstServer(t)
	created, err := repo.Create(sample("toggle"))
	require.NoError(t, err)

	active, err := c.ToggleActive(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = c.ToggleActive(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestClientAttachments(t *testing.T) {
	c, repo := newClientAgainstServer(t)
	created, err := repo.Create(sample("files"))
	require.NoError(t, err)
	ctx := context.Background()

	att, err := c.RegisterAttachment(ctx, created.ID, model.Attachment{
		URL: "http://blobs.local/x.png", Folder: model.FolderDescription,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, att.ID)

	require.NoError(t, c.RemoveAttachment(ctx, created.ID, att.ID))
	var cerr *engine.ConflictError
	assert.ErrorAs(t, c.RemoveAttachment(ctx, created.ID, att.ID), &cerr)
}

func TestClientUpload(t *testing.T) {
	c, _ := newClientAgainstServer(t)

	url, err := c.Upload(context.Background(), "shot.png", "image/png", []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "/blobs/"))
	assert.True(t, strings.HasPrefix(url, "http"), "upload returns an absolute URL")

	_, err = c.Upload(context.Background(), "empty.bin", "application/octet-stream", nil)
	var verr *engine.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestClientTransportError(t *testing.T) {
	// a server that is already gone
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, nil)

	_, err := c.CreateEntity(context.Background(), sample("unreachable"))
	var nerr *engine.NetworkError
	assert.ErrorAs(t, err, &nerr)
}
