package task

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadence/internal/model"
)

func newSQLiteRepo(t *testing.T, dir string) *SQLiteRepo {
	t.Helper()
	r, err := OpenSQLite(filepath.Join(dir, "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRoundTrip(t *testing.T) {
	r := newSQLiteRepo(t, t.TempDir())

	in := validTask("sqlite task")
	in.Description = "notes"
	in.StartDate = "2024-03-01"
	in.Project = strPtr("proj_9")
	in.Assignees = []string{"u1", "u2"}
	in.AllocatedHours = 2.5
	in.Active = true

	created, err := r.Create(in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := r.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sqlite task", got.Name)
	assert.Equal(t, model.FrequencyWeekly, got.Frequency.Kind)
	assert.Equal(t, []string{"u1", "u2"}, got.Assignees)
	assert.Equal(t, 2.5, got.AllocatedHours)
	assert.True(t, got.Active)
	require.NotNil(t, got.Project)
	assert.Equal(t, "proj_9", *got.Project)
}

func TestSQLitePatchAndDelete(t *testing.T) {
	r := newSQLiteRepo(t, t.TempDir())

	created, err := r.Create(validTask("mutate"))
	require.NoError(t, err)

	got, err := r.Update(created.ID, model.TaskPatch{
		Name:    strPtr("mutated"),
		Project: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "mutated", got.Name)
	assert.Nil(t, got.Project)

	_, err = r.Update(created.ID, model.TaskPatch{Name: strPtr("")})
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, r.Delete(created.ID))
	assert.ErrorIs(t, r.Delete(created.ID), ErrNotFound)
	_, err = r.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteAttachments(t *testing.T) {
	r := newSQLiteRepo(t, t.TempDir())

	created, err := r.Create(validTask("blobs"))
	require.NoError(t, err)

	att, err := r.AddAttachment(created.ID, model.Attachment{
		URL: "http://blobs.local/doc.pdf", Name: "doc.pdf", Folder: model.FolderAttachments,
	})
	require.NoError(t, err)
	require.NotEmpty(t, att.ID)

	got, err := r.Get(created.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "doc.pdf", got.Attachments[0].Name)

	require.NoError(t, r.RemoveAttachment(created.ID, att.ID))
	assert.ErrorIs(t, r.RemoveAttachment(created.ID, att.ID), ErrNotFound)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	r := newSQLiteRepo(t, dir)
	created, err := r.Create(validTask("durable"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	reopened := newSQLiteRepo(t, dir)
	got, err := reopened.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Name)
}

func TestSQLiteList_Filters(t *testing.T) {
	r := newSQLiteRepo(t, t.TempDir())

	a := validTask("a")
	a.Active = true
	a.StartDate = "2024-02-01"
	_, err := r.Create(a)
	require.NoError(t, err)

	b := validTask("b")
	b.StartDate = "2024-01-01"
	_, err = r.Create(b)
	require.NoError(t, err)

	all, err := r.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Name)

	activeOnly := true
	got, err := r.List(ListFilter{Active: &activeOnly})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
}
