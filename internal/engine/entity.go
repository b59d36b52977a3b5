package engine

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"cadence/internal/model"
)

// Lifecycle tracks how far a local recurring-task record has travelled
// toward the remote store.
//
//	draft      exists only locally, never created remotely
//	persisted  remote copy matches the last committed local state
//	dirty      at least one field group has an uncommitted local edit
//	deleting   a remote delete is pending; no further edits are committed
//	deleted    remote delete confirmed; the record is gone from the store
type Lifecycle string

const (
	LifecycleDraft     Lifecycle = "draft"
	LifecyclePersisted Lifecycle = "persisted"
	LifecycleDirty     Lifecycle = "dirty"
	LifecycleDeleting  Lifecycle = "deleting"
	LifecycleDeleted   Lifecycle = "deleted"
)

// FieldGroup names a cluster of entity fields committed together as one
// remote write unit.
type FieldGroup string

const (
	GroupName           FieldGroup = "name"
	GroupDescription    FieldGroup = "description"
	GroupFrequency      FieldGroup = "frequency"
	GroupDateRange      FieldGroup = "dateRange"
	GroupPriority       FieldGroup = "priority"
	GroupStatus         FieldGroup = "status"
	GroupAssignees      FieldGroup = "assignees"
	GroupProject        FieldGroup = "project"
	GroupAllocatedHours FieldGroup = "allocatedHours"

	// GroupAttachments is not a committable field group; it only labels
	// attachment upload/delete failures in commit_failed events.
	GroupAttachments FieldGroup = "attachments"
)

// Entity is one locally-held recurring task. Fields.ID mirrors RemoteID and
// is empty for drafts.
type Entity struct {
	LocalID   string
	RemoteID  model.TaskID
	Lifecycle Lifecycle
	Fields    model.RecurringTask

	// Dirty holds field groups with a pending uncommitted edit.
	Dirty map[FieldGroup]bool

	// Selected and Failed are UI state, never sent to the remote store.
	Selected bool
	Failed   bool

	seq int // insertion order, used as the stable sort tie-break
}

func (e *Entity) clone() Entity {
	out := *e
	out.Dirty = make(map[FieldGroup]bool, len(e.Dirty))
	for g, v := range e.Dirty {
		out.Dirty[g] = v
	}
	out.Fields.Assignees = append([]string(nil), e.Fields.Assignees...)
	out.Fields.Attachments = append([]model.Attachment(nil), e.Fields.Attachments...)
	return out
}

// HasRemote reports whether the entity has ever been created remotely.
func (e *Entity) HasRemote() bool { return e.RemoteID != "" }

func (e *Entity) dirtyGroups() []FieldGroup {
	out := make([]FieldGroup, 0, len(e.Dirty))
	for g, v := range e.Dirty {
		if v {
			out = append(out, g)
		}
	}
	return out
}

// newLocalID builds a draft token that can never collide with a server id:
// a distinct prefix, the creation instant and a random tail.
func newLocalID(now time.Time) string {
	return "local_" + strconv.FormatInt(now.UnixNano(), 36) + "_" + uuid.NewString()[:8]
}
