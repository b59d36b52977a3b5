// Package engine implements the recurring-task synchronization core: the
// local entity store, the debounced commit scheduler, attachment
// reconciliation and selection/bulk-delete control. It talks to the remote
// store only through the Gateway and Uploader seams and never blocks a
// caller on the network; local state is optimistic until a commit resolves.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cadence/internal/model"
)

var ErrNotFound = errors.New("entity not found")

type Options struct {
	Gateway  Gateway
	Uploader Uploader
	Clock    Clock
	Delays   Delays
	Sort     SortMode
	Logger   *log.Logger
}

type Engine struct {
	store    *Store
	sched    *Scheduler
	gateway  Gateway
	uploader Uploader
	bus      *Bus
	sel      *Selection
	clock    Clock
	logger   *log.Logger
	ctx      context.Context

	mu   sync.Mutex
	sort SortMode
}

func New(opts Options) (*Engine, error) {
	if opts.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Delays == (Delays{}) {
		opts.Delays = DefaultDelays()
	}
	if opts.Sort == "" {
		opts.Sort = SortByStartDate
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	e := &Engine{
		store:    NewStore(opts.Clock),
		gateway:  opts.Gateway,
		uploader: opts.Uploader,
		bus:      NewBus(),
		sel:      newSelection(),
		clock:    opts.Clock,
		logger:   opts.Logger,
		ctx:      context.Background(),
		sort:     opts.Sort,
	}
	e.sched = NewScheduler(opts.Delays, e.commit)
	return e, nil
}

func (e *Engine) Events() *Bus { return e.bus }

func (e *Engine) Subscribe(fn func(Event)) { e.bus.Subscribe(fn) }

func (e *Engine) Get(id string) (Entity, bool) { return e.store.Get(id) }

func (e *Engine) List() []Entity { return e.store.List() }

func (e *Engine) SetSortMode(mode SortMode) {
	e.mu.Lock()
	e.sort = mode
	e.mu.Unlock()
}

// ListOrdered returns entities the way the list view renders them: fresh
// drafts on top, then the active sort.
func (e *Engine) ListOrdered() []Entity {
	e.mu.Lock()
	mode := e.sort
	e.mu.Unlock()
	return e.store.ListOrdered(mode)
}

// Create adds a local draft. Nothing is sent until a structural edit or an
// explicit flush triggers creation.
func (e *Engine) Create(fields model.RecurringTask) Entity {
	ent := e.store.Create(fields)
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: ent.LocalID})
	return ent
}

// OnFieldEdit dispatches a generic field-group edit to the typed intent.
// UI collaborators that already know the field should call the typed
// methods directly.
func (e *Engine) OnFieldEdit(localID string, group FieldGroup, value any) error {
	switch group {
	case GroupName:
		v, ok := value.(string)
		if !ok {
			return &ValidationError{Field: "name", Message: "expected string"}
		}
		return e.SetName(localID, v)
	case GroupDescription:
		v, ok := value.(string)
		if !ok {
			return &ValidationError{Field: "description", Message: "expected string"}
		}
		return e.SetDescription(localID, v)
	case GroupFrequency:
		v, ok := value.(model.FrequencyRule)
		if !ok {
			return &ValidationError{Field: "frequency", Message: "expected frequency rule"}
		}
		return e.OnFrequencyChange(localID, v)
	case GroupPriority:
		v, ok := value.(string)
		if !ok {
			return &ValidationError{Field: "priority", Message: "expected string"}
		}
		return e.SetPriority(localID, v)
	case GroupStatus:
		v, ok := value.(string)
		if !ok {
			return &ValidationError{Field: "status", Message: "expected string"}
		}
		return e.SetStatus(localID, v)
	case GroupProject:
		v, ok := value.(string)
		if !ok {
			return &ValidationError{Field: "project", Message: "expected string"}
		}
		return e.SetProject(localID, v)
	case GroupAssignees:
		v, ok := value.([]string)
		if !ok {
			return &ValidationError{Field: "assignees", Message: "expected string slice"}
		}
		return e.SetAssignees(localID, v)
	case GroupAllocatedHours:
		v, ok := value.(float64)
		if !ok {
			return &ValidationError{Field: "allocatedHours", Message: "expected float"}
		}
		return e.SetAllocatedHours(localID, v)
	default:
		return &ValidationError{Field: string(group), Message: "unknown field group"}
	}
}

// SetName applies the edit locally. An empty name is kept on screen but is
// never committed: the edit is rejected before any commit is scheduled.
func (e *Engine) SetName(localID, name string) error {
	if _, ok := e.editable(localID); !ok {
		return ErrNotFound
	}
	e.store.Mutate(localID, func(ent *Entity) { ent.Fields.Name = name })
	if strings.TrimSpace(name) == "" {
		e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
		return &ValidationError{Field: "name", Message: "name must not be empty"}
	}
	e.markAndSchedule(localID, GroupName)
	return nil
}

// SetDescription applies the edit, sweeps description-folder attachments
// whose media URL the new content no longer references (orphan detection)
// and schedules the debounced commit. Queued orphan deletes always resolve
// before the description commit because they share the commit queue.
func (e *Engine) SetDescription(localID, content string) error {
	snap, ok := e.editable(localID)
	if !ok {
		return ErrNotFound
	}
	e.store.Mutate(localID, func(ent *Entity) { ent.Fields.Description = content })
	for _, attID := range orphanedAttachments(snap, content) {
		e.enqueueAttachmentDelete(localID, attID)
	}
	e.markAndSchedule(localID, GroupDescription)
	return nil
}

func (e *Engine) OnFrequencyChange(localID string, rule model.FrequencyRule) error {
	if !rule.Valid() {
		return &ValidationError{Field: "frequency", Message: "interval must be a positive integer"}
	}
	if _, ok := e.editable(localID); !ok {
		return ErrNotFound
	}
	e.store.Mutate(localID, func(ent *Entity) { ent.Fields.Frequency = rule })
	e.markAndSchedule(localID, GroupFrequency)
	return nil
}

// OnDateRangeChange applies either or both date edits. If the edit would
// leave endDate before startDate, the end date is advanced to one month
// past the start and that correction rides the same dateRange commit.
func (e *Engine) OnDateRangeChange(localID string, start, end *string) error {
	if _, ok := e.editable(localID); !ok {
		return ErrNotFound
	}
	if start != nil && *start != "" {
		if _, err := time.Parse(model.DateLayout, *start); err != nil {
			return &ValidationError{Field: "startDate", Message: "want YYYY-MM-DD"}
		}
	}
	if end != nil && *end != "" {
		if _, err := time.Parse(model.DateLayout, *end); err != nil {
			return &ValidationError{Field: "endDate", Message: "want YYYY-MM-DD"}
		}
	}

	e.store.Mutate(localID, func(ent *Entity) {
		if start != nil {
			ent.Fields.StartDate = *start
		}
		if end != nil {
			ent.Fields.EndDate = *end
		}
		ent.Fields.StartDate, ent.Fields.EndDate = normalizeDateRange(ent.Fields.StartDate, ent.Fields.EndDate)
	})
	e.markAndSchedule(localID, GroupDateRange)
	return nil
}

// normalizeDateRange keeps endDate >= startDate, advancing the end date to
// one month past the start when violated.
func normalizeDateRange(start, end string) (string, string) {
	if start == "" || end == "" {
		return start, end
	}
	s, err := time.Parse(model.DateLayout, start)
	if err != nil {
		return start, end
	}
	t, err := time.Parse(model.DateLayout, end)
	if err != nil {
		return start, end
	}
	if t.Before(s) {
		end = s.AddDate(0, 1, 0).Format(model.DateLayout)
	}
	return start, end
}

func (e *Engine) SetPriority(localID, priority string) error {
	return e.simpleEdit(localID, GroupPriority, func(ent *Entity) { ent.Fields.Priority = priority })
}

func (e *Engine) SetStatus(localID, status string) error {
	return e.simpleEdit(localID, GroupStatus, func(ent *Entity) { ent.Fields.Status = status })
}

// SetProject assigns the project ref; an empty id clears it.
func (e *Engine) SetProject(localID, projectID string) error {
	return e.simpleEdit(localID, GroupProject, func(ent *Entity) {
		if projectID == "" {
			ent.Fields.Project = nil
			return
		}
		ent.Fields.Project = &projectID
	})
}

func (e *Engine) SetAssignees(localID string, userIDs []string) error {
	cp := append([]string(nil), userIDs...)
	return e.simpleEdit(localID, GroupAssignees, func(ent *Entity) { ent.Fields.Assignees = cp })
}

func (e *Engine) SetAllocatedHours(localID string, hours float64) error {
	if hours < 0 {
		return &ValidationError{Field: "allocatedHours", Message: "must not be negative"}
	}
	return e.simpleEdit(localID, GroupAllocatedHours, func(ent *Entity) { ent.Fields.AllocatedHours = hours })
}

func (e *Engine) simpleEdit(localID string, group FieldGroup, fn func(*Entity)) error {
	if _, ok := e.editable(localID); !ok {
		return ErrNotFound
	}
	e.store.Mutate(localID, fn)
	e.markAndSchedule(localID, group)
	return nil
}

// editable returns the entity unless it is already on its way out.
func (e *Engine) editable(localID string) (Entity, bool) {
	snap, ok := e.store.Get(localID)
	if !ok {
		return Entity{}, false
	}
	if snap.Lifecycle == LifecycleDeleting || snap.Lifecycle == LifecycleDeleted {
		return Entity{}, false
	}
	return snap, true
}

func (e *Engine) markAndSchedule(localID string, group FieldGroup) {
	e.store.MarkDirty(localID, group)
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
	e.sched.Schedule(localID, group)
}

// OnToggleActive flips the active flag optimistically. For persisted
// entities the dedicated toggle call reconciles the server's answer; the
// optimistic value is kept on failure.
func (e *Engine) OnToggleActive(localID string) error {
	snap, ok := e.editable(localID)
	if !ok {
		return ErrNotFound
	}
	e.store.Mutate(localID, func(ent *Entity) { ent.Fields.Active = !ent.Fields.Active })
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
	if !snap.HasRemote() {
		// a draft carries the flag on create
		return nil
	}
	e.sched.Enqueue(func() {
		active, err := e.gateway.ToggleActive(e.ctx, snap.RemoteID)
		if err != nil {
			e.logger.Printf("toggle active %s: %v", localID, err)
			e.bus.publish(Event{Type: EventCommitFailed, LocalID: localID, Group: GroupStatus, Err: err})
			return
		}
		e.store.Mutate(localID, func(ent *Entity) { ent.Fields.Active = active })
		e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
	})
	return nil
}

// OnDeleteRequest deletes one entity. Drafts vanish locally with zero
// gateway calls; persisted entities enter the terminal deleting state and
// are removed once the remote confirms.
func (e *Engine) OnDeleteRequest(localID string) error {
	snap, ok := e.store.Get(localID)
	if !ok {
		return ErrNotFound
	}
	if snap.Lifecycle == LifecycleDeleting {
		return nil
	}
	if snap.Lifecycle == LifecycleDraft {
		e.sched.Cancel(localID)
		e.removeLocally(localID)
		return nil
	}

	e.store.MarkDeleting(localID)
	e.sched.Cancel(localID)
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
	e.sched.Enqueue(func() {
		if err := e.gateway.DeleteEntity(e.ctx, snap.RemoteID); err != nil {
			e.logger.Printf("delete %s: %v", localID, err)
			e.store.Mutate(localID, func(ent *Entity) {
				ent.Failed = true
				if len(ent.Dirty) > 0 {
					ent.Lifecycle = LifecycleDirty
				} else {
					ent.Lifecycle = LifecyclePersisted
				}
			})
			e.bus.publish(Event{Type: EventCommitFailed, LocalID: localID, Err: err})
			return
		}
		e.removeLocally(localID)
	})
	return nil
}

func (e *Engine) removeLocally(localID string) {
	e.sel.Remove(localID)
	e.store.Remove(localID)
	e.bus.publish(Event{Type: EventEntityRemoved, LocalID: localID})
	if e.sel.OpenPanel() == localID {
		e.sel.SetOpenPanel("")
		e.bus.publish(Event{Type: EventPanelClosed, LocalID: localID})
	}
}

// OnSelectionToggle flips one row's selection.
func (e *Engine) OnSelectionToggle(localID string) {
	on := e.sel.Toggle(localID)
	e.store.Mutate(localID, func(ent *Entity) { ent.Selected = on })
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
}

// OnSelectAll selects or clears every currently listed entity.
func (e *Engine) OnSelectAll(on bool) {
	for _, ent := range e.store.List() {
		e.sel.Set(ent.LocalID, on)
		e.store.Mutate(ent.LocalID, func(x *Entity) { x.Selected = on })
	}
}

// OnBulkDeleteRequest deletes the selected set. Drafts are removed locally;
// the rest go out as one bulk call. Partial failure is reported per id:
// failed entities stay in the store, flagged and still selected, while the
// succeeded subset is removed regardless.
func (e *Engine) OnBulkDeleteRequest() {
	var draftIDs []string
	var pendingIDs []string
	var remoteIDs []model.TaskID

	for _, ent := range e.store.List() {
		if !ent.Selected {
			continue
		}
		switch ent.Lifecycle {
		case LifecycleDraft:
			draftIDs = append(draftIDs, ent.LocalID)
		case LifecyclePersisted, LifecycleDirty:
			pendingIDs = append(pendingIDs, ent.LocalID)
			remoteIDs = append(remoteIDs, ent.RemoteID)
		}
	}

	for _, id := range draftIDs {
		e.sched.Cancel(id)
		e.removeLocally(id)
	}

	if len(pendingIDs) == 0 {
		e.bus.publish(Event{Type: EventBulkDeleteCompleted, SucceededIDs: draftIDs})
		return
	}

	for _, id := range pendingIDs {
		e.store.MarkDeleting(id)
		e.sched.Cancel(id)
	}

	e.sched.Enqueue(func() {
		res, err := e.gateway.BulkDeleteEntities(e.ctx, remoteIDs)
		ok := map[model.TaskID]bool{}
		if err != nil {
			e.logger.Printf("bulk delete: %v", err)
		} else {
			for _, id := range res.Succeeded {
				ok[id] = true
			}
		}

		succeeded := append([]string(nil), draftIDs...)
		var failed []string
		for i, localID := range pendingIDs {
			if ok[remoteIDs[i]] {
				succeeded = append(succeeded, localID)
				e.removeLocally(localID)
				continue
			}
			failed = append(failed, localID)
			e.store.Mutate(localID, func(ent *Entity) {
				ent.Failed = true
				if len(ent.Dirty) > 0 {
					ent.Lifecycle = LifecycleDirty
				} else {
					ent.Lifecycle = LifecyclePersisted
				}
			})
		}
		e.bus.publish(Event{Type: EventBulkDeleteCompleted, SucceededIDs: succeeded, FailedIDs: failed})
	})
}

// OnAttachmentUpload hands the bytes to the blob collaborator, registers the
// returned URL with the remote store and only then appends the attachment to
// the local list. Failures leave the list untouched.
func (e *Engine) OnAttachmentUpload(localID, name, contentType, folder string, data []byte) error {
	if e.uploader == nil {
		return errors.New("no uploader configured")
	}
	if folder != model.FolderDescription && folder != model.FolderAttachments {
		return &ValidationError{Field: "folder", Message: "unknown attachment folder"}
	}
	snap, ok := e.editable(localID)
	if !ok {
		return ErrNotFound
	}
	if !snap.HasRemote() {
		return &ValidationError{Field: "attachments", Message: "save the task before attaching files"}
	}

	e.sched.Enqueue(func() {
		url, err := e.uploader.Upload(e.ctx, name, contentType, data)
		if err != nil {
			e.logger.Printf("upload %s: %v", name, err)
			e.bus.publish(Event{Type: EventCommitFailed, LocalID: localID, Group: GroupAttachments, Err: err})
			return
		}
		att, err := e.gateway.RegisterAttachment(e.ctx, snap.RemoteID, model.Attachment{
			URL:    url,
			Type:   contentType,
			Name:   name,
			Folder: folder,
		})
		if err != nil {
			e.logger.Printf("register attachment %s: %v", name, err)
			e.bus.publish(Event{Type: EventCommitFailed, LocalID: localID, Group: GroupAttachments, Err: err})
			return
		}
		e.store.Mutate(localID, func(ent *Entity) {
			ent.Fields.Attachments = append(ent.Fields.Attachments, att)
		})
		e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
	})
	return nil
}

// OnAttachmentDelete removes one attachment by id. The remote delete must
// succeed before the item leaves the local list; inline media additionally
// has its reference stripped from the description, and that change is
// committed like any other description edit.
func (e *Engine) OnAttachmentDelete(localID, attachmentID string) error {
	snap, ok := e.editable(localID)
	if !ok {
		return ErrNotFound
	}
	found := false
	for _, att := range snap.Fields.Attachments {
		if att.ID == attachmentID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("attachment not found: %s", attachmentID)
	}
	e.enqueueAttachmentDelete(localID, attachmentID)
	return nil
}

func (e *Engine) enqueueAttachmentDelete(localID, attachmentID string) {
	e.sched.Enqueue(func() {
		snap, ok := e.store.Get(localID)
		if !ok || !snap.HasRemote() {
			return
		}
		var target *model.Attachment
		for i := range snap.Fields.Attachments {
			if snap.Fields.Attachments[i].ID == attachmentID {
				target = &snap.Fields.Attachments[i]
				break
			}
		}
		if target == nil {
			// already gone; nothing to resurrect
			return
		}

		if err := e.gateway.RemoveAttachment(e.ctx, snap.RemoteID, attachmentID); err != nil {
			e.logger.Printf("remove attachment %s: %v", attachmentID, err)
			e.bus.publish(Event{Type: EventCommitFailed, LocalID: localID, Group: GroupAttachments, Err: err})
			return
		}

		stripped := false
		e.store.Mutate(localID, func(ent *Entity) {
			kept := ent.Fields.Attachments[:0]
			for _, att := range ent.Fields.Attachments {
				if att.ID != attachmentID {
					kept = append(kept, att)
				}
			}
			ent.Fields.Attachments = kept
			if target.Folder == model.FolderDescription && strings.Contains(ent.Fields.Description, target.URL) {
				ent.Fields.Description = stripMediaReference(ent.Fields.Description, target.URL)
				ent.Dirty[GroupDescription] = true
				if ent.Lifecycle == LifecyclePersisted {
					ent.Lifecycle = LifecycleDirty
				}
				stripped = true
			}
		})
		e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
		if stripped {
			e.sched.Schedule(localID, GroupDescription)
		}
	})
}

// OpenPanel records which entity the detail panel shows.
func (e *Engine) OpenPanel(localID string) { e.sel.SetOpenPanel(localID) }

// ClosePanel flushes the entity's pending timers before teardown so nothing
// typed in the panel is lost. Commits complete in the background.
func (e *Engine) ClosePanel(localID string) {
	if e.sel.OpenPanel() == localID {
		e.sel.SetOpenPanel("")
	}
	e.sched.Flush(localID)
}

// DiscardDraft throws away a never-persisted entity: timers are cancelled
// and no network call is made. Persisted entities cannot be discarded.
func (e *Engine) DiscardDraft(localID string) error {
	snap, ok := e.store.Get(localID)
	if !ok {
		return ErrNotFound
	}
	if snap.Lifecycle != LifecycleDraft {
		return fmt.Errorf("entity %s is not a draft", localID)
	}
	e.sched.Cancel(localID)
	e.removeLocally(localID)
	return nil
}

// Flush fires the entity's pending timers and waits for the queue to settle.
func (e *Engine) Flush(localID string) {
	e.sched.Flush(localID)
	e.sched.Drain()
}

// Drain waits for every queued commit to resolve. Armed debounce timers are
// left alone.
func (e *Engine) Drain() { e.sched.Drain() }

// Close flushes all pending work and stops the commit worker.
func (e *Engine) Close() { e.sched.Close() }

// commit is the scheduler's send callback: one remote write for one
// (entity, field group) pair, reading the latest local value now. A draft
// triggers creation instead, carrying all currently-set fields; the dirty
// set is cleared wholesale so later fires for other groups become no-ops
// rather than duplicate creates.
func (e *Engine) commit(localID string, group FieldGroup) {
	snap, ok := e.store.Get(localID)
	if !ok {
		return
	}
	if snap.Lifecycle == LifecycleDeleting || snap.Lifecycle == LifecycleDeleted {
		return
	}
	if !snap.Dirty[group] {
		return
	}

	if snap.Lifecycle == LifecycleDraft {
		e.createDraft(snap)
		return
	}

	patch := patchForGroup(snap.Fields, group)
	if _, err := e.gateway.PatchEntity(e.ctx, snap.RemoteID, patch); err != nil {
		// field stays dirty; the next edit or explicit flush resends it
		e.logger.Printf("commit %s/%s: %v", localID, group, err)
		e.bus.publish(Event{Type: EventCommitFailed, LocalID: localID, Group: group, Err: err})
		return
	}
	e.store.ClearDirty(localID, group)
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: localID})
}

func (e *Engine) createDraft(snap Entity) {
	if err := validateForCreate(snap.Fields); err != nil {
		e.bus.publish(Event{Type: EventCommitFailed, LocalID: snap.LocalID, Err: err})
		return
	}
	created, err := e.gateway.CreateEntity(e.ctx, snap.Fields)
	if err != nil {
		e.logger.Printf("create %s: %v", snap.LocalID, err)
		e.bus.publish(Event{Type: EventCommitFailed, LocalID: snap.LocalID, Err: err})
		return
	}
	e.store.Mutate(snap.LocalID, func(ent *Entity) {
		ent.RemoteID = created.ID
		ent.Fields.ID = created.ID
		ent.Fields.CreatedAt = created.CreatedAt
		ent.Lifecycle = LifecyclePersisted
		ent.Dirty = map[FieldGroup]bool{}
	})
	e.bus.publish(Event{Type: EventEntityChanged, LocalID: snap.LocalID})
}

func validateForCreate(f model.RecurringTask) error {
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: "name", Message: "name must not be empty"}
	}
	if !f.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Message: "invalid frequency rule"}
	}
	return nil
}

// patchForGroup builds the wire patch for one field group from the entity's
// latest fields. Disjoint groups keep commits for the same entity
// independent of each other.
func patchForGroup(f model.RecurringTask, group FieldGroup) model.TaskPatch {
	var p model.TaskPatch
	switch group {
	case GroupName:
		p.Name = &f.Name
	case GroupDescription:
		p.Description = &f.Description
	case GroupFrequency:
		p.Frequency = &f.Frequency
	case GroupDateRange:
		p.StartDate = &f.StartDate
		p.EndDate = &f.EndDate
	case GroupPriority:
		p.Priority = &f.Priority
	case GroupStatus:
		p.Status = &f.Status
	case GroupAssignees:
		assignees := append([]string(nil), f.Assignees...)
		p.Assignees = &assignees
	case GroupProject:
		if f.Project == nil {
			empty := ""
			p.Project = &empty
		} else {
			p.Project = f.Project
		}
	case GroupAllocatedHours:
		p.AllocatedHours = &f.AllocatedHours
	}
	return p
}
