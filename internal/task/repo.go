package task

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cadence/internal/model"
)

var (
	ErrNotFound = errors.New("task not found")

	// ErrInvalid wraps every validation failure so handlers can map the
	// whole family to one status code.
	ErrInvalid = errors.New("invalid task")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

type ListFilter struct {
	// Status:
	//   "" | "all" | "<exact status value>"
	Status string

	// Project:
	//   "" | "any" | "none" | "<exact project id>"
	Project string

	// Active:
	//   nil = don't care
	Active *bool
}

type Repo interface {
	Create(t model.RecurringTask) (model.RecurringTask, error)
	Get(id model.TaskID) (model.RecurringTask, error)
	Update(id model.TaskID, patch model.TaskPatch) (model.RecurringTask, error)
	Delete(id model.TaskID) error
	List(filter ListFilter) ([]model.RecurringTask, error)

	AddAttachment(id model.TaskID, att model.Attachment) (model.Attachment, error)
	RemoveAttachment(id model.TaskID, attachmentID string) error
}

type MemoryRepo struct {
	mu    sync.RWMutex
	tasks map[model.TaskID]model.RecurringTask
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tasks: map[model.TaskID]model.RecurringTask{}}
}

func newID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + hex.EncodeToString(b[:])
}

func normalizeTask(t *model.RecurringTask) {
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []model.Attachment{}
	}
	if t.Frequency.Kind == "" {
		t.Frequency.Kind = model.FrequencyNone
	}
}

func validateDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(model.DateLayout, v); err != nil {
		return invalidf("%s must be YYYY-MM-DD", field)
	}
	return nil
}

func validateForCreate(t model.RecurringTask) error {
	if strings.TrimSpace(t.Name) == "" {
		return invalidf("name must not be empty")
	}
	if !t.Frequency.Valid() {
		return invalidf("frequency interval must be a positive integer")
	}
	if err := validateDate("startDate", t.StartDate); err != nil {
		return err
	}
	return validateDate("endDate", t.EndDate)
}

// normalizeDates keeps endDate >= startDate; a violating end date is advanced
// to one month past the start, matching the client-side rule exactly.
func normalizeDates(t *model.RecurringTask) {
	if t.StartDate == "" || t.EndDate == "" {
		return
	}
	s, err := time.Parse(model.DateLayout, t.StartDate)
	if err != nil {
		return
	}
	e, err := time.Parse(model.DateLayout, t.EndDate)
	if err != nil {
		return
	}
	if e.Before(s) {
		t.EndDate = s.AddDate(0, 1, 0).Format(model.DateLayout)
	}
}

func applyPatch(t *model.RecurringTask, p model.TaskPatch) error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return invalidf("name must not be empty")
		}
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Frequency != nil {
		if !p.Frequency.Valid() {
			return invalidf("frequency interval must be a positive integer")
		}
		t.Frequency = *p.Frequency
	}

	if p.StartDate != nil {
		if err := validateDate("startDate", *p.StartDate); err != nil {
			return err
		}
		t.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		if err := validateDate("endDate", *p.EndDate); err != nil {
			return err
		}
		t.EndDate = *p.EndDate
	}

	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}

	// pointer string field with "empty clears" semantics
	if p.Project != nil {
		if *p.Project == "" {
			t.Project = nil
		} else {
			t.Project = p.Project
		}
	}

	if p.Assignees != nil {
		// treat nil slice as empty slice
		if *p.Assignees == nil {
			t.Assignees = []string{}
		} else {
			t.Assignees = *p.Assignees
		}
	}

	if p.AllocatedHours != nil {
		if *p.AllocatedHours < 0 {
			return invalidf("allocatedHours must not be negative")
		}
		t.AllocatedHours = *p.AllocatedHours
	}
	if p.Active != nil {
		t.Active = *p.Active
	}

	normalizeDates(t)
	return nil
}

func matchesFilter(t model.RecurringTask, filter ListFilter) bool {
	if filter.Active != nil && t.Active != *filter.Active {
		return false
	}

	p := ""
	if t.Project != nil {
		p = strings.TrimSpace(*t.Project)
	}
	switch strings.ToLower(strings.TrimSpace(filter.Project)) {
	case "", "any":
	case "none":
		if p != "" {
			return false
		}
	default:
		if p != filter.Project {
			return false
		}
	}

	switch strings.ToLower(strings.TrimSpace(filter.Status)) {
	case "", "all":
		return true
	default:
		return strings.EqualFold(t.Status, filter.Status)
	}
}

// sortTasks orders by start date ascending with undated tasks last, then by
// most recently updated.
func sortTasks(out []model.RecurringTask) {
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].StartDate, out[j].StartDate
		switch {
		case di == "" && dj == "":
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		case di == "":
			return false
		case dj == "":
			return true
		case di != dj:
			return di < dj
		default:
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
	})
}

func (r *MemoryRepo) Create(t model.RecurringTask) (model.RecurringTask, error) {
	if err := validateForCreate(t); err != nil {
		return model.RecurringTask{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	t.ID = model.TaskID(newID("task"))
	t.CreatedAt = now
	t.UpdatedAt = now

	normalizeTask(&t)
	normalizeDates(&t)
	for i := range t.Attachments {
		if t.Attachments[i].ID == "" {
			t.Attachments[i].ID = newID("att")
		}
	}

	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) Get(id model.TaskID) (model.RecurringTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.RecurringTask{}, ErrNotFound
	}
	normalizeTask(&t)
	return t, nil
}

func (r *MemoryRepo) Update(id model.TaskID, p model.TaskPatch) (model.RecurringTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.RecurringTask{}, ErrNotFound
	}

	if err := applyPatch(&t, p); err != nil {
		return model.RecurringTask{}, err
	}

	t.UpdatedAt = time.Now()
	normalizeTask(&t)

	r.tasks[id] = t
	return t, nil
}

func (r *MemoryRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryRepo) List(filter ListFilter) ([]model.RecurringTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.RecurringTask, 0, len(r.tasks))
	for _, t := range r.tasks {
		normalizeTask(&t)
		if matchesFilter(t, filter) {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out, nil
}

func (r *MemoryRepo) AddAttachment(id model.TaskID, att model.Attachment) (model.Attachment, error) {
	if strings.TrimSpace(att.URL) == "" {
		return model.Attachment{}, invalidf("attachment url must not be empty")
	}
	if att.Folder != model.FolderDescription && att.Folder != model.FolderAttachments {
		return model.Attachment{}, invalidf("unknown attachment folder %q", att.Folder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Attachment{}, ErrNotFound
	}

	att.ID = newID("att")
	t.Attachments = append(t.Attachments, att)
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return att, nil
}

func (r *MemoryRepo) RemoveAttachment(id model.TaskID, attachmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}

	kept := t.Attachments[:0]
	found := false
	for _, a := range t.Attachments {
		if a.ID == attachmentID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return ErrNotFound
	}
	t.Attachments = kept
	t.UpdatedAt = time.Now()
	r.tasks[id] = t
	return nil
}
