package task

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cadence/internal/model"
)

type fileState struct {
	Tasks map[model.TaskID]model.RecurringTask `json:"tasks"`
}

func newFileState() fileState {
	return fileState{Tasks: map[model.TaskID]model.RecurringTask{}}
}

// FileRepo is a persistent task repository backed by one JSON file. Every
// write rewrites the file under the lock; fine for the single-instance
// deployments this server targets.
type FileRepo struct {
	mu   sync.RWMutex
	path string
	s    fileState
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	r := &FileRepo{
		path: filepath.Join(dataDir, "recurring.json"),
		s:    newFileState(),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepo) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.s = newFileState()
			return nil
		}
		return err
	}

	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Tasks == nil {
		loaded.Tasks = map[model.TaskID]model.RecurringTask{}
	}
	r.s = loaded
	return nil
}

func (r *FileRepo) saveLocked() error {
	b, err := json.MarshalIndent(r.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, b, 0o644)
}

func (r *FileRepo) Create(t model.RecurringTask) (model.RecurringTask, error) {
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

	r.s.Tasks[t.ID] = t
	if err := r.saveLocked(); err != nil {
		return model.RecurringTask{}, err
	}
	return t, nil
}

func (r *FileRepo) Get(id model.TaskID) (model.RecurringTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.s.Tasks[id]
	if !ok {
		return model.RecurringTask{}, ErrNotFound
	}
	normalizeTask(&t)
	return t, nil
}

func (r *FileRepo) Update(id model.TaskID, p model.TaskPatch) (model.RecurringTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.s.Tasks[id]
	if !ok {
		return model.RecurringTask{}, ErrNotFound
	}
	if err := applyPatch(&t, p); err != nil {
		return model.RecurringTask{}, err
	}
	t.UpdatedAt = time.Now()
	normalizeTask(&t)
	r.s.Tasks[id] = t
	if err := r.saveLocked(); err != nil {
		return model.RecurringTask{}, err
	}
	return t, nil
}

func (r *FileRepo) Delete(id model.TaskID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.s.Tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.Tasks, id)
	return r.saveLocked()
}

func (r *FileRepo) List(filter ListFilter) ([]model.RecurringTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.RecurringTask, 0, len(r.s.Tasks))
	for _, t := range r.s.Tasks {
		normalizeTask(&t)
		if matchesFilter(t, filter) {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out, nil
}

func (r *FileRepo) AddAttachment(id model.TaskID, att model.Attachment) (model.Attachment, error) {
	if strings.TrimSpace(att.URL) == "" {
		return model.Attachment{}, invalidf("attachment url must not be empty")
	}
	if att.Folder != model.FolderDescription && att.Folder != model.FolderAttachments {
		return model.Attachment{}, invalidf("unknown attachment folder %q", att.Folder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.s.Tasks[id]
	if !ok {
		return model.Attachment{}, ErrNotFound
	}
	att.ID = newID("att")
	t.Attachments = append(t.Attachments, att)
	t.UpdatedAt = time.Now()
	r.s.Tasks[id] = t
	if err := r.saveLocked(); err != nil {
		return model.Attachment{}, err
	}
	return att, nil
}

func (r *FileRepo) RemoveAttachment(id model.TaskID, attachmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.s.Tasks[id]
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
	r.s.Tasks[id] = t
	return r.saveLocked()
}
