package task

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cadence/internal/model"
)

// SQLiteRepo stores recurring tasks in a single sqlite file. Assignees and
// attachments are JSON columns: they are only ever read and written as whole
// lists, so relational decomposition buys nothing here.
type SQLiteRepo struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteRepo, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &SQLiteRepo{db: db}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: path}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *SQLiteRepo) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepo) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS recurring_tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	frequency_kind TEXT NOT NULL DEFAULT 'none',
	frequency_interval INTEGER NOT NULL DEFAULT 0,
	start_date TEXT NOT NULL DEFAULT '',
	end_date TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	project TEXT DEFAULT NULL,
	assignees TEXT NOT NULL DEFAULT '[]',
	allocated_hours REAL NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 0,
	attachments TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`
	if _, err := r.db.Exec(ddl); err != nil {
		return err
	}
	return r.ensureColumns()
}

// ensureColumns migrates databases created before a column existed.
func (r *SQLiteRepo) ensureColumns() error {
	required := map[string]string{
		"allocated_hours": "ALTER TABLE recurring_tasks ADD COLUMN allocated_hours REAL NOT NULL DEFAULT 0;",
		"attachments":     "ALTER TABLE recurring_tasks ADD COLUMN attachments TEXT NOT NULL DEFAULT '[]';",
	}
	existing := map[string]struct{}{}
	rows, err := r.db.Query(`PRAGMA table_info(recurring_tasks);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := r.db.Exec(alter); err != nil {
			return err
		}
	}
	return rows.Err()
}

const taskColumns = `id, name, description, frequency_kind, frequency_interval,
	start_date, end_date, priority, status, project, assignees,
	allocated_hours, active, attachments, created_at, updated_at`

func scanTask(scan func(dest ...any) error) (model.RecurringTask, error) {
	var t model.RecurringTask
	var activeInt int
	var project sql.NullString
	var assignees, attachments, createdStr, updatedStr string

	err := scan(&t.ID, &t.Name, &t.Description, &t.Frequency.Kind, &t.Frequency.Interval,
		&t.StartDate, &t.EndDate, &t.Priority, &t.Status, &project, &assignees,
		&t.AllocatedHours, &activeInt, &attachments, &createdStr, &updatedStr)
	if err != nil {
		return model.RecurringTask{}, err
	}

	t.Active = activeInt == 1
	if project.Valid {
		p := project.String
		t.Project = &p
	}
	if err := json.Unmarshal([]byte(assignees), &t.Assignees); err != nil {
		t.Assignees = []string{}
	}
	if err := json.Unmarshal([]byte(attachments), &t.Attachments); err != nil {
		t.Attachments = []model.Attachment{}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, createdStr); err == nil {
		t.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedStr); err == nil {
		t.UpdatedAt = parsed
	}
	normalizeTask(&t)
	return t, nil
}

func (r *SQLiteRepo) writeTask(t model.RecurringTask) error {
	assignees, err := json.Marshal(t.Assignees)
	if err != nil {
		return err
	}
	attachments, err := json.Marshal(t.Attachments)
	if err != nil {
		return err
	}
	var project sql.NullString
	if t.Project != nil {
		project = sql.NullString{String: *t.Project, Valid: true}
	}
	activeInt := 0
	if t.Active {
		activeInt = 1
	}

	_, err = r.db.Exec(`
INSERT INTO recurring_tasks (`+taskColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name=excluded.name, description=excluded.description,
	frequency_kind=excluded.frequency_kind, frequency_interval=excluded.frequency_interval,
	start_date=excluded.start_date, end_date=excluded.end_date,
	priority=excluded.priority, status=excluded.status, project=excluded.project,
	assignees=excluded.assignees, allocated_hours=excluded.allocated_hours,
	active=excluded.active, attachments=excluded.attachments,
	updated_at=excluded.updated_at;`,
		string(t.ID), t.Name, t.Description, string(t.Frequency.Kind), t.Frequency.Interval,
		t.StartDate, t.EndDate, t.Priority, t.Status, project, string(assignees),
		t.AllocatedHours, activeInt, string(attachments),
		t.CreatedAt.UTC().Format(time.RFC3339Nano), t.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteRepo) Create(t model.RecurringTask) (model.RecurringTask, error) {
	if err := validateForCreate(t); err != nil {
		return model.RecurringTask{}, err
	}

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

	if err := r.writeTask(t); err != nil {
		return model.RecurringTask{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) Get(id model.TaskID) (model.RecurringTask, error) {
	row := r.db.QueryRow(`SELECT `+taskColumns+` FROM recurring_tasks WHERE id = ?;`, string(id))
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RecurringTask{}, ErrNotFound
	}
	if err != nil {
		return model.RecurringTask{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) Update(id model.TaskID, p model.TaskPatch) (model.RecurringTask, error) {
	t, err := r.Get(id)
	if err != nil {
		return model.RecurringTask{}, err
	}
	if err := applyPatch(&t, p); err != nil {
		return model.RecurringTask{}, err
	}
	t.UpdatedAt = time.Now()
	if err := r.writeTask(t); err != nil {
		return model.RecurringTask{}, err
	}
	return t, nil
}

func (r *SQLiteRepo) Delete(id model.TaskID) error {
	res, err := r.db.Exec(`DELETE FROM recurring_tasks WHERE id = ?;`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepo) List(filter ListFilter) ([]model.RecurringTask, error) {
	rows, err := r.db.Query(`SELECT ` + taskColumns + ` FROM recurring_tasks;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RecurringTask{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		if matchesFilter(t, filter) {
			out = append(out, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortTasks(out)
	return out, nil
}

func (r *SQLiteRepo) AddAttachment(id model.TaskID, att model.Attachment) (model.Attachment, error) {
	if strings.TrimSpace(att.URL) == "" {
		return model.Attachment{}, invalidf("attachment url must not be empty")
	}
	if att.Folder != model.FolderDescription && att.Folder != model.FolderAttachments {
		return model.Attachment{}, invalidf("unknown attachment folder %q", att.Folder)
	}

	t, err := r.Get(id)
	if err != nil {
		return model.Attachment{}, err
	}
	att.ID = newID("att")
	t.Attachments = append(t.Attachments, att)
	t.UpdatedAt = time.Now()
	if err := r.writeTask(t); err != nil {
		return model.Attachment{}, err
	}
	return att, nil
}

func (r *SQLiteRepo) RemoveAttachment(id model.TaskID, attachmentID string) error {
	t, err := r.Get(id)
	if err != nil {
		return err
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
	return r.writeTask(t)
}
