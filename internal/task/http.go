package task

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cadence/internal/model"
)

type Handler struct {
	repo Repo
}

func NewHandler(repo Repo) *Handler {
	return &Handler{repo: repo}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

// writeRepoErr maps the repo error families to status codes.
func writeRepoErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeErr(w, 404, "not found")
	case errors.Is(err, ErrInvalid):
		writeErr(w, 400, err.Error())
	default:
		writeErr(w, 500, err.Error())
	}
}

func parseBoolPtr(s string) *bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "any" {
		return nil
	}
	if s == "1" || s == "true" || s == "yes" {
		b := true
		return &b
	}
	if s == "0" || s == "false" || s == "no" {
		b := false
		return &b
	}
	return nil
}

// /api/recurring  (collection)
func (h *Handler) RecurringRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := ListFilter{
			Status:  q.Get("status"),
			Project: q.Get("project"),
			Active:  parseBoolPtr(q.Get("active")),
		}
		ts, err := h.repo.List(filter)
		if err != nil {
			writeErr(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, ts)

	case http.MethodPost:
		var in model.RecurringTask
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, 400, "bad json")
			return
		}
		t, err := h.repo.Create(in)
		if err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, 201, t)

	default:
		writeErr(w, 405, "method not allowed")
	}
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type BulkDeleteResponse struct {
	Succeeded []model.TaskID `json:"succeeded"`
	Failed    []model.TaskID `json:"failed"`
}

// BulkDeleteRecorder is implemented by repos that want to log a bulk delete
// as one operation on top of the per-id deletes.
type BulkDeleteRecorder interface {
	RecordBulkDelete(succeeded, failed int)
}

// /api/recurring/bulk-delete
//
// Deletes each id independently and reports the split. A 200 response can
// carry failures; an id that is already gone counts as succeeded.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}

	var in BulkDeleteRequest
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}

	resp := BulkDeleteResponse{Succeeded: []model.TaskID{}, Failed: []model.TaskID{}}
	for _, raw := range in.IDs {
		id := model.TaskID(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		err := h.repo.Delete(id)
		if err == nil || errors.Is(err, ErrNotFound) {
			resp.Succeeded = append(resp.Succeeded, id)
			continue
		}
		resp.Failed = append(resp.Failed, id)
	}
	if rec, ok := h.repo.(BulkDeleteRecorder); ok {
		rec.RecordBulkDelete(len(resp.Succeeded), len(resp.Failed))
	}
	writeJSON(w, 200, resp)
}

// /api/recurring/{id} and sub-resources
func (h *Handler) RecurringSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/api/recurring/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeErr(w, 404, "not found")
		return
	}

	parts := strings.Split(tail, "/")
	id := model.TaskID(parts[0])

	switch {
	case len(parts) == 1:
		h.taskByID(w, r, id)
	case len(parts) == 2 && parts[1] == "active":
		h.toggleActive(w, r, id)
	case len(parts) == 2 && parts[1] == "attachments":
		h.attachmentsRoot(w, r, id)
	case len(parts) == 3 && parts[1] == "attachments":
		h.attachmentByID(w, r, id, parts[2])
	case len(parts) == 2 && parts[1] == "occurrences":
		h.occurrences(w, r, id)
	case len(parts) == 2 && parts[1] == "calendar.ics":
		h.calendarICS(w, r, id)
	default:
		writeErr(w, 404, "not found")
	}
}

func (h *Handler) taskByID(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	switch r.Method {
	case http.MethodGet:
		t, err := h.repo.Get(id)
		if err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, 200, t)

	case http.MethodPatch:
		var p model.TaskPatch
		if err := decodeJSON(r, &p); err != nil {
			writeErr(w, 400, "bad json")
			return
		}
		t, err := h.repo.Update(id, p)
		if err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, 200, t)

	case http.MethodDelete:
		if err := h.repo.Delete(id); err != nil {
			writeRepoErr(w, err)
			return
		}
		writeJSON(w, 200, map[string]any{"ok": true})

	default:
		writeErr(w, 405, "method not allowed")
	}
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}

	cur, err := h.repo.Get(id)
	if err != nil {
		writeRepoErr(w, err)
		return
	}
	next := !cur.Active
	t, err := h.repo.Update(id, model.TaskPatch{Active: &next})
	if err != nil {
		writeRepoErr(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (h *Handler) attachmentsRoot(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}

	var in model.Attachment
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}
	att, err := h.repo.AddAttachment(id, in)
	if err != nil {
		writeRepoErr(w, err)
		return
	}
	writeJSON(w, 201, att)
}

func (h *Handler) attachmentByID(w http.ResponseWriter, r *http.Request, id model.TaskID, attachmentID string) {
	if r.Method != http.MethodDelete {
		writeErr(w, 405, "method not allowed")
		return
	}

	if err := h.repo.RemoveAttachment(id, attachmentID); err != nil {
		writeRepoErr(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (h *Handler) occurrences(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	if r.Method != http.MethodGet {
		writeErr(w, 405, "method not allowed")
		return
	}

	t, err := h.repo.Get(id)
	if err != nil {
		writeRepoErr(w, err)
		return
	}

	q := r.URL.Query()
	now := time.Now()
	from := now
	to := now.AddDate(0, 3, 0)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(model.DateLayout, v)
		if err != nil {
			writeErr(w, 400, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(model.DateLayout, v)
		if err != nil {
			writeErr(w, 400, "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}

	occ := ExpandOccurrences(t, from, to)
	if occ == nil {
		occ = []Occurrence{}
	}
	writeJSON(w, 200, occ)
}

func (h *Handler) calendarICS(w http.ResponseWriter, r *http.Request, id model.TaskID) {
	if r.Method != http.MethodGet {
		writeErr(w, 405, "method not allowed")
		return
	}

	t, err := h.repo.Get(id)
	if err != nil {
		writeRepoErr(w, err)
		return
	}
	ics, err := BuildTaskCalendarICS(t, time.Now())
	if err != nil {
		writeErr(w, 400, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="task.ics"`)
	w.WriteHeader(200)
	_, _ = w.Write([]byte(ics))
}
