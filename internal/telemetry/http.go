package telemetry

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseQuery(r *http.Request) (time.Time, []EventType, bool) {
	q := r.URL.Query()

	since := time.Time{}
	if v := strings.TrimSpace(q.Get("since")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, nil, false
		}
		since = parsed
	}

	var types []EventType
	for _, v := range q["type"] {
		if v = strings.TrimSpace(v); v != "" {
			types = append(types, EventType(v))
		}
	}
	return since, types, true
}

// Events handles GET /api/events?since=YYYY-MM-DD&type=task_created&type=...
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, 405, map[string]any{"error": "method not allowed"})
		return
	}

	since, types, ok := parseQuery(r)
	if !ok {
		writeJSON(w, 400, map[string]any{"error": "since must be YYYY-MM-DD"})
		return
	}

	events, err := h.repo.GetEvents(since, types)
	if err != nil {
		writeJSON(w, 500, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, 200, events)
}

// Stats handles GET /api/stats?since=YYYY-MM-DD
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, 405, map[string]any{"error": "method not allowed"})
		return
	}

	since, _, ok := parseQuery(r)
	if !ok {
		writeJSON(w, 400, map[string]any{"error": "since must be YYYY-MM-DD"})
		return
	}

	events, err := h.repo.GetEvents(since, nil)
	if err != nil {
		writeJSON(w, 500, map[string]any{"error": err.Error()})
		return
	}
	stats, err := CalculateStats(events, since)
	if err != nil {
		writeJSON(w, 500, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, 200, stats)
}
