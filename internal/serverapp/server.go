// Package serverapp assembles the HTTP application: storage backends,
// handlers, and middleware, driven by the config.
package serverapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"cadence/internal/blob"
	"cadence/internal/config"
	"cadence/internal/httpmw"
	"cadence/internal/project"
	"cadence/internal/task"
	"cadence/internal/telemetry"
)

type Options struct {
	Config *config.Config
	Logger *log.Logger
}

// App owns the wired handler plus whatever storage needs closing on shutdown.
type App struct {
	handler http.Handler
	closers []func() error
}

func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	cfg := opts.Config

	app := &App{}

	taskRepo, err := openTaskRepo(cfg, app)
	if err != nil {
		return nil, err
	}

	events := telemetry.NewMemoryRepository()
	recorded := telemetry.NewRecordingRepo(taskRepo, events)

	blobStore, err := blob.NewStore(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}

	projectRepo := project.NewMemoryRepo()

	mux := http.NewServeMux()

	taskHandler := task.NewHandler(recorded)
	mux.HandleFunc("/api/recurring", taskHandler.RecurringRoot)
	mux.HandleFunc("/api/recurring/bulk-delete", taskHandler.BulkDelete)
	mux.HandleFunc("/api/recurring/", taskHandler.RecurringSub)

	projectHandler := project.NewHandler(projectRepo)
	mux.HandleFunc("/api/projects", projectHandler.ProjectsRoot)
	mux.HandleFunc("/api/projects/", projectHandler.ProjectsSub)

	blobHandler := blob.NewHandler(blobStore)
	mux.HandleFunc("/api/blobs", blobHandler.Upload)
	mux.HandleFunc("/blobs/", blobHandler.Serve)

	telemetryHandler := telemetry.NewHandler(events)
	mux.HandleFunc("/api/events", telemetryHandler.Events)
	mux.HandleFunc("/api/stats", telemetryHandler.Stats)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "cadence",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := taskRepo.List(task.ListFilter{}); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "task storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "cadence",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	app.handler = httpmw.Chain(
		mux,
		httpmw.WithAccessLog(opts.Logger),
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
	)
	return app, nil
}

func openTaskRepo(cfg *config.Config, app *App) (task.Repo, error) {
	switch strings.TrimSpace(cfg.Server.Storage) {
	case "memory":
		return task.NewMemoryRepo(), nil
	case "", "file":
		return task.NewFileRepo(cfg.Server.DataDir)
	case "sqlite":
		repo, err := task.OpenSQLite(cfg.Server.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, repo.Close)
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Server.Storage)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
