// Dev entry: in-memory storage seeded with sample tasks. The production
// binary lives in cmd/server.
package main

import (
	"fmt"
	"log"
	"net/http"

	"cadence/internal/model"
	"cadence/internal/project"
	"cadence/internal/task"
	"cadence/internal/telemetry"
)

const PORT = "8080"

func main() {
	taskRepo := task.NewMemoryRepo()
	if err := seedTasks(taskRepo); err != nil {
		log.Fatal(err)
	}

	events := telemetry.NewMemoryRepository()
	recorded := telemetry.NewRecordingRepo(taskRepo, events)

	mux := http.NewServeMux()

	taskHandler := task.NewHandler(recorded)
	mux.HandleFunc("/api/recurring", taskHandler.RecurringRoot)
	mux.HandleFunc("/api/recurring/bulk-delete", taskHandler.BulkDelete)
	mux.HandleFunc("/api/recurring/", taskHandler.RecurringSub)

	projectHandler := project.NewHandler(project.NewMemoryRepo())
	mux.HandleFunc("/api/projects", projectHandler.ProjectsRoot)
	mux.HandleFunc("/api/projects/", projectHandler.ProjectsSub)

	telemetryHandler := telemetry.NewHandler(events)
	mux.HandleFunc("/api/events", telemetryHandler.Events)
	mux.HandleFunc("/api/stats", telemetryHandler.Stats)

	addr := ":" + PORT
	fmt.Printf("cadence dev server listening on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func seedTasks(repo task.Repo) error {
	samples := []model.RecurringTask{
		{
			Name:      "Water plants",
			Frequency: model.FrequencyRule{Kind: model.FrequencyDaily, Interval: 2},
			StartDate: "2026-01-05",
			Priority:  "medium",
		},
		{
			Name:      "Team standup notes",
			Frequency: model.FrequencyRule{Kind: model.FrequencyWeekday, Interval: 1},
			StartDate: "2026-01-05",
			Assignees: []string{"sam"},
		},
		{
			Name:           "Pay rent",
			Frequency:      model.FrequencyRule{Kind: model.FrequencyMonthly, Interval: 1},
			StartDate:      "2026-01-01",
			Priority:       "high",
			AllocatedHours: 0.5,
		},
	}
	for _, s := range samples {
		if _, err := repo.Create(s); err != nil {
			return err
		}
	}
	return nil
}
