package model

import (
	"time"
)

type TaskID string

// DateLayout is the wire format for all task dates.
const DateLayout = "2006-01-02"

type FrequencyKind string

const (
	FrequencyNone    FrequencyKind = "none"
	FrequencyDaily   FrequencyKind = "daily"
	FrequencyWeekly  FrequencyKind = "weekly"
	FrequencyMonthly FrequencyKind = "monthly"
	FrequencyWeekday FrequencyKind = "weekday"
)

// FrequencyRule describes how a recurring task repeats. Interval is the step
// between occurrences in units of Kind (every N days, every N weeks, ...).
type FrequencyRule struct {
	Kind     FrequencyKind `json:"kind"`
	Interval int           `json:"interval"`
}

// Rank orders rules from least to most frequent, for frequency-sorted lists.
func (r FrequencyRule) Rank() int {
	switch r.Kind {
	case FrequencyDaily:
		return 4
	case FrequencyWeekday:
		return 3
	case FrequencyWeekly:
		return 2
	case FrequencyMonthly:
		return 1
	default:
		return 0
	}
}

func (r FrequencyRule) Valid() bool {
	switch r.Kind {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyWeekday:
	default:
		return false
	}
	if r.Kind == FrequencyNone {
		return true
	}
	return r.Interval >= 1
}

const (
	FolderDescription = "description"
	FolderAttachments = "attachments"
)

// Attachment is one stored file reference. ID is assigned by the server when
// the attachment metadata is registered; until then it has no identity.
type Attachment struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

type RecurringTask struct {
	ID          TaskID        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Frequency   FrequencyRule `json:"frequency"`

	// Dates are YYYY-MM-DD; empty means unset.
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	Priority       string   `json:"priority,omitempty"`
	Status         string   `json:"status,omitempty"`
	Project        *string  `json:"project,omitempty"`
	Assignees      []string `json:"assignees,omitempty"`
	AllocatedHours float64  `json:"allocatedHours,omitempty"`
	Active         bool     `json:"active"`

	Attachments []Attachment `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskPatch is a partial update.
// nil pointer => "no change"
// empty string for Project => clear (set to nil)
type TaskPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Frequency   *FrequencyRule `json:"frequency,omitempty"`
	StartDate   *string        `json:"startDate,omitempty"`
	EndDate     *string        `json:"endDate,omitempty"`

	Priority       *string   `json:"priority,omitempty"`
	Status         *string   `json:"status,omitempty"`
	Project        *string   `json:"project,omitempty"`
	Assignees      *[]string `json:"assignees,omitempty"`
	AllocatedHours *float64  `json:"allocatedHours,omitempty"`
	Active         *bool     `json:"active,omitempty"`
}
