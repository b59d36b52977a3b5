package task

import (
	"time"

	"cadence/internal/model"
)

// maxOccurrences bounds a single expansion so a daily rule with a distant end
// date cannot produce an unbounded response.
const maxOccurrences = 366

// Occurrence is one concrete date a recurring task falls on.
type Occurrence struct {
	TaskID model.TaskID `json:"taskId"`
	Date   string       `json:"date"`
}

// ExpandOccurrences lists the dates the task occurs on within [from, to],
// both inclusive, capped at maxOccurrences. Tasks with no start date or a
// non-repeating rule yield at most the single start date.
func ExpandOccurrences(t model.RecurringTask, from, to time.Time) []Occurrence {
	if t.StartDate == "" {
		return nil
	}
	start, err := time.Parse(model.DateLayout, t.StartDate)
	if err != nil {
		return nil
	}

	// the task's own end date tightens the window
	if t.EndDate != "" {
		if end, err := time.Parse(model.DateLayout, t.EndDate); err == nil && end.Before(to) {
			to = end
		}
	}
	if to.Before(from) || to.Before(start) {
		return nil
	}

	interval := t.Frequency.Interval
	if interval < 1 {
		interval = 1
	}

	var out []Occurrence
	emit := func(d time.Time) bool {
		if !d.Before(from) && !d.After(to) {
			out = append(out, Occurrence{TaskID: t.ID, Date: d.Format(model.DateLayout)})
		}
		return len(out) < maxOccurrences && !d.After(to)
	}

	switch t.Frequency.Kind {
	case model.FrequencyDaily:
		for d := start; ; d = d.AddDate(0, 0, interval) {
			if !emit(d) {
				return out
			}
		}
	case model.FrequencyWeekly:
		for d := start; ; d = d.AddDate(0, 0, 7*interval) {
			if !emit(d) {
				return out
			}
		}
	case model.FrequencyMonthly:
		for i := 0; ; i += interval {
			if !emit(start.AddDate(0, i, 0)) {
				return out
			}
		}
	case model.FrequencyWeekday:
		// every business day, then skip interval-1 further business days
		step := 0
		for d := start; ; d = d.AddDate(0, 0, 1) {
			if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
				if d.After(to) {
					return out
				}
				continue
			}
			if step%interval == 0 {
				if !emit(d) {
					return out
				}
			} else if d.After(to) {
				return out
			}
			step++
		}
	default:
		emit(start)
		return out
	}
}
