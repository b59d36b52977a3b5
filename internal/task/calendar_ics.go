package task

import (
	"fmt"
	"strings"
	"time"

	"cadence/internal/model"
)

const icsDateLayout = "20060102"

// BuildTaskCalendarICS renders one task as an iCalendar event. A start date
// is required so the exported event has a concrete anchor; the frequency rule
// becomes an RRULE where a mapping exists.
func BuildTaskCalendarICS(t model.RecurringTask, now time.Time) (string, error) {
	startRaw := strings.TrimSpace(t.StartDate)
	if startRaw == "" {
		return "", fmt.Errorf("task start date required for calendar export")
	}
	start, err := time.ParseInLocation(model.DateLayout, startRaw, time.Local)
	if err != nil {
		return "", fmt.Errorf("task start date must be YYYY-MM-DD")
	}
	end := start.AddDate(0, 0, 1)

	title := strings.TrimSpace(t.Name)
	if title == "" {
		title = "Recurring Task"
	}
	desc := strings.TrimSpace(t.Description)

	uid := fmt.Sprintf("task-%s@cadence", strings.TrimSpace(string(t.ID)))
	if strings.TrimSpace(string(t.ID)) == "" {
		uid = fmt.Sprintf("task-export-%d@cadence", now.UnixNano())
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Cadence//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + escapeICSText(uid),
		"DTSTAMP:" + now.UTC().Format("20060102T150405Z"),
		"SUMMARY:" + escapeICSText(title),
		"DTSTART;VALUE=DATE:" + start.Format(icsDateLayout),
		"DTEND;VALUE=DATE:" + end.Format(icsDateLayout),
	}
	if desc != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICSText(desc))
	}
	if rrule := frequencyToICSRRULE(t.Frequency, t.EndDate); rrule != "" {
		lines = append(lines, "RRULE:"+rrule)
	}
	lines = append(lines, "END:VEVENT", "END:VCALENDAR", "")

	return strings.Join(lines, "\r\n"), nil
}

func frequencyToICSRRULE(rule model.FrequencyRule, endDate string) string {
	interval := rule.Interval
	if interval <= 0 {
		interval = 1
	}

	var rrule string
	switch rule.Kind {
	case model.FrequencyDaily:
		rrule = fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", interval)
	case model.FrequencyWeekly:
		rrule = fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d", interval)
	case model.FrequencyMonthly:
		rrule = fmt.Sprintf("FREQ=MONTHLY;INTERVAL=%d", interval)
	case model.FrequencyWeekday:
		rrule = fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d;BYDAY=MO,TU,WE,TH,FR", interval)
	default:
		return ""
	}

	if endDate != "" {
		if until, err := time.ParseInLocation(model.DateLayout, endDate, time.Local); err == nil {
			rrule += ";UNTIL=" + until.Format(icsDateLayout)
		}
	}
	return rrule
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}
