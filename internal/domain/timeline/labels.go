package timeline

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/pkg/wire"
)

// RiskLevel buckets a 0-100 risk score. A missing score is low.
func RiskLevel(score *float64) string {
	var s float64
	if score != nil {
		s = *score
	}
	switch {
	case s >= 70:
		return "high"
	case s >= 40:
		return "medium"
	default:
		return "low"
	}
}

// FormatPercent renders a score as a whole percentage, or "--".
func FormatPercent(score *float64) string {
	if score == nil {
		return "--"
	}
	return fmt.Sprintf("%d%%", int(math.Round(*score)))
}

// StatusLabel is the display text of a reminder status.
func StatusLabel(s care.ReminderStatus) string {
	switch s {
	case care.ReminderTaken:
		return "Taken"
	case care.ReminderMissed:
		return "Missed"
	case care.ReminderNoResponse:
		return "No Response"
	case care.ReminderCallPlaced:
		return "IVR Called"
	case care.ReminderSMSSent:
		return "SMS Sent"
	case care.ReminderPaused:
		return "Paused"
	default:
		return "Scheduled"
	}
}

// AdherenceBadge summarises a set of reminders: any miss wins, then any
// unanswered reminder, then any taken dose; otherwise pending.
func AdherenceBadge(reminders []care.MedicationReminder) string {
	has := func(s care.ReminderStatus) bool {
		for _, r := range reminders {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	switch {
	case has(care.ReminderMissed):
		return "Missed"
	case has(care.ReminderNoResponse):
		return "No Response"
	case has(care.ReminderTaken):
		return "Taken"
	default:
		return "Pending"
	}
}

// DayLabel renders a day key relative to now: "Today", "Unknown Day", or a
// date such as "Feb 10, 2026".
func DayLabel(key string, now time.Time) string {
	if key == "" || key == UnknownDay {
		return "Unknown Day"
	}
	if key == now.UTC().Format(wire.DayKeyLayout) {
		return "Today"
	}
	d, err := time.Parse(wire.DayKeyLayout, key)
	if err != nil {
		return key
	}
	return d.Format("Jan 2, 2006")
}

// TitleCase turns identifiers like "post_mi" into "Post Mi".
func TitleCase(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	parts := strings.Fields(s)
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

// DisplayTrack names a disease track for display.
func DisplayTrack(track string) string {
	t := strings.ToLower(strings.TrimSpace(track))
	switch t {
	case "":
		return "General"
	case "cardiac":
		return "Cardiovascular"
	}
	return TitleCase(t)
}
