// Package timeline merges a patient's reminders, call logs and notes into
// day buckets for the nurse workspace.
package timeline

import (
	"sort"
	"strings"

	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/pkg/wire"
)

// UnknownDay keys rows whose timestamp is missing or unparseable.
const UnknownDay = "unknown"

const medAdherenceIntent = "med_adherence"

// Press results derived from the medication adherence answer.
const (
	PressTaken    = "Press 1 (Taken)"
	PressNotTaken = "Press 2 (Not taken)"
	PressUnclear  = "Response unclear"
	PressNone     = "No input"
)

// Note roles.
const (
	RoleDoctor = "Doctor"
	RoleNurse  = "Nurse"
)

// Note is free text attached to a day: a doctor's note on a call log or a
// nurse's intervention note.
type Note struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt wire.Time `json:"created_at"`
}

// Log is a call log with its derived press result.
type Log struct {
	patient.CallLog
	PressResult string `json:"press_result"`
}

// Day holds one calendar day's rows in input order.
type Day struct {
	Reminders []care.MedicationReminder `json:"reminders"`
	Logs      []Log                     `json:"logs"`
	Notes     []Note                    `json:"notes"`
}

// Timeline is the bucketed view. DayKeys lists the keys of Days, most recent
// first, with UnknownDay last.
type Timeline struct {
	DayKeys []string        `json:"day_keys"`
	Days    map[string]*Day `json:"days"`
}

// Day returns the bucket for key, or nil.
func (t *Timeline) Day(key string) *Day {
	return t.Days[key]
}

func dayKey(t wire.Time) string {
	if k := t.DayKey(); k != "" {
		return k
	}
	return UnknownDay
}

// Build buckets logs, reminders and interventions by calendar day. Reminders
// use scheduled_for; logs and notes use created_at. Interventions without a
// note contribute nothing.
func Build(logs []patient.CallLog, reminders []care.MedicationReminder, interventions []care.Intervention) *Timeline {
	tl := &Timeline{Days: map[string]*Day{}}
	ensure := func(key string) *Day {
		d, ok := tl.Days[key]
		if !ok {
			d = &Day{}
			tl.Days[key] = d
		}
		return d
	}

	for _, r := range reminders {
		d := ensure(dayKey(r.ScheduledFor))
		d.Reminders = append(d.Reminders, r)
	}

	for _, l := range logs {
		key := dayKey(l.CreatedAt)
		d := ensure(key)
		d.Logs = append(d.Logs, Log{CallLog: l, PressResult: PressResult(l)})
		if strings.TrimSpace(l.DoctorNote) != "" {
			d.Notes = append(d.Notes, Note{Role: RoleDoctor, Text: l.DoctorNote, CreatedAt: l.CreatedAt})
		}
	}

	for _, in := range interventions {
		if strings.TrimSpace(in.Note) == "" {
			continue
		}
		d := ensure(dayKey(in.CreatedAt))
		d.Notes = append(d.Notes, Note{Role: RoleNurse, Text: in.Note, CreatedAt: in.CreatedAt})
	}

	tl.DayKeys = make([]string, 0, len(tl.Days))
	for k := range tl.Days {
		tl.DayKeys = append(tl.DayKeys, k)
	}
	sort.Slice(tl.DayKeys, func(i, j int) bool {
		a, b := tl.DayKeys[i], tl.DayKeys[j]
		if a == UnknownDay || b == UnknownDay {
			return b == UnknownDay && a != UnknownDay
		}
		return a > b
	})
	return tl
}

// PressResult derives the keypad outcome of a call from the first response
// whose intent mentions med_adherence.
func PressResult(l patient.CallLog) string {
	for _, r := range l.Responses {
		if !strings.Contains(strings.ToLower(r.IntentID), medAdherenceIntent) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(r.Answer)) {
		case "yes":
			return PressTaken
		case "no":
			return PressNotTaken
		}
		break
	}
	if l.Answered {
		return PressUnclear
	}
	return PressNone
}
