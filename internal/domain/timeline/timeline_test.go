package timeline

import (
	"testing"
	"time"

	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/pkg/wire"
)

func ts(s string) wire.Time { return wire.ParseTime(s) }

func TestBuild_TwoBuckets(t *testing.T) {
	logs := []patient.CallLog{{ID: 1, CreatedAt: ts("2026-02-10T09:00:00Z"), Answered: true}}
	reminders := []care.MedicationReminder{{ID: 5, ScheduledFor: ts("2026-02-10T08:00:00Z"), Status: care.ReminderTaken}}
	interventions := []care.Intervention{{Type: "follow_up", Note: "Called family", CreatedAt: ts("sometime last week")}}

	tl := Build(logs, reminders, interventions)

	if len(tl.DayKeys) != 2 || tl.DayKeys[0] != "2026-02-10" || tl.DayKeys[1] != UnknownDay {
		t.Fatalf("unexpected keys %v", tl.DayKeys)
	}
	day := tl.Day("2026-02-10")
	if len(day.Reminders) != 1 || len(day.Logs) != 1 || len(day.Notes) != 0 {
		t.Errorf("unexpected day bucket %+v", day)
	}
	unknown := tl.Day(UnknownDay)
	if len(unknown.Notes) != 1 || unknown.Notes[0].Role != RoleNurse || unknown.Notes[0].Text != "Called family" {
		t.Errorf("unexpected unknown bucket %+v", unknown)
	}
	if len(unknown.Reminders) != 0 || len(unknown.Logs) != 0 {
		t.Errorf("expected only a note in the unknown bucket, got %+v", unknown)
	}
}

func TestBuild_OrderingAndNotes(t *testing.T) {
	logs := []patient.CallLog{
		{ID: 1, CreatedAt: ts("2026-02-08T09:00:00Z"), DoctorNote: "Review BP"},
		{ID: 2, CreatedAt: ts("")},
		{ID: 3, CreatedAt: ts("2026-02-10T18:00:00Z")},
		{ID: 4, CreatedAt: ts("2026-02-10T07:00:00Z")},
	}
	reminders := []care.MedicationReminder{
		{ID: 10, ScheduledFor: ts("2026-02-09T08:00:00Z")},
		{ID: 11, ScheduledFor: ts("2026-02-11T08:00:00Z")},
	}
	interventions := []care.Intervention{
		{Type: "call", CreatedAt: ts("2026-02-08T10:00:00Z")},
		{Type: "call", Note: "Spoke to patient", CreatedAt: ts("2026-02-08T11:00:00Z")},
	}

	tl := Build(logs, reminders, interventions)

	want := []string{"2026-02-11", "2026-02-10", "2026-02-09", "2026-02-08", UnknownDay}
	if len(tl.DayKeys) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, tl.DayKeys)
	}
	for i := range want {
		if tl.DayKeys[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, tl.DayKeys)
		}
	}

	day := tl.Day("2026-02-10")
	if day.Logs[0].ID != 3 || day.Logs[1].ID != 4 {
		t.Errorf("expected input order within a day, got %d, %d", day.Logs[0].ID, day.Logs[1].ID)
	}

	notes := tl.Day("2026-02-08").Notes
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %+v", notes)
	}
	if notes[0].Role != RoleDoctor || notes[0].Text != "Review BP" || notes[1].Role != RoleNurse {
		t.Errorf("unexpected notes %+v", notes)
	}
}

func TestBuild_Empty(t *testing.T) {
	tl := Build(nil, nil, nil)
	if len(tl.DayKeys) != 0 || len(tl.Days) != 0 {
		t.Errorf("expected empty timeline, got %+v", tl)
	}
}

func TestPressResult(t *testing.T) {
	med := func(intent, answer string) patient.Response {
		return patient.Response{IntentID: intent, Answer: answer}
	}
	tests := []struct {
		name string
		log  patient.CallLog
		want string
	}{
		{"yes", patient.CallLog{Responses: []patient.Response{med("med_adherence_daily", "yes")}}, PressTaken},
		{"no", patient.CallLog{Responses: []patient.Response{med("med_adherence_daily", "no")}}, PressNotTaken},
		{"case insensitive", patient.CallLog{Responses: []patient.Response{med("MED_ADHERENCE", " Yes ")}}, PressTaken},
		{"first match wins", patient.CallLog{Answered: true, Responses: []patient.Response{
			med("med_adherence_am", "maybe"), med("med_adherence_pm", "yes"),
		}}, PressUnclear},
		{"unclear when answered", patient.CallLog{Answered: true, Responses: []patient.Response{med("symptom", "yes")}}, PressUnclear},
		{"no input", patient.CallLog{}, PressNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PressResult(tt.log); got != tt.want {
				t.Errorf("PressResult = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_AttachesPressResult(t *testing.T) {
	logs := []patient.CallLog{{
		CreatedAt: ts("2026-02-10T09:00:00Z"),
		Answered:  true,
		Responses: []patient.Response{{IntentID: "med_adherence", Answer: "yes"}},
	}}
	tl := Build(logs, nil, nil)
	if got := tl.Day("2026-02-10").Logs[0].PressResult; got != PressTaken {
		t.Errorf("expected %q, got %q", PressTaken, got)
	}
}

func TestLabels(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	if RiskLevel(score(72)) != "high" || RiskLevel(score(40)) != "medium" || RiskLevel(score(39.9)) != "low" || RiskLevel(nil) != "low" {
		t.Error("unexpected risk levels")
	}
	if FormatPercent(score(48.2)) != "48%" || FormatPercent(nil) != "--" {
		t.Error("unexpected percent formatting")
	}
	if StatusLabel(care.ReminderCallPlaced) != "IVR Called" || StatusLabel("") != "Scheduled" {
		t.Error("unexpected status labels")
	}
	if TitleCase("POST_MI") != "Post Mi" || DisplayTrack("cardiac") != "Cardiovascular" || DisplayTrack(" ") != "General" {
		t.Error("unexpected title casing")
	}
	if got := TitleCase("état_stable"); got != "État Stable" {
		t.Errorf("expected multi-byte initials to be upper-cased, got %q", got)
	}
}

func TestAdherenceBadge(t *testing.T) {
	rem := func(statuses ...care.ReminderStatus) []care.MedicationReminder {
		out := make([]care.MedicationReminder, len(statuses))
		for i, s := range statuses {
			out[i] = care.MedicationReminder{Status: s}
		}
		return out
	}
	tests := []struct {
		in   []care.MedicationReminder
		want string
	}{
		{rem(care.ReminderTaken, care.ReminderMissed), "Missed"},
		{rem(care.ReminderTaken, care.ReminderNoResponse), "No Response"},
		{rem(care.ReminderTaken, care.ReminderScheduled), "Taken"},
		{rem(care.ReminderScheduled), "Pending"},
		{nil, "Pending"},
	}
	for _, tt := range tests {
		if got := AdherenceBadge(tt.in); got != tt.want {
			t.Errorf("AdherenceBadge = %q, want %q", got, tt.want)
		}
	}
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	tests := map[string]string{
		"2026-02-10": "Today",
		"2026-02-09": "Feb 9, 2026",
		UnknownDay:   "Unknown Day",
		"":           "Unknown Day",
		"garbage":    "garbage",
	}
	for key, want := range tests {
		if got := DayLabel(key, now); got != want {
			t.Errorf("DayLabel(%q) = %q, want %q", key, got, want)
		}
	}
}
