package care

import (
	"fmt"

	"github.com/carepulse/console/pkg/wire"
)

// ReminderStatus is the delivery state of a medication reminder.
type ReminderStatus string

const (
	ReminderScheduled  ReminderStatus = "scheduled"
	ReminderSMSSent    ReminderStatus = "sms_sent"
	ReminderCallPlaced ReminderStatus = "call_placed"
	ReminderTaken      ReminderStatus = "taken"
	ReminderMissed     ReminderStatus = "missed"
	ReminderNoResponse ReminderStatus = "no_response"
	ReminderPaused     ReminderStatus = "paused"
)

// reminderRank orders the delivery pipeline. Terminal outcomes share a rank.
var reminderRank = map[ReminderStatus]int{
	ReminderScheduled:  0,
	ReminderSMSSent:    1,
	ReminderCallPlaced: 2,
	ReminderTaken:      3,
	ReminderMissed:     3,
	ReminderNoResponse: 3,
}

// Terminal reports whether the reminder has a final outcome.
func (s ReminderStatus) Terminal() bool {
	return reminderRank[s] == 3 && s != ""
}

// Known reports whether s is one of the reminder statuses.
func (s ReminderStatus) Known() bool {
	_, ok := reminderRank[s]
	return ok || s == ReminderPaused
}

// CanTransition reports whether a reminder may move from one status to
// another. Statuses only move forward along the delivery pipeline, except
// that a scheduled reminder may be paused and a paused one rescheduled.
// Terminal outcomes never change.
func CanTransition(from, to ReminderStatus) error {
	if !from.Known() {
		return fmt.Errorf("%w: unknown reminder status %q", ErrInvalid, from)
	}
	if !to.Known() {
		return fmt.Errorf("%w: unknown reminder status %q", ErrInvalid, to)
	}
	if from == to {
		return nil
	}
	switch {
	case from == ReminderPaused:
		if to == ReminderScheduled {
			return nil
		}
	case to == ReminderPaused:
		if from == ReminderScheduled {
			return nil
		}
	case from.Terminal():
	case reminderRank[to] > reminderRank[from]:
		return nil
	}
	return fmt.Errorf("%w: reminder cannot move from %s to %s", ErrInvalid, from, to)
}

// MedicationReminder is one scheduled medication prompt.
type MedicationReminder struct {
	ID             int64          `json:"id"`
	PatientID      int64          `json:"patient_id"`
	MedicationName string         `json:"medication_name"`
	Dose           string         `json:"dose,omitempty"`
	ScheduledFor   wire.Time      `json:"scheduled_for"`
	Status         ReminderStatus `json:"status"`
	SMSSentAt      wire.Time      `json:"sms_sent_at"`
	CallPlacedAt   wire.Time      `json:"call_placed_at"`
}

// NewReminder is the payload for scheduling a reminder.
type NewReminder struct {
	PatientID      int64      `json:"patient_id"`
	MedicationName string     `json:"medication_name"`
	Dose           string     `json:"dose,omitempty"`
	ScheduledFor   *wire.Time `json:"scheduled_for,omitempty"`
}

// ReminderUpdate is the payload for changing a reminder.
type ReminderUpdate struct {
	ScheduledFor *wire.Time     `json:"scheduled_for,omitempty"`
	Dose         string         `json:"dose,omitempty"`
	Status       ReminderStatus `json:"status,omitempty"`
}

// Intervention is an append-only record of a care action.
type Intervention struct {
	ID         int64     `json:"id,omitempty"`
	PatientID  int64     `json:"patient_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status,omitempty"`
	Note       string    `json:"note,omitempty"`
	RiskBefore *float64  `json:"risk_before,omitempty"`
	RiskAfter  *float64  `json:"risk_after,omitempty"`
	CreatedAt  wire.Time `json:"created_at"`
}

// Assignment links a patient to a responsible doctor and nurse.
type Assignment struct {
	ID         int64     `json:"id,omitempty"`
	PatientID  int64     `json:"patient_id"`
	DoctorName string    `json:"doctor_name,omitempty"`
	NurseName  string    `json:"nurse_name,omitempty"`
	CreatedAt  wire.Time `json:"created_at"`
}
