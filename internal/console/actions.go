package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/internal/domain/review"
)

// ActionKind names a clinician action on the current view.
type ActionKind string

const (
	ActionCorrect            ActionKind = "correct"
	ActionReview             ActionKind = "review"
	ActionConfirmAll         ActionKind = "confirm_all"
	ActionClearAll           ActionKind = "clear_all"
	ActionConfirmAlert       ActionKind = "confirm_alert"
	ActionClearAlert         ActionKind = "clear_alert"
	ActionOverrideRisk       ActionKind = "override_risk"
	ActionOverrideRiskLegacy ActionKind = "override_risk_legacy"
	ActionEscalate           ActionKind = "escalate"
	ActionNote               ActionKind = "note"
	ActionAssignNurseCall    ActionKind = "assign_nurse_call"

	ActionScheduleReminder   ActionKind = "schedule_reminder"
	ActionSetReminderStatus  ActionKind = "set_reminder_status"
	ActionDeleteReminder     ActionKind = "delete_reminder"
	ActionRecordIntervention ActionKind = "record_intervention"
	ActionAssign             ActionKind = "assign"
)

// Action is one clinician request. Which fields matter depends on Kind.
type Action struct {
	Kind       ActionKind          `json:"kind"`
	IntentID   string              `json:"intent_id,omitempty"`
	Confirm    bool                `json:"confirm,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Note       string              `json:"note,omitempty"`
	Score      float64             `json:"score,omitempty"`
	Correction *patient.Correction `json:"correction,omitempty"`
	NurseID    int64               `json:"nurse_id,omitempty"`
	Priority   string              `json:"priority,omitempty"`

	Reminder     *care.NewReminder   `json:"reminder,omitempty"`
	ReminderID   int64               `json:"reminder_id,omitempty"`
	Status       care.ReminderStatus `json:"status,omitempty"`
	Intervention *care.Intervention  `json:"intervention,omitempty"`
	Assignment   *care.Assignment    `json:"assignment,omitempty"`
}

// Apply runs a against the committed view of patientID and reloads the view
// after the write. A bulk action that stopped early also reloads before
// returning its *review.BulkError. The returned view is nil if the reload
// was superseded.
func (w *Workspace) Apply(ctx context.Context, patientID int64, a Action) (*View, error) {
	v := w.Current()
	if v == nil || v.PatientID != patientID {
		return nil, ErrNoView
	}

	err := w.dispatch(ctx, v, a)
	var bulk *review.BulkError
	if err != nil && !errors.As(err, &bulk) {
		return nil, err
	}

	next, _, loadErr := w.Load(ctx, patientID, v.Day)
	if err != nil {
		return next, err
	}
	if loadErr != nil {
		return nil, fmt.Errorf("reload after %s: %w", a.Kind, loadErr)
	}
	return next, nil
}

func (w *Workspace) dispatch(ctx context.Context, v *View, a Action) error {
	t := v.Target()
	var logID int64
	if v.Log != nil {
		logID = v.Log.ID
	}

	switch a.Kind {
	case ActionCorrect:
		if a.Correction == nil {
			return &review.ValidationError{Field: "correction", Message: "is required"}
		}
		return w.review.SubmitCorrection(ctx, t, a.IntentID, *a.Correction)
	case ActionReview:
		return w.review.ReviewResponse(ctx, t, a.IntentID, a.Confirm, a.Reason)
	case ActionConfirmAll:
		return w.review.ConfirmAll(ctx, t)
	case ActionClearAll:
		return w.review.ClearAll(ctx, t)
	case ActionConfirmAlert:
		return w.review.ConfirmAlert(ctx, v.PatientID, logID, a.Note)
	case ActionClearAlert:
		return w.review.ClearAlert(ctx, v.PatientID, logID, a.Reason)
	case ActionOverrideRisk:
		return w.review.OverrideRisk(ctx, v.PatientID, logID, a.Score, a.Reason)
	case ActionOverrideRiskLegacy:
		return w.review.OverrideRiskLegacy(ctx, v.PatientID, logID, a.Score, a.Reason)
	case ActionEscalate:
		return w.review.EscalateResponse(ctx, t, a.IntentID, a.Reason)
	case ActionNote:
		return w.review.SaveDoctorNote(ctx, t, a.Note)
	case ActionAssignNurseCall:
		return w.review.AssignNurseCall(ctx, review.NurseCall{
			PatientID: v.PatientID,
			CallLogID: logID,
			NurseID:   a.NurseID,
			Priority:  a.Priority,
			Note:      a.Note,
		})
	case ActionScheduleReminder:
		if a.Reminder == nil {
			return &review.ValidationError{Field: "reminder", Message: "is required"}
		}
		r := *a.Reminder
		r.PatientID = v.PatientID
		_, err := w.care.ScheduleReminder(ctx, r)
		return err
	case ActionSetReminderStatus:
		if err := ownsReminder(v, a.ReminderID); err != nil {
			return err
		}
		_, err := w.care.SetReminderStatus(ctx, a.ReminderID, a.Status)
		return err
	case ActionDeleteReminder:
		if err := ownsReminder(v, a.ReminderID); err != nil {
			return err
		}
		return w.care.DeleteReminder(ctx, v.PatientID, a.ReminderID)
	case ActionRecordIntervention:
		if a.Intervention == nil {
			return &review.ValidationError{Field: "intervention", Message: "is required"}
		}
		in := *a.Intervention
		in.PatientID = v.PatientID
		_, err := w.care.RecordIntervention(ctx, in)
		return err
	case ActionAssign:
		if a.Assignment == nil {
			return &review.ValidationError{Field: "assignment", Message: "is required"}
		}
		as := *a.Assignment
		as.PatientID = v.PatientID
		_, err := w.care.Assign(ctx, as)
		return err
	default:
		return &review.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown action %q", a.Kind)}
	}
}

// ownsReminder rejects reminder ids that are not on the loaded view.
func ownsReminder(v *View, id int64) error {
	for _, r := range v.Reminders {
		if r.ID == id {
			return nil
		}
	}
	return &review.ValidationError{Field: "reminder_id", Message: fmt.Sprintf("reminder %d is not on this patient", id)}
}
