package review

import (
	"strings"

	"github.com/carepulse/console/internal/domain/care"
	"github.com/carepulse/console/internal/domain/patient"
)

// State is the display state of one response in the review lifecycle. States
// are not terminal; a confirmed or cleared response may still be corrected.
type State string

const (
	StateRaw       State = "raw"
	StateCorrected State = "corrected"
	StateConfirmed State = "confirmed"
	StateCleared   State = "cleared"
	StateEscalated State = "escalated"
)

// StateOf derives the display state of resp. A doctor disposition wins over
// an escalation, which wins over a bare correction.
func StateOf(resp patient.Response, escalated bool) State {
	if resp.Review != nil {
		switch resp.Review.Status {
		case patient.StatusConfirmed:
			return StateConfirmed
		case patient.StatusCleared:
			return StateCleared
		}
	}
	if escalated {
		return StateEscalated
	}
	if resp.Corrected() {
		return StateCorrected
	}
	return StateRaw
}

const (
	EscalationType   = "nurse_escalation"
	escalationPrefix = "Escalated response "
)

// EscalationNote is the intervention note recorded for an escalation.
func EscalationNote(intentID, reason string) string {
	note := escalationPrefix + intentID
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	return note
}

// EscalatedIntents returns the intents escalated by interventions created at
// or after the log's timestamp. Escalations on earlier logs do not carry over.
func EscalatedIntents(log *patient.CallLog, interventions []care.Intervention) map[string]bool {
	out := map[string]bool{}
	if log == nil {
		return out
	}
	for _, in := range interventions {
		if in.Type != EscalationType || !strings.HasPrefix(in.Note, escalationPrefix) {
			continue
		}
		if log.CreatedAt.Valid && in.CreatedAt.Valid && in.CreatedAt.Time.Before(log.CreatedAt.Time) {
			continue
		}
		intent := strings.TrimPrefix(in.Note, escalationPrefix)
		if i := strings.Index(intent, ":"); i >= 0 {
			intent = intent[:i]
		}
		if _, ok := log.Response(intent); ok {
			out[intent] = true
		}
	}
	return out
}

// Item is one response prepared for the review panel.
type Item struct {
	IntentID   string                    `json:"intent_id"`
	Label      string                    `json:"label,omitempty"`
	Question   string                    `json:"question,omitempty"`
	Type       patient.ResponseType      `json:"response_type"`
	Text       string                    `json:"text"`
	Answer     string                    `json:"answer,omitempty"`
	Trend      string                    `json:"trend,omitempty"`
	Confidence *float64                  `json:"confidence,omitempty"`
	RedFlag    bool                      `json:"red_flag"`
	State      State                     `json:"state"`
	Review     *patient.ReviewAnnotation `json:"review,omitempty"`
}

// Items projects every response of log into review items, in log order.
// Corrected answers and trends replace the decoded ones.
func Items(log *patient.CallLog, escalated map[string]bool) []Item {
	if log == nil {
		return nil
	}
	out := make([]Item, 0, len(log.Responses))
	for _, r := range log.Responses {
		it := Item{
			IntentID:   r.IntentID,
			Label:      r.Label,
			Question:   r.Question,
			Type:       r.Type,
			Text:       r.DisplayText(),
			Answer:     r.Answer,
			Trend:      r.Trend,
			Confidence: r.Confidence,
			RedFlag:    r.RedFlag,
			State:      StateOf(r, escalated[r.IntentID]),
			Review:     r.Review,
		}
		if r.Corrected() {
			if c := r.Review.Correction; c.Answer != "" {
				it.Answer = c.Answer
			}
			if c := r.Review.Correction; c.Trend != "" {
				it.Trend = c.Trend
			}
		}
		out = append(out, it)
	}
	return out
}

// Target is the patient and call log a review operation applies to. Log is
// nil when the selected date has no call record.
type Target struct {
	PatientID int64
	Day       string
	Log       *patient.CallLog
}

func (t Target) requireLog() error {
	if t.Log == nil {
		return &NoCallLogError{PatientID: t.PatientID, Day: t.Day}
	}
	return nil
}
