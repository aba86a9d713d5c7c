package patient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carepulse/console/pkg/wire"
)

// NoResponseText is shown for a response that has neither a transcript nor a
// decoded answer. Such a response is still reviewable.
const NoResponseText = "No response recorded"

// Patient is the console's read copy of a monitored patient.
type Patient struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Age          *int     `json:"age,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	DiseaseTrack string   `json:"disease_track,omitempty"`
	Protocol     string   `json:"protocol,omitempty"`
	Active       bool     `json:"active"`
	RiskScore    *float64 `json:"risk_score,omitempty"`
}

// ResponseType says how an automated-call answer is interpreted.
type ResponseType string

const (
	TypeYesNo    ResponseType = "yes_no"
	TypeTrend    ResponseType = "trend"
	TypeChoice   ResponseType = "choice"
	TypeFreeText ResponseType = "free_text"
)

// ParseResponseType maps the API's response_type onto the four known types.
// Option-style types collapse to choice; unknown or missing types are free text.
func ParseResponseType(s string) ResponseType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes_no", "yesno", "boolean":
		return TypeYesNo
	case "trend":
		return TypeTrend
	case "choice", "options", "scale":
		return TypeChoice
	default:
		return TypeFreeText
	}
}

// ReviewStatus is the clinician disposition recorded for one response.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusConfirmed ReviewStatus = "confirmed"
	StatusCleared   ReviewStatus = "cleared"
)

// Correction is a nurse's reinterpretation of one response.
type Correction struct {
	Answer        string `json:"answer,omitempty"`
	Trend         string `json:"trend,omitempty"`
	CorrectedText string `json:"corrected_text,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Empty reports whether the correction carries no reinterpretation at all.
func (c Correction) Empty() bool {
	return strings.TrimSpace(c.Answer) == "" &&
		strings.TrimSpace(c.Trend) == "" &&
		strings.TrimSpace(c.CorrectedText) == ""
}

// ReviewAnnotation is the nurse/doctor interpretation state of a response.
type ReviewAnnotation struct {
	Status     ReviewStatus `json:"review_status"`
	Reason     string       `json:"review_reason,omitempty"`
	Correction *Correction  `json:"correction,omitempty"`
}

// Response is one question/answer pair captured by an automated call.
//
// JSON decoding reads the API's flattened wire shape (review_status,
// corrected_answer, structured_data, ...); encoding writes this struct's own
// view shape.
type Response struct {
	IntentID   string            `json:"intent_id"`
	Label      string            `json:"label,omitempty"`
	Question   string            `json:"question,omitempty"`
	Type       ResponseType      `json:"response_type"`
	RawText    string            `json:"raw_text,omitempty"`
	Answer     string            `json:"answer,omitempty"`
	Trend      string            `json:"trend,omitempty"`
	Structured map[string]any    `json:"structured_data,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	RedFlag    bool              `json:"red_flag"`
	Review     *ReviewAnnotation `json:"review,omitempty"`
}

// DisplayText is what a reviewer sees: the corrected transcript if any, then
// the raw transcript, then the decoded answer, then a placeholder.
func (r Response) DisplayText() string {
	if r.Review != nil && r.Review.Correction != nil {
		if t := strings.TrimSpace(r.Review.Correction.CorrectedText); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(r.RawText); t != "" && t != "-" {
		return t
	}
	if r.Answer != "" {
		return r.Answer
	}
	if r.Trend != "" {
		return r.Trend
	}
	return NoResponseText
}

// Corrected reports whether a nurse correction is attached.
func (r Response) Corrected() bool {
	return r.Review != nil && r.Review.Correction != nil && !r.Review.Correction.Empty()
}

type responseWire struct {
	IntentID        string          `json:"intent_id"`
	Label           string          `json:"label"`
	Question        string          `json:"question"`
	ResponseType    string          `json:"response_type"`
	RawText         *string         `json:"raw_text"`
	StructuredData  json.RawMessage `json:"structured_data"`
	Confidence      *float64        `json:"confidence"`
	RedFlag         bool            `json:"red_flag"`
	ReviewStatus    *string         `json:"review_status"`
	ReviewReason    *string         `json:"review_reason"`
	CorrectedAnswer *string         `json:"corrected_answer"`
	CorrectedTrend  *string         `json:"corrected_trend"`
	CorrectedText   *string         `json:"corrected_text"`
	CorrectedReason *string         `json:"corrected_reason"`
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var w responseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("response: %w", err)
	}
	if strings.TrimSpace(w.IntentID) == "" {
		return fmt.Errorf("response: intent_id is required")
	}

	out := Response{
		IntentID: w.IntentID,
		Label:    w.Label,
		Question: w.Question,
		Type:     ParseResponseType(w.ResponseType),
		RawText:  deref(w.RawText),
		RedFlag:  w.RedFlag,
	}
	if w.Confidence != nil && *w.Confidence >= 0 && *w.Confidence <= 100 {
		c := *w.Confidence
		out.Confidence = &c
	}

	out.Structured = decodeStructured(w.StructuredData)
	out.Answer = stringField(out.Structured, "answer")
	out.Trend = stringField(out.Structured, "trend")

	status := StatusPending
	switch strings.ToLower(deref(w.ReviewStatus)) {
	case string(StatusConfirmed):
		status = StatusConfirmed
	case string(StatusCleared):
		status = StatusCleared
	}
	corr := Correction{
		Answer:        deref(w.CorrectedAnswer),
		Trend:         deref(w.CorrectedTrend),
		CorrectedText: deref(w.CorrectedText),
		Reason:        deref(w.CorrectedReason),
	}
	if status != StatusPending || !corr.Empty() {
		ann := &ReviewAnnotation{Status: status, Reason: deref(w.ReviewReason)}
		if !corr.Empty() {
			ann.Correction = &corr
		}
		out.Review = ann
	}

	*r = out
	return nil
}

// decodeStructured accepts an object, or a bare scalar which is read as the
// answer. Anything else decodes to nil.
func decodeStructured(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		return t
	case string, bool, float64:
		return map[string]any{"answer": t}
	default:
		return nil
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return ""
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CallLog is one automated phone interaction with its captured responses.
type CallLog struct {
	ID          int64      `json:"id"`
	PatientID   int64      `json:"patient_id"`
	Protocol    string     `json:"protocol,omitempty"`
	CreatedAt   wire.Time  `json:"created_at"`
	Status      string     `json:"status,omitempty"`
	Answered    bool       `json:"answered"`
	RiskScore   *float64   `json:"risk_score,omitempty"`
	RiskLevel   string     `json:"risk_level,omitempty"`
	RiskSource  string     `json:"risk_source,omitempty"`
	Responses   []Response `json:"responses"`
	DoctorNote  string     `json:"doctor_note,omitempty"`
	Transcripts []string   `json:"transcripts,omitempty"`

	// Dropped counts responses that could not be decoded and were skipped.
	Dropped int `json:"-"`
}

// UnmarshalJSON decodes responses one by one so a single malformed row does
// not lose the whole log.
func (l *CallLog) UnmarshalJSON(data []byte) error {
	type plain CallLog
	var w struct {
		plain
		Responses []json.RawMessage `json:"responses"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("call log: %w", err)
	}
	out := CallLog(w.plain)
	out.Responses = make([]Response, 0, len(w.Responses))
	for _, raw := range w.Responses {
		var r Response
		if err := json.Unmarshal(raw, &r); err != nil {
			out.Dropped++
			continue
		}
		out.Responses = append(out.Responses, r)
	}
	*l = out
	return nil
}

// Response returns the response captured for intentID.
func (l *CallLog) Response(intentID string) (*Response, bool) {
	for i := range l.Responses {
		if l.Responses[i].IntentID == intentID {
			return &l.Responses[i], true
		}
	}
	return nil, false
}

// FlaggedCount returns the number of red-flag responses.
func (l *CallLog) FlaggedCount() int {
	n := 0
	for _, r := range l.Responses {
		if r.RedFlag {
			n++
		}
	}
	return n
}

// Latest returns the most recently created log, or nil for an empty slice.
// Logs with unparseable timestamps lose to any dated log.
func Latest(logs []CallLog) *CallLog {
	var best *CallLog
	for i := range logs {
		l := &logs[i]
		if best == nil {
			best = l
			continue
		}
		switch {
		case l.CreatedAt.Valid && !best.CreatedAt.Valid:
			best = l
		case l.CreatedAt.Valid && best.CreatedAt.Valid && !l.CreatedAt.Time.Before(best.CreatedAt.Time):
			best = l
		}
	}
	return best
}

// ForDay returns the latest log created on the calendar day dayKey
// (YYYY-MM-DD). An empty dayKey selects the latest log overall.
func ForDay(logs []CallLog, dayKey string) *CallLog {
	if dayKey == "" {
		return Latest(logs)
	}
	var sameDay []CallLog
	for _, l := range logs {
		if l.CreatedAt.DayKey() == dayKey {
			sameDay = append(sameDay, l)
		}
	}
	if len(sameDay) == 0 {
		return nil
	}
	latest := *Latest(sameDay)
	for i := range logs {
		if logs[i].ID == latest.ID {
			return &logs[i]
		}
	}
	return nil
}
