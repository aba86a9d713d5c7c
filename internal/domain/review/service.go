// Package review governs how an automated-call response moves from raw
// capture through nurse correction to a doctor's disposition. Every
// operation validates locally first; a rejected operation never reaches the
// network. Every accepted operation is an audited write on the API and, on
// success, invalidates the patient's cached review bundle.
package review

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/internal/platform/cache"
	"github.com/carepulse/console/internal/platform/session"
)

const (
	MinClearReason           = 5
	MinOverrideJustification = 10
	MinAssignmentNote        = 5

	bulkConfirmReason = "bulk confirm"
	bulkClearReason   = "bulk clear"
)

// Disposition labels sent to /care/response-review.
const (
	LabelConfirm = 1
	LabelClear   = 0
)

// Priorities accepted for nurse call assignments.
var priorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}

// Transport is the write side of the gateway client.
type Transport interface {
	Post(ctx context.Context, target string, body, out any) error
	Put(ctx context.Context, target string, body, out any) error
}

// RoleSource reports the role of the active session.
type RoleSource interface {
	Role() session.Role
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

type Service struct {
	transport Transport
	roles     RoleSource
	cache     cache.Invalidator
	logger    zerolog.Logger
}

func NewService(t Transport, roles RoleSource, inv cache.Invalidator, opts ...ServiceOption) *Service {
	if inv == nil {
		inv = cache.Nop{}
	}
	s := &Service{transport: t, roles: roles, cache: inv, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) requireRole(op string, allowed ...session.Role) error {
	var role session.Role
	if s.roles != nil {
		role = s.roles.Role()
	}
	for _, r := range allowed {
		if role == r {
			return nil
		}
	}
	if role == "" {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("%s requires a signed-in session", op)}
	}
	return &ValidationError{Field: "role", Message: fmt.Sprintf("%s is not permitted for role %s", op, role)}
}

func textLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// write posts body and invalidates the patient's cache on success.
func (s *Service) write(ctx context.Context, patientID int64, op, target string, body any) error {
	if err := s.transport.Post(ctx, target, body, nil); err != nil {
		s.logger.Warn().Err(err).Str("op", op).Int64("patient_id", patientID).Msg("review write failed")
		return err
	}
	s.cache.Invalidate(patientID)
	s.logger.Info().Str("op", op).Int64("patient_id", patientID).Msg("review write")
	return nil
}

// SubmitCorrection records a nurse's reinterpretation of one response. Trend
// responses need a trend or corrected text; every other type needs an answer
// or corrected text.
func (s *Service) SubmitCorrection(ctx context.Context, t Target, intentID string, c patient.Correction) error {
	if err := s.requireRole("correction", session.RoleNurse, session.RoleDoctor); err != nil {
		return err
	}
	if err := t.requireLog(); err != nil {
		return err
	}
	resp, ok := t.Log.Response(intentID)
	if !ok {
		return invalid("intent_id", "intent %q is not part of call log %d", intentID, t.Log.ID)
	}

	c.Answer = strings.TrimSpace(c.Answer)
	c.Trend = strings.TrimSpace(c.Trend)
	c.CorrectedText = strings.TrimSpace(c.CorrectedText)
	c.Reason = strings.TrimSpace(c.Reason)

	if resp.Type == patient.TypeTrend {
		if c.Trend == "" && c.CorrectedText == "" {
			return invalid("trend", "a trend or corrected text is required")
		}
	} else if c.Answer == "" && c.CorrectedText == "" {
		return invalid("answer", "an answer or corrected text is required")
	}

	body := map[string]any{
		"patient_id":     t.PatientID,
		"call_log_id":    t.Log.ID,
		"intent_id":      intentID,
		"response_type":  string(resp.Type),
		"answer":         nullable(c.Answer),
		"trend":          nullable(c.Trend),
		"corrected_text": nullable(c.CorrectedText),
		"reason":         c.Reason,
	}
	return s.write(ctx, t.PatientID, "correction", "/care/response-correction", body)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ReviewResponse confirms (true) or clears (false) one response.
func (s *Service) ReviewResponse(ctx context.Context, t Target, intentID string, confirm bool, reason string) error {
	if err := s.requireRole("response review", session.RoleDoctor); err != nil {
		return err
	}
	if err := t.requireLog(); err != nil {
		return err
	}
	if _, ok := t.Log.Response(intentID); !ok {
		return invalid("intent_id", "intent %q is not part of call log %d", intentID, t.Log.ID)
	}
	return s.write(ctx, t.PatientID, "response review", "/care/response-review", reviewBody(t, intentID, confirm, strings.TrimSpace(reason)))
}

func reviewBody(t Target, intentID string, confirm bool, reason string) map[string]any {
	label := LabelClear
	if confirm {
		label = LabelConfirm
	}
	return map[string]any{
		"patient_id":  t.PatientID,
		"call_log_id": t.Log.ID,
		"intent_id":   intentID,
		"label":       label,
		"reason":      reason,
	}
}

// ConfirmAll confirms every response on the target log.
func (s *Service) ConfirmAll(ctx context.Context, t Target) error {
	return s.bulk(ctx, t, true)
}

// ClearAll clears every response on the target log.
func (s *Service) ClearAll(ctx context.Context, t Target) error {
	return s.bulk(ctx, t, false)
}

// bulk applies one disposition to every response in log order. It stops at
// the first failure and reports it once as a *BulkError; earlier dispositions
// stay applied. The cache is invalidated whenever anything may have changed.
func (s *Service) bulk(ctx context.Context, t Target, confirm bool) error {
	if err := s.requireRole("bulk review", session.RoleDoctor); err != nil {
		return err
	}
	if err := t.requireLog(); err != nil {
		return err
	}
	reason := bulkClearReason
	if confirm {
		reason = bulkConfirmReason
	}

	total := len(t.Log.Responses)
	for i, r := range t.Log.Responses {
		if err := s.transport.Post(ctx, "/care/response-review", reviewBody(t, r.IntentID, confirm, reason), nil); err != nil {
			s.cache.Invalidate(t.PatientID)
			s.logger.Warn().Err(err).Int("completed", i).Int("total", total).Str("reason", reason).Msg("bulk review stopped")
			return &BulkError{Completed: i, Total: total, Err: err}
		}
	}
	s.cache.Invalidate(t.PatientID)
	s.logger.Info().Int("total", total).Str("reason", reason).Int64("patient_id", t.PatientID).Msg("bulk review")
	return nil
}

// ConfirmAlert records the doctor's confirmation of the log's alert.
func (s *Service) ConfirmAlert(ctx context.Context, patientID, callLogID int64, note string) error {
	if err := s.requireRole("confirm alert", session.RoleDoctor); err != nil {
		return err
	}
	if callLogID <= 0 {
		return &NoCallLogError{PatientID: patientID}
	}
	body := map[string]any{
		"call_log_id": callLogID,
		"patient_id":  patientID,
		"doctor_note": nullable(strings.TrimSpace(note)),
	}
	return s.write(ctx, patientID, "confirm alert", "/doctor/confirm-alert", body)
}

// ClearAlert records the doctor's dismissal of the log's alert as a false
// positive.
func (s *Service) ClearAlert(ctx context.Context, patientID, callLogID int64, reason string) error {
	if err := s.requireRole("clear alert", session.RoleDoctor); err != nil {
		return err
	}
	if callLogID <= 0 {
		return &NoCallLogError{PatientID: patientID}
	}
	if textLen(reason) < MinClearReason {
		return invalid("reason", "must be at least %d characters", MinClearReason)
	}
	body := map[string]any{
		"call_log_id": callLogID,
		"patient_id":  patientID,
		"reason":      strings.TrimSpace(reason),
	}
	return s.write(ctx, patientID, "clear alert", "/doctor/clear-alert", body)
}

func validateOverride(score float64, justification string) error {
	if math.IsNaN(score) || score < 0 || score > 100 {
		return invalid("risk_score", "must be between 0 and 100")
	}
	if textLen(justification) < MinOverrideJustification {
		return invalid("justification", "must be at least %d characters", MinOverrideJustification)
	}
	return nil
}

// OverrideRisk replaces the log's risk score. score is a percentage.
func (s *Service) OverrideRisk(ctx context.Context, patientID, callLogID int64, score float64, justification string) error {
	if err := s.requireRole("risk override", session.RoleDoctor); err != nil {
		return err
	}
	if callLogID <= 0 {
		return &NoCallLogError{PatientID: patientID}
	}
	if err := validateOverride(score, justification); err != nil {
		return err
	}
	body := map[string]any{
		"patient_id":  patientID,
		"call_log_id": callLogID,
		"risk_score":  score,
		"note":        strings.TrimSpace(justification),
	}
	return s.write(ctx, patientID, "risk override", "/care/risk-override", body)
}

// OverrideRiskLegacy is OverrideRisk against the doctor route, which takes a
// 0-1 fraction. score is still a percentage.
func (s *Service) OverrideRiskLegacy(ctx context.Context, patientID, callLogID int64, score float64, justification string) error {
	if err := s.requireRole("risk override", session.RoleDoctor); err != nil {
		return err
	}
	if callLogID <= 0 {
		return &NoCallLogError{PatientID: patientID}
	}
	if err := validateOverride(score, justification); err != nil {
		return err
	}
	body := map[string]any{
		"call_log_id":    callLogID,
		"patient_id":     patientID,
		"override_score": score / 100,
		"justification":  strings.TrimSpace(justification),
	}
	return s.write(ctx, patientID, "risk override", "/doctor/override-risk", body)
}

// EscalateResponse opens a nurse escalation intervention for one response.
// The response itself is not modified.
func (s *Service) EscalateResponse(ctx context.Context, t Target, intentID, reason string) error {
	if err := s.requireRole("escalation", session.RoleNurse, session.RoleDoctor); err != nil {
		return err
	}
	if err := t.requireLog(); err != nil {
		return err
	}
	if _, ok := t.Log.Response(intentID); !ok {
		return invalid("intent_id", "intent %q is not part of call log %d", intentID, t.Log.ID)
	}
	body := map[string]any{
		"patient_id": t.PatientID,
		"type":       EscalationType,
		"status":     "planned",
		"note":       EscalationNote(intentID, reason),
	}
	return s.write(ctx, t.PatientID, "escalation", "/care/interventions", body)
}

// SaveDoctorNote attaches a note to the target log.
func (s *Service) SaveDoctorNote(ctx context.Context, t Target, note string) error {
	if err := s.requireRole("doctor note", session.RoleDoctor); err != nil {
		return err
	}
	if err := t.requireLog(); err != nil {
		return err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return invalid("note", "is required")
	}
	target := fmt.Sprintf("/patients/%d/logs/%d/note", t.PatientID, t.Log.ID)
	if err := s.transport.Put(ctx, target, map[string]string{"note": note}, nil); err != nil {
		return err
	}
	s.cache.Invalidate(t.PatientID)
	return nil
}

// NurseCall is a doctor's request for a nurse follow-up call.
type NurseCall struct {
	PatientID int64
	CallLogID int64
	NurseID   int64
	Priority  string
	Note      string
}

// AssignNurseCall asks for a nurse follow-up call. A zero NurseID leaves the
// task to any nurse; an empty Priority is medium.
func (s *Service) AssignNurseCall(ctx context.Context, nc NurseCall) error {
	if err := s.requireRole("nurse call assignment", session.RoleDoctor); err != nil {
		return err
	}
	if nc.PatientID <= 0 {
		return invalid("patient_id", "is required")
	}
	priority := strings.ToLower(strings.TrimSpace(nc.Priority))
	if priority == "" {
		priority = "medium"
	}
	if !priorities[priority] {
		return invalid("priority", "must be one of low, medium, high, urgent")
	}
	if textLen(nc.Note) < MinAssignmentNote {
		return invalid("note", "must be at least %d characters", MinAssignmentNote)
	}
	body := map[string]any{
		"patient_id":           nc.PatientID,
		"call_log_id":          nullableID(nc.CallLogID),
		"assigned_to_nurse_id": nullableID(nc.NurseID),
		"priority":             priority,
		"note":                 strings.TrimSpace(nc.Note),
	}
	return s.write(ctx, nc.PatientID, "nurse call assignment", "/doctor/assign-nurse-call", body)
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
