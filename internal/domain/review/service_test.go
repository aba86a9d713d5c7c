package review

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/carepulse/console/internal/domain/patient"
	"github.com/carepulse/console/internal/platform/gateway"
	"github.com/carepulse/console/internal/platform/session"
)

type call struct {
	method string
	target string
	body   map[string]any
}

type fakeTransport struct {
	calls  []call
	failAt int // 1-based call number that fails; 0 never fails
	err    error
}

func (f *fakeTransport) record(method, target string, body any) error {
	m, _ := body.(map[string]any)
	if m == nil {
		if sm, ok := body.(map[string]string); ok {
			m = map[string]any{}
			for k, v := range sm {
				m[k] = v
			}
		}
	}
	f.calls = append(f.calls, call{method: method, target: target, body: m})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return f.err
	}
	return nil
}

func (f *fakeTransport) Post(_ context.Context, target string, body, _ any) error {
	return f.record(http.MethodPost, target, body)
}

func (f *fakeTransport) Put(_ context.Context, target string, body, _ any) error {
	return f.record(http.MethodPut, target, body)
}

type fixedRole session.Role

func (r fixedRole) Role() session.Role { return session.Role(r) }

type recordingCache struct {
	invalidated []int64
}

func (c *recordingCache) Invalidate(id int64) { c.invalidated = append(c.invalidated, id) }

func newTestService(role session.Role) (*Service, *fakeTransport, *recordingCache) {
	tr := &fakeTransport{}
	inv := &recordingCache{}
	return NewService(tr, fixedRole(role), inv), tr, inv
}

func testTarget() Target {
	return Target{
		PatientID: 42,
		Day:       "2026-02-10",
		Log: &patient.CallLog{
			ID:        7,
			PatientID: 42,
			Responses: []patient.Response{
				{IntentID: "med_adherence_daily", Type: patient.TypeYesNo, Answer: "yes"},
				{IntentID: "symptom_trend", Type: patient.TypeTrend, Trend: "same", RedFlag: true},
				{IntentID: "free_comment", Type: patient.TypeFreeText},
			},
		},
	}
}

func assertValidation(t *testing.T, err error) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmitCorrection_TrendValidation(t *testing.T) {
	tests := []struct {
		name      string
		corr      patient.Correction
		wantCalls int
	}{
		{"both empty", patient.Correction{Reason: "misheard"}, 0},
		{"whitespace only", patient.Correction{Trend: "  ", CorrectedText: "\t"}, 0},
		{"answer does not count for trend", patient.Correction{Answer: "yes"}, 0},
		{"trend only", patient.Correction{Trend: "worse"}, 1},
		{"corrected text only", patient.Correction{CorrectedText: "getting worse"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tr, inv := newTestService(session.RoleNurse)
			err := svc.SubmitCorrection(context.Background(), testTarget(), "symptom_trend", tt.corr)
			if tt.wantCalls == 0 {
				assertValidation(t, err)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tr.calls) != tt.wantCalls {
				t.Fatalf("expected %d network calls, got %d", tt.wantCalls, len(tr.calls))
			}
			if len(inv.invalidated) != tt.wantCalls {
				t.Errorf("expected %d invalidations, got %v", tt.wantCalls, inv.invalidated)
			}
		})
	}
}

func TestSubmitCorrection_AnswerTypes(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleNurse)
	ctx := context.Background()

	assertValidation(t, svc.SubmitCorrection(ctx, testTarget(), "med_adherence_daily", patient.Correction{Trend: "better"}))
	if len(tr.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(tr.calls))
	}

	if err := svc.SubmitCorrection(ctx, testTarget(), "med_adherence_daily", patient.Correction{Answer: "no", Reason: " misheard "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := tr.calls[0]
	if c.method != http.MethodPost || c.target != "/care/response-correction" {
		t.Fatalf("unexpected call %s %s", c.method, c.target)
	}
	if c.body["answer"] != "no" || c.body["trend"] != nil || c.body["corrected_text"] != nil {
		t.Errorf("unexpected body %v", c.body)
	}
	if c.body["reason"] != "misheard" || c.body["response_type"] != "yes_no" || c.body["call_log_id"] != int64(7) {
		t.Errorf("unexpected body %v", c.body)
	}
}

func TestSubmitCorrection_Preconditions(t *testing.T) {
	ctx := context.Background()
	corr := patient.Correction{CorrectedText: "fine"}

	svc, tr, _ := newTestService(session.RoleNurse)
	err := svc.SubmitCorrection(ctx, Target{PatientID: 42, Day: "2026-02-11"}, "symptom_trend", corr)
	if !errors.Is(err, ErrNoCallLog) {
		t.Fatalf("expected ErrNoCallLog, got %v", err)
	}
	var nce *NoCallLogError
	if !errors.As(err, &nce) || nce.Day != "2026-02-11" {
		t.Errorf("unexpected error %v", err)
	}

	assertValidation(t, svc.SubmitCorrection(ctx, testTarget(), "unknown_intent", corr))

	staff, staffTr, _ := newTestService(session.RoleStaff)
	assertValidation(t, staff.SubmitCorrection(ctx, testTarget(), "symptom_trend", corr))

	if len(tr.calls)+len(staffTr.calls) != 0 {
		t.Fatal("expected no network calls")
	}
}

func TestSubmitCorrection_FailureKeepsCache(t *testing.T) {
	svc, tr, inv := newTestService(session.RoleNurse)
	tr.failAt = 1
	tr.err = &gateway.ApiError{Status: http.StatusInternalServerError, Message: "Request failed (500)"}

	err := svc.SubmitCorrection(context.Background(), testTarget(), "free_comment", patient.Correction{CorrectedText: "chest hurts"})
	if !gateway.IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected ApiError, got %v", err)
	}
	if len(inv.invalidated) != 0 {
		t.Errorf("expected no invalidation, got %v", inv.invalidated)
	}
}

func TestOverrideRisk(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		justification string
		wantCalls     int
	}{
		{"score out of range", 150, "valid reason text", 0},
		{"negative score", -1, "valid reason text", 0},
		{"short justification", 40, "short", 0},
		{"nine characters", 40, "nine char", 0},
		{"valid", 40, "long enough text", 1},
		{"bounds", 100, "exactly ten", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tr, _ := newTestService(session.RoleDoctor)
			err := svc.OverrideRisk(context.Background(), 42, 7, tt.score, tt.justification)
			if tt.wantCalls == 0 {
				assertValidation(t, err)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tr.calls) != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, len(tr.calls))
			}
			if tt.wantCalls == 1 {
				c := tr.calls[0]
				if c.target != "/care/risk-override" || c.body["risk_score"] != tt.score || c.body["note"] != tt.justification {
					t.Errorf("unexpected call %s %v", c.target, c.body)
				}
			}
		})
	}
}

func TestOverrideRiskLegacy_ConvertsToFraction(t *testing.T) {
	svc, tr, inv := newTestService(session.RoleDoctor)
	if err := svc.OverrideRiskLegacy(context.Background(), 42, 7, 65, "patient stable on call"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := tr.calls[0]
	if c.target != "/doctor/override-risk" || c.body["override_score"] != 0.65 {
		t.Errorf("unexpected call %s %v", c.target, c.body)
	}
	if len(inv.invalidated) != 1 || inv.invalidated[0] != 42 {
		t.Errorf("expected invalidation of 42, got %v", inv.invalidated)
	}

	assertValidation(t, svc.OverrideRiskLegacy(context.Background(), 42, 7, 0.5, "short"))
	if len(tr.calls) != 1 {
		t.Errorf("expected no extra calls, got %d", len(tr.calls))
	}
}

func TestOverrideRisk_DoctorOnly(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleNurse)
	assertValidation(t, svc.OverrideRisk(context.Background(), 42, 7, 40, "long enough text"))
	if len(tr.calls) != 0 {
		t.Fatal("expected no calls")
	}
}

func TestClearAlert(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleDoctor)
	assertValidation(t, svc.ClearAlert(context.Background(), 42, 7, "bad"))
	if len(tr.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(tr.calls))
	}
	if err := svc.ClearAlert(context.Background(), 42, 7, "false positive"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.calls) != 1 || tr.calls[0].target != "/doctor/clear-alert" || tr.calls[0].body["reason"] != "false positive" {
		t.Errorf("unexpected calls %+v", tr.calls)
	}

	if !errors.Is(svc.ClearAlert(context.Background(), 42, 0, "false positive"), ErrNoCallLog) {
		t.Error("expected ErrNoCallLog for missing call log")
	}
}

func TestConfirmAlert(t *testing.T) {
	svc, tr, inv := newTestService(session.RoleDoctor)
	if err := svc.ConfirmAlert(context.Background(), 42, 7, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := tr.calls[0]
	if c.target != "/doctor/confirm-alert" || c.body["doctor_note"] != nil || c.body["call_log_id"] != int64(7) {
		t.Errorf("unexpected call %s %v", c.target, c.body)
	}
	if len(inv.invalidated) != 1 {
		t.Errorf("expected invalidation, got %v", inv.invalidated)
	}

	nurse, nurseTr, _ := newTestService(session.RoleNurse)
	assertValidation(t, nurse.ConfirmAlert(context.Background(), 42, 7, "ok"))
	if len(nurseTr.calls) != 0 {
		t.Fatal("expected no calls for nurse")
	}
}

func TestBulk_AllSucceed(t *testing.T) {
	svc, tr, inv := newTestService(session.RoleDoctor)
	if err := svc.ConfirmAll(context.Background(), testTarget()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(tr.calls))
	}
	wantIntents := []string{"med_adherence_daily", "symptom_trend", "free_comment"}
	for i, c := range tr.calls {
		if c.target != "/care/response-review" || c.body["intent_id"] != wantIntents[i] {
			t.Errorf("call %d: unexpected %s %v", i, c.target, c.body)
		}
		if c.body["label"] != LabelConfirm || c.body["reason"] != "bulk confirm" {
			t.Errorf("call %d: unexpected body %v", i, c.body)
		}
	}
	if len(inv.invalidated) != 1 {
		t.Errorf("expected a single invalidation, got %v", inv.invalidated)
	}
}

func TestBulk_StopsOnFirstFailure(t *testing.T) {
	svc, tr, inv := newTestService(session.RoleDoctor)
	tr.failAt = 2
	tr.err = &gateway.TransportError{Method: http.MethodPost, URL: "/care/response-review", Attempts: 1}

	err := svc.ClearAll(context.Background(), testTarget())
	var be *BulkError
	if !errors.As(err, &be) {
		t.Fatalf("expected BulkError, got %v", err)
	}
	if be.Completed != 1 || be.Total != 3 {
		t.Errorf("expected 1 of 3, got %d of %d", be.Completed, be.Total)
	}
	if !gateway.IsTransport(err) {
		t.Error("expected the transport error to be unwrappable")
	}
	if len(tr.calls) != 2 {
		t.Errorf("expected loop to stop after 2 calls, got %d", len(tr.calls))
	}
	if tr.calls[0].body["label"] != LabelClear || tr.calls[0].body["reason"] != "bulk clear" {
		t.Errorf("unexpected body %v", tr.calls[0].body)
	}
	if len(inv.invalidated) != 1 {
		t.Errorf("expected invalidation after partial failure, got %v", inv.invalidated)
	}
}

func TestBulk_NoCallLog(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleDoctor)
	if !errors.Is(svc.ConfirmAll(context.Background(), Target{PatientID: 42}), ErrNoCallLog) {
		t.Fatal("expected ErrNoCallLog")
	}
	if len(tr.calls) != 0 {
		t.Fatal("expected no calls")
	}
}

func TestReviewResponse(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleDoctor)
	if err := svc.ReviewResponse(context.Background(), testTarget(), "symptom_trend", false, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.calls[0].body["label"] != LabelClear || tr.calls[0].body["intent_id"] != "symptom_trend" {
		t.Errorf("unexpected body %v", tr.calls[0].body)
	}
	assertValidation(t, svc.ReviewResponse(context.Background(), testTarget(), "nope", true, ""))
}

func TestEscalateResponse(t *testing.T) {
	svc, tr, inv := newTestService(session.RoleNurse)
	target := testTarget()
	if err := svc.EscalateResponse(context.Background(), target, "symptom_trend", " worse since Monday "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := tr.calls[0]
	if c.target != "/care/interventions" {
		t.Fatalf("unexpected target %s", c.target)
	}
	if c.body["type"] != "nurse_escalation" || c.body["status"] != "planned" ||
		c.body["note"] != "Escalated response symptom_trend: worse since Monday" {
		t.Errorf("unexpected body %v", c.body)
	}
	if target.Log.Responses[1].Review != nil {
		t.Error("escalation must not modify the response")
	}
	if len(inv.invalidated) != 1 {
		t.Errorf("expected invalidation, got %v", inv.invalidated)
	}

	if EscalationNote("a", "") != "Escalated response a" {
		t.Errorf("unexpected note without reason: %q", EscalationNote("a", ""))
	}
}

func TestSaveDoctorNote(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleDoctor)
	assertValidation(t, svc.SaveDoctorNote(context.Background(), testTarget(), "   "))
	if err := svc.SaveDoctorNote(context.Background(), testTarget(), "Call back tomorrow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(tr.calls))
	}
	c := tr.calls[0]
	if c.method != http.MethodPut || c.target != "/patients/42/logs/7/note" || c.body["note"] != "Call back tomorrow" {
		t.Errorf("unexpected call %s %s %v", c.method, c.target, c.body)
	}
}

func TestAssignNurseCall(t *testing.T) {
	svc, tr, _ := newTestService(session.RoleDoctor)
	ctx := context.Background()

	assertValidation(t, svc.AssignNurseCall(ctx, NurseCall{PatientID: 42, Note: "hi"}))
	assertValidation(t, svc.AssignNurseCall(ctx, NurseCall{PatientID: 42, Note: "please call", Priority: "asap"}))
	if len(tr.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(tr.calls))
	}

	if err := svc.AssignNurseCall(ctx, NurseCall{PatientID: 42, CallLogID: 7, Note: "please call"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := tr.calls[0]
	if c.target != "/doctor/assign-nurse-call" || c.body["priority"] != "medium" ||
		c.body["assigned_to_nurse_id"] != nil || c.body["call_log_id"] != int64(7) {
		t.Errorf("unexpected call %s %v", c.target, c.body)
	}
}

func TestNoSession(t *testing.T) {
	svc, tr, _ := newTestService("")
	assertValidation(t, svc.ConfirmAlert(context.Background(), 42, 7, ""))
	if len(tr.calls) != 0 {
		t.Fatal("expected no calls")
	}
}
