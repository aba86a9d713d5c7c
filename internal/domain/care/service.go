package care

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carepulse/console/internal/platform/cache"
)

// ErrInvalid marks a request rejected before anything was sent.
var ErrInvalid = errors.New("invalid care request")

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

type Service struct {
	reminders     ReminderRepository
	interventions InterventionRepository
	assignments   AssignmentRepository
	cache         cache.Invalidator
}

func NewService(reminders ReminderRepository, interventions InterventionRepository, assignments AssignmentRepository, inv cache.Invalidator) *Service {
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Service{reminders: reminders, interventions: interventions, assignments: assignments, cache: inv}
}

// -- Reminders --

func (s *Service) ListReminders(ctx context.Context, patientID int64) ([]MedicationReminder, error) {
	return s.reminders.List(ctx, patientID)
}

func (s *Service) ScheduleReminder(ctx context.Context, r NewReminder) (*MedicationReminder, error) {
	if r.PatientID <= 0 {
		return nil, invalid("patient_id is required")
	}
	r.MedicationName = strings.TrimSpace(r.MedicationName)
	if r.MedicationName == "" {
		return nil, invalid("medication_name is required")
	}
	out, err := s.reminders.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(r.PatientID)
	return out, nil
}

// SetReminderStatus moves a reminder to status after checking the
// transition against the reminder's current status.
func (s *Service) SetReminderStatus(ctx context.Context, id int64, status ReminderStatus) (*MedicationReminder, error) {
	current, err := s.reminders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(current.Status, status); err != nil {
		return nil, err
	}
	out, err := s.reminders.Update(ctx, id, ReminderUpdate{Status: status})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(current.PatientID)
	return out, nil
}

func (s *Service) DeleteReminder(ctx context.Context, patientID, id int64) error {
	if err := s.reminders.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(patientID)
	return nil
}

// -- Interventions --

func (s *Service) ListInterventions(ctx context.Context, patientID int64) ([]Intervention, error) {
	return s.interventions.List(ctx, patientID)
}

func (s *Service) RecordIntervention(ctx context.Context, in Intervention) (*Intervention, error) {
	if in.PatientID <= 0 {
		return nil, invalid("patient_id is required")
	}
	if strings.TrimSpace(in.Type) == "" {
		return nil, invalid("type is required")
	}
	if in.Status == "" {
		in.Status = "planned"
	}
	out, err := s.interventions.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(in.PatientID)
	return out, nil
}

// -- Assignments --

func (s *Service) ListAssignments(ctx context.Context, patientID int64) ([]Assignment, error) {
	return s.assignments.List(ctx, patientID)
}

// CurrentAssignment returns the most recent assignment of the patient, or
// nil when none exists.
func (s *Service) CurrentAssignment(ctx context.Context, patientID int64) (*Assignment, error) {
	list, err := s.assignments.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	var best *Assignment
	for i := range list {
		a := &list[i]
		if a.PatientID != patientID {
			continue
		}
		if best == nil || (a.CreatedAt.Valid && (!best.CreatedAt.Valid || a.CreatedAt.Time.After(best.CreatedAt.Time))) {
			best = a
		}
	}
	return best, nil
}

func (s *Service) Assign(ctx context.Context, a Assignment) (*Assignment, error) {
	if a.PatientID <= 0 {
		return nil, invalid("patient_id is required")
	}
	if strings.TrimSpace(a.DoctorName) == "" && strings.TrimSpace(a.NurseName) == "" {
		return nil, invalid("doctor_name or nurse_name is required")
	}
	out, err := s.assignments.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(a.PatientID)
	return out, nil
}
