package care

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/carepulse/console/internal/platform/gateway"
)

func byPatient(path string, patientID int64) string {
	if patientID <= 0 {
		return path
	}
	q := url.Values{}
	q.Set("patient_id", strconv.FormatInt(patientID, 10))
	return path + "?" + q.Encode()
}

// -- Reminders --

type reminderAPI struct {
	client *gateway.Client
}

func NewReminderAPIRepo(client *gateway.Client) ReminderRepository {
	return &reminderAPI{client: client}
}

func (r *reminderAPI) List(ctx context.Context, patientID int64) ([]MedicationReminder, error) {
	var out []MedicationReminder
	if err := r.client.Get(ctx, byPatient("/care/medication/reminders", patientID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reminderAPI) Get(ctx context.Context, id int64) (*MedicationReminder, error) {
	var out MedicationReminder
	if err := r.client.Get(ctx, fmt.Sprintf("/care/medication/reminders/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reminderAPI) Create(ctx context.Context, in NewReminder) (*MedicationReminder, error) {
	var out MedicationReminder
	if err := r.client.Post(ctx, "/care/medication/reminders", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reminderAPI) Update(ctx context.Context, id int64, u ReminderUpdate) (*MedicationReminder, error) {
	var out MedicationReminder
	if err := r.client.Put(ctx, fmt.Sprintf("/care/medication/reminders/%d", id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reminderAPI) Delete(ctx context.Context, id int64) error {
	return r.client.Delete(ctx, fmt.Sprintf("/care/medication/reminders/%d", id), nil)
}

// -- Interventions --

type interventionAPI struct {
	client *gateway.Client
}

func NewInterventionAPIRepo(client *gateway.Client) InterventionRepository {
	return &interventionAPI{client: client}
}

func (r *interventionAPI) List(ctx context.Context, patientID int64) ([]Intervention, error) {
	var out []Intervention
	if err := r.client.Get(ctx, byPatient("/care/interventions", patientID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *interventionAPI) Create(ctx context.Context, in Intervention) (*Intervention, error) {
	var out Intervention
	if err := r.client.Post(ctx, "/care/interventions", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -- Assignments --

type assignmentAPI struct {
	client *gateway.Client
}

func NewAssignmentAPIRepo(client *gateway.Client) AssignmentRepository {
	return &assignmentAPI{client: client}
}

func (r *assignmentAPI) List(ctx context.Context, patientID int64) ([]Assignment, error) {
	var out []Assignment
	if err := r.client.Get(ctx, byPatient("/care/assignments", patientID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assignmentAPI) Create(ctx context.Context, a Assignment) (*Assignment, error) {
	var out Assignment
	if err := r.client.Post(ctx, "/care/assignments", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
