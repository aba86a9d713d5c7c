package care

import "context"

type ReminderRepository interface {
	List(ctx context.Context, patientID int64) ([]MedicationReminder, error)
	Get(ctx context.Context, id int64) (*MedicationReminder, error)
	Create(ctx context.Context, r NewReminder) (*MedicationReminder, error)
	Update(ctx context.Context, id int64, u ReminderUpdate) (*MedicationReminder, error)
	Delete(ctx context.Context, id int64) error
}

type InterventionRepository interface {
	List(ctx context.Context, patientID int64) ([]Intervention, error)
	Create(ctx context.Context, in Intervention) (*Intervention, error)
}

type AssignmentRepository interface {
	List(ctx context.Context, patientID int64) ([]Assignment, error)
	Create(ctx context.Context, a Assignment) (*Assignment, error)
}
