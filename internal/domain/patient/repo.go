package patient

import "context"

// Repository reads patients and their call logs from the CarePulse API.
type Repository interface {
	Get(ctx context.Context, id int64) (*Patient, error)
	List(ctx context.Context) ([]Patient, error)
	Logs(ctx context.Context, patientID int64) ([]CallLog, error)
}
