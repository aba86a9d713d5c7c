package patient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carepulse/console/internal/platform/gateway"
)

type apiRepo struct {
	client *gateway.Client
}

// NewAPIRepo returns a Repository backed by the gateway client.
func NewAPIRepo(client *gateway.Client) Repository {
	return &apiRepo{client: client}
}

// Get reads /patients/{id}. Deployments without the single-patient route
// answer 404 or 405; those fall back to scanning the patient list.
func (r *apiRepo) Get(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.client.Get(ctx, fmt.Sprintf("/patients/%d", id), &p)
	if err == nil {
		return &p, nil
	}
	if !gateway.IsStatus(err, http.StatusNotFound, http.StatusMethodNotAllowed) {
		return nil, err
	}

	all, lerr := r.List(ctx)
	if lerr != nil {
		return nil, lerr
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
}

func (r *apiRepo) List(ctx context.Context) ([]Patient, error) {
	var out []Patient
	if err := r.client.Get(ctx, "/patients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *apiRepo) Logs(ctx context.Context, patientID int64) ([]CallLog, error) {
	var out []CallLog
	if err := r.client.Get(ctx, fmt.Sprintf("/patients/%d/all-logs", patientID), &out); err != nil {
		return nil, err
	}
	return out, nil
}
