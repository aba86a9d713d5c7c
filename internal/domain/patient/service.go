package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("patient not found")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	if id <= 0 {
		return nil, fmt.Errorf("patient id must be positive")
	}
	return s.repo.Get(ctx, id)
}

// ListPatients returns patients ordered by descending risk score; unscored
// patients sort last, ties by name.
func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].RiskScore, out[j].RiskScore
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && *a != *b:
			return *a > *b
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Logs returns every call log of the patient, oldest first.
func (s *Service) Logs(ctx context.Context, patientID int64) ([]CallLog, error) {
	if patientID <= 0 {
		return nil, fmt.Errorf("patient id must be positive")
	}
	logs, err := s.repo.Logs(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		if l.Dropped > 0 {
			s.logger.Warn().Int64("patient_id", patientID).Int64("call_log_id", l.ID).
				Int("dropped", l.Dropped).Msg("skipped undecodable responses")
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		a, b := logs[i].CreatedAt, logs[j].CreatedAt
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Time.Before(b.Time)
	})
	return logs, nil
}
