package audit

import "context"

const (
	SystemFeedLimit = 200
	CareFeedLimit   = 50
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SystemEvents returns the system event feed restricted to the known system
// actions, then narrowed by f.
func (s *Service) SystemEvents(ctx context.Context, f Filter) ([]Entry, error) {
	entries, err := s.repo.List(ctx, FeedSystem, SystemFeedLimit)
	if err != nil {
		return nil, err
	}
	known := entries[:0:0]
	for _, e := range entries {
		if IsSystemAction(e.Action) {
			known = append(known, e)
		}
	}
	return Apply(known, f)
}

// CareAudit returns the most recent clinical audit entries.
func (s *Service) CareAudit(ctx context.Context, f Filter) ([]Entry, error) {
	entries, err := s.repo.List(ctx, FeedCare, CareFeedLimit)
	if err != nil {
		return nil, err
	}
	return Apply(entries, f)
}

// ExportSystemEvents returns the filtered system feed as CSV.
func (s *Service) ExportSystemEvents(ctx context.Context, f Filter) (string, error) {
	entries, err := s.SystemEvents(ctx, f)
	if err != nil {
		return "", err
	}
	return ExportCSV(entries), nil
}
