package audit

import "context"

// Feed names an audit source on the API.
type Feed string

const (
	// FeedSystem is the admin-facing system event feed.
	FeedSystem Feed = "/admin/events"
	// FeedCare is the clinical action audit trail.
	FeedCare Feed = "/care/audit"
)

type Repository interface {
	List(ctx context.Context, feed Feed, limit int) ([]Entry, error)
}
