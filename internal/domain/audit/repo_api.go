package audit

import (
	"context"
	"fmt"

	"github.com/carepulse/console/internal/platform/gateway"
)

type apiRepo struct {
	client *gateway.Client
}

func NewAPIRepo(client *gateway.Client) Repository {
	return &apiRepo{client: client}
}

func (r *apiRepo) List(ctx context.Context, feed Feed, limit int) ([]Entry, error) {
	var out []Entry
	if err := r.client.Get(ctx, fmt.Sprintf("%s?limit=%d", feed, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}
