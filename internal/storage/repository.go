package storage

import (
	"context"

	"proxyfinder/internal/model"
)

// ProxyRepository defines the methods for interacting with the proxy storage.
type ProxyRepository interface {
	// SaveBatch saves fetched candidates. Rows are keyed by (ip, port);
	// an existing row is left untouched.
	SaveBatch(ctx context.Context, proxies []model.Candidate) error

	// UpdateBatch records the validation results of one run.
	UpdateBatch(ctx context.Context, runID string, proxies []model.Candidate) error

	// Count returns the total number of proxies.
	Count(ctx context.Context) (int64, error)
}
