// Package compute produces fresh CachedResults, either by asking a remote
// compute endpoint or by aggregating the sources locally.
package compute

import (
	"context"
	"errors"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
)

var (
	// ErrUnavailable means the strategy is not configured and was not attempted.
	ErrUnavailable = errors.New("compute strategy unavailable")

	// ErrNoAgreements means the registry yielded no valid agreement.
	ErrNoAgreements = errors.New("no valid customer data found in agreement source")

	// ErrNoSalesData means no sales source was readable or none yielded a valid line.
	ErrNoSalesData = errors.New("no valid sales data found in sales sources")
)

// Strategy computes a fresh snapshot.
type Strategy interface {
	Name() string
	Compute(ctx context.Context) (aggregation.CachedResult, error)
}
