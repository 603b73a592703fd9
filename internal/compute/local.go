package compute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/aevon-lab/salestrack/internal/core/normalize"
	"github.com/aevon-lab/salestrack/internal/source"
)

// Local loads the sources, normalizes them and runs the aggregation engine.
type Local struct {
	manifests source.ManifestProvider
	loader    *source.Loader
	now       func() time.Time
}

var _ Strategy = (*Local)(nil)

func NewLocal(manifests source.ManifestProvider, loader *source.Loader) *Local {
	return &Local{manifests: manifests, loader: loader, now: time.Now}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Compute(ctx context.Context) (aggregation.CachedResult, error) {
	start := time.Now()

	manifest, err := l.manifests.Manifest(ctx)
	if err != nil {
		return aggregation.CachedResult{}, fmt.Errorf("resolve manifest: %w", err)
	}

	ds, err := l.loader.Load(ctx, manifest)
	if err != nil {
		return aggregation.CachedResult{}, err
	}

	agreements, stats := normalize.Agreements(ds.Agreements)
	if len(agreements) == 0 {
		return aggregation.CachedResult{}, fmt.Errorf("%w (%d rows read, %d dropped)", ErrNoAgreements, stats.Rows, stats.Dropped)
	}
	if len(ds.Sales) == 0 {
		return aggregation.CachedResult{}, fmt.Errorf("%w: none of %d sources could be read", ErrNoSalesData, len(manifest.SalesFiles))
	}

	var (
		sales   []aggregation.SaleLine
		dropped int
	)
	for _, t := range ds.Sales {
		lines, st := normalize.Sales(t)
		sales = append(sales, lines...)
		dropped += st.Dropped
	}
	if len(sales) == 0 {
		return aggregation.CachedResult{}, fmt.Errorf("%w (%d rows dropped)", ErrNoSalesData, dropped)
	}

	result := aggregation.NewCachedResult(aggregation.Aggregate(agreements, sales), l.now())

	slog.Info("[Compute] Local aggregation complete",
		"result_id", result.ID,
		"agreements", len(agreements),
		"agreements_dropped", stats.Dropped,
		"sale_lines", len(sales),
		"sale_lines_dropped", dropped,
		"sources_skipped", len(ds.Skipped),
		"customers", result.Summary.CustomerCount,
		"duration", time.Since(start),
	)
	return result, nil
}
