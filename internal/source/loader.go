package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/salestrack/internal/core/normalize"
	"golang.org/x/sync/errgroup"
)

// ErrAgreementSource means the registry could not be fetched or parsed.
// Without it there is nothing to aggregate against.
var ErrAgreementSource = errors.New("agreement source unavailable")

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxParallel  = 4
)

// SkippedSource records a sales extract that was left out of a load.
type SkippedSource struct {
	Location string
	Err      error
}

// Dataset is the raw material of one recomputation.
type Dataset struct {
	Agreements normalize.Table
	// Sales holds the readable extracts in manifest order.
	Sales   []normalize.Table
	Skipped []SkippedSource
}

// Loader fetches and decodes the sources named by a manifest.
type Loader struct {
	fetcher      Fetcher
	fetchTimeout time.Duration
	maxParallel  int
}

// NewLoader applies defaults for non-positive timeout and parallelism.
func NewLoader(fetcher Fetcher, fetchTimeout time.Duration, maxParallel int) *Loader {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &Loader{fetcher: fetcher, fetchTimeout: fetchTimeout, maxParallel: maxParallel}
}

// Load fetches the agreement registry, then all sales extracts with bounded
// parallelism. A failing extract is logged and skipped; a failing registry
// fails the load.
func (l *Loader) Load(ctx context.Context, m Manifest) (Dataset, error) {
	agreements, err := l.table(ctx, m.AgreementSource)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %s: %v", ErrAgreementSource, m.AgreementSource, err)
	}

	locations := m.SalesLocations()
	tables := make([]*normalize.Table, len(locations))
	failures := make([]error, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxParallel)
	for i, loc := range locations {
		g.Go(func() error {
			t, err := l.table(gctx, loc)
			if err != nil {
				failures[i] = err
				return nil
			}
			tables[i] = &t
			return nil
		})
	}
	_ = g.Wait()

	ds := Dataset{Agreements: agreements}
	for i, loc := range locations {
		if failures[i] != nil {
			slog.Warn("[Loader] Skipping sales source",
				"location", loc,
				"error", failures[i],
			)
			ds.Skipped = append(ds.Skipped, SkippedSource{Location: loc, Err: failures[i]})
			continue
		}
		ds.Sales = append(ds.Sales, *tables[i])
	}

	slog.Info("[Loader] Sources loaded",
		"agreement_rows", len(agreements.Rows),
		"sales_sources", len(ds.Sales),
		"skipped", len(ds.Skipped),
	)
	return ds, nil
}

func (l *Loader) table(ctx context.Context, location string) (normalize.Table, error) {
	if location == "" {
		return normalize.Table{}, errors.New("empty location")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	defer cancel()

	data, err := l.fetcher.Fetch(fetchCtx, location)
	if err != nil {
		return normalize.Table{}, err
	}
	return ReadTable(location, data)
}
