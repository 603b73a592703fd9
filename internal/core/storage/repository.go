package storage

import (
	"context"
	"errors"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
)

// ErrNotFound is returned by Read when the store holds no current result.
var ErrNotFound = errors.New("no cached result")

// ResultStore holds at most one current CachedResult.
//
// Write replaces the stored value unconditionally. On the shared tier this is
// last-writer-wins across every client: there is no version check and no
// conflict detection, a later Write from any client simply overwrites.
type ResultStore interface {
	// Read returns the current snapshot, or ErrNotFound when there is none.
	Read(ctx context.Context) (*aggregation.CachedResult, error)

	// Write replaces the current snapshot.
	Write(ctx context.Context, result aggregation.CachedResult) error
}

// HealthChecker is implemented by stores backed by a remote service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Nop is a ResultStore that never holds anything. It stands in for the shared
// tier when a deployment runs without one.
type Nop struct{}

func (Nop) Read(context.Context) (*aggregation.CachedResult, error) { return nil, ErrNotFound }

func (Nop) Write(context.Context, aggregation.CachedResult) error { return nil }
