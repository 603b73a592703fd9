// Package refresh owns the displayed result and keeps it fresh across the
// local and shared cache tiers.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aevon-lab/salestrack/internal/compute"
	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/aevon-lab/salestrack/internal/core/storage"
	"golang.org/x/sync/singleflight"
)

// ErrRecomputeFailed wraps the last strategy error when no strategy produced a result.
var ErrRecomputeFailed = errors.New("recompute failed")

// ErrEmptyResult marks a strategy that reported success without any performances.
var ErrEmptyResult = errors.New("strategy returned an empty result")

// State is the coordinator's lifecycle position.
type State string

const (
	StateIdle          State = "idle"
	StateLoadingLocal  State = "loading_local"
	StateLoadingShared State = "loading_shared"
	StateRecomputing   State = "recomputing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Trigger identifies what asked for a refresh.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerManual   Trigger = "manual"
	TriggerPeriodic Trigger = "periodic"
)

// Status is a point-in-time view of the coordinator.
type Status struct {
	State           State     `json:"state"`
	LastTrigger     Trigger   `json:"last_trigger,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
	ResultID        string    `json:"result_id,omitempty"`
	ComputedAt      time.Time `json:"computed_at"`
	HasResult       bool      `json:"has_result"`
}

const recomputeKey = "recompute"

// Coordinator is the single owner of the current result. The result is an
// immutable snapshot swapped atomically; readers never observe a partial update.
type Coordinator struct {
	local      storage.ResultStore
	shared     storage.ResultStore
	strategies []compute.Strategy

	current atomic.Pointer[aggregation.CachedResult]
	flight  singleflight.Group
	bg      sync.WaitGroup
	now     func() time.Time

	// publishMu orders display swaps with their local write-through so the
	// local tier always ends up holding the displayed snapshot.
	publishMu sync.Mutex

	mu            sync.RWMutex
	state         State
	lastTrigger   Trigger
	lastErr       error
	lastRefreshed time.Time
}

// NewCoordinator builds a coordinator. Strategies are tried in order on
// every recompute; the first success wins. A nil shared store means the
// deployment has no shared tier.
func NewCoordinator(local, shared storage.ResultStore, strategies ...compute.Strategy) *Coordinator {
	if shared == nil {
		shared = storage.Nop{}
	}
	return &Coordinator{
		local:      local,
		shared:     shared,
		strategies: strategies,
		now:        time.Now,
		state:      StateIdle,
	}
}

// Current returns the displayed snapshot, or nil before the first one exists.
func (c *Coordinator) Current() *aggregation.CachedResult {
	return c.current.Load()
}

// Status reports the state and the last outcome.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	s := Status{
		State:           c.state,
		LastTrigger:     c.lastTrigger,
		LastRefreshedAt: c.lastRefreshed,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	c.mu.RUnlock()

	if cur := c.current.Load(); cur != nil {
		s.HasResult = true
		s.ResultID = cur.ID
		s.ComputedAt = cur.ComputedAt
	}
	return s
}

// Start performs the startup refresh. A non-empty local snapshot is displayed
// immediately and the shared tier is reconciled in the background. Otherwise
// the shared tier is read synchronously, and when both tiers are empty a
// recompute runs and its error is returned.
func (c *Coordinator) Start(ctx context.Context) error {
	c.setState(StateLoadingLocal, TriggerStartup)

	if local := c.read(ctx, c.local, "local"); !local.IsEmpty() {
		c.current.Store(local)
		c.markReady()
		slog.Info("[Coordinator] Displaying local snapshot",
			"result_id", local.ID,
			"computed_at", local.ComputedAt,
		)

		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			c.reconcileShared(context.WithoutCancel(ctx), local)
		}()
		return nil
	}

	c.setState(StateLoadingShared, TriggerStartup)
	if shared := c.read(ctx, c.shared, "shared"); !shared.IsEmpty() {
		c.publishMu.Lock()
		c.current.Store(shared)
		c.writeLocal(ctx, *shared)
		c.publishMu.Unlock()
		c.markReady()
		slog.Info("[Coordinator] Displaying shared snapshot", "result_id", shared.ID)
		return nil
	}

	slog.Info("[Coordinator] Cold start, no cached result in either tier")
	_, err := c.Refresh(ctx, TriggerStartup)
	return err
}

// reconcileShared replaces the optimistic local display with the shared
// snapshot. It does nothing when a recompute has already replaced the display.
func (c *Coordinator) reconcileShared(ctx context.Context, displayed *aggregation.CachedResult) {
	shared := c.read(ctx, c.shared, "shared")
	if shared.IsEmpty() || shared.ID == displayed.ID {
		return
	}

	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if !c.current.CompareAndSwap(displayed, shared) {
		slog.Debug("[Coordinator] Display changed during reconciliation, keeping it")
		return
	}
	c.writeLocal(ctx, *shared)

	slog.Info("[Coordinator] Reconciled with shared snapshot",
		"result_id", shared.ID,
		"computed_at", shared.ComputedAt,
	)
}

// Refresh recomputes unconditionally. Concurrent calls share one in-flight
// recompute and all receive its outcome. On failure the previous display is
// kept and the error wraps ErrRecomputeFailed.
func (c *Coordinator) Refresh(ctx context.Context, trigger Trigger) (*aggregation.CachedResult, error) {
	// The recompute outlives any single caller: joiners depend on it.
	runCtx := context.WithoutCancel(ctx)

	v, err, shared := c.flight.Do(recomputeKey, func() (interface{}, error) {
		return c.recompute(runCtx, trigger)
	})
	if shared {
		slog.Debug("[Coordinator] Trigger coalesced into in-flight recompute", "trigger", trigger)
	}
	if err != nil {
		return nil, err
	}
	return v.(*aggregation.CachedResult), nil
}

func (c *Coordinator) recompute(ctx context.Context, trigger Trigger) (*aggregation.CachedResult, error) {
	c.setState(StateRecomputing, trigger)
	start := c.now()

	var lastErr error
	for _, s := range c.strategies {
		result, err := s.Compute(ctx)
		if errors.Is(err, compute.ErrUnavailable) {
			slog.Debug("[Coordinator] Strategy not configured, skipping", "strategy", s.Name())
			continue
		}
		if err != nil {
			slog.Warn("[Coordinator] Strategy failed, trying next",
				"strategy", s.Name(),
				"trigger", trigger,
				"error", err,
			)
			lastErr = err
			continue
		}
		if result.IsEmpty() {
			slog.Warn("[Coordinator] Strategy returned an empty result, trying next",
				"strategy", s.Name(),
				"trigger", trigger,
			)
			lastErr = fmt.Errorf("%s: %w", s.Name(), ErrEmptyResult)
			continue
		}

		c.publish(ctx, result)
		slog.Info("[Coordinator] Recompute succeeded",
			"strategy", s.Name(),
			"trigger", trigger,
			"result_id", result.ID,
			"customers", result.Summary.CustomerCount,
			"duration", c.now().Sub(start),
		)
		return &result, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no compute strategy available")
	}
	err := fmt.Errorf("%w: %w", ErrRecomputeFailed, lastErr)
	c.markFailed(err)
	return nil, err
}

// publish swaps in the new snapshot and writes it through both tiers.
// Cache write failures are logged; the refresh still counts as a success.
func (c *Coordinator) publish(ctx context.Context, result aggregation.CachedResult) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.current.Store(&result)

	if err := c.shared.Write(ctx, result); err != nil {
		slog.Warn("[Coordinator] Shared cache write failed",
			"result_id", result.ID,
			"error", err,
		)
	}
	c.writeLocal(ctx, result)
	c.markReady()
}

func (c *Coordinator) writeLocal(ctx context.Context, result aggregation.CachedResult) {
	if err := c.local.Write(ctx, result); err != nil {
		slog.Warn("[Coordinator] Local cache write failed",
			"result_id", result.ID,
			"error", err,
		)
	}
}

// read returns nil for an absent or unreadable tier.
func (c *Coordinator) read(ctx context.Context, store storage.ResultStore, tier string) *aggregation.CachedResult {
	result, err := store.Read(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		slog.Warn("[Coordinator] Cache read failed, treating tier as empty",
			"tier", tier,
			"error", err,
		)
		return nil
	}
	return result
}

// Wait blocks until background reconciliation has finished.
func (c *Coordinator) Wait() {
	c.bg.Wait()
}

func (c *Coordinator) setState(s State, trigger Trigger) {
	c.mu.Lock()
	c.state = s
	c.lastTrigger = trigger
	c.mu.Unlock()
}

func (c *Coordinator) markReady() {
	c.mu.Lock()
	c.state = StateReady
	c.lastErr = nil
	c.lastRefreshed = c.now().UTC()
	c.mu.Unlock()
}

func (c *Coordinator) markFailed(err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
}
