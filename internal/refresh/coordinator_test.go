package refresh

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aevon-lab/salestrack/internal/compute"
	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/aevon-lab/salestrack/internal/core/storage"
	"github.com/aevon-lab/salestrack/internal/core/storage/local"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ResultStore with injectable failures.
type memStore struct {
	mu       sync.Mutex
	value    *aggregation.CachedResult
	readErr  error
	writeErr error
	writes   int

	// beforeWrite runs outside the lock ahead of every Write.
	beforeWrite func(id string)
}

func (m *memStore) Read(context.Context) (*aggregation.CachedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.value == nil {
		return nil, storage.ErrNotFound
	}
	return m.value, nil
}

func (m *memStore) Write(_ context.Context, r aggregation.CachedResult) error {
	if m.beforeWrite != nil {
		m.beforeWrite(r.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.value = &r
	return nil
}

func (m *memStore) get() *aggregation.CachedResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// mockStrategy is a testify mock of compute.Strategy.
type mockStrategy struct {
	mock.Mock
	name string
}

func (m *mockStrategy) Name() string { return m.name }

func (m *mockStrategy) Compute(ctx context.Context) (aggregation.CachedResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(aggregation.CachedResult), args.Error(1)
}

func snapshot(id string) aggregation.CachedResult {
	return aggregation.CachedResult{
		ID: id,
		Performances: []aggregation.Performance{{
			Agreement:      aggregation.Agreement{CustomerCode: "C1", CustomerName: "Acme", TargetVolume: 1000},
			AchievedVolume: 600, ProgressPercentage: 60,
			Products: []aggregation.ProductBreakdown{{ProductName: "Widget", TotalVolume: 600}},
		}},
		Summary:    aggregation.Summary{TotalTarget: 1000, TotalAchieved: 600, OverallProgress: 60, CustomerCount: 1},
		ComputedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStart_ColdStartFallsBackToLocalCompute(t *testing.T) {
	localStore := &memStore{}
	sharedStore := &memStore{}

	remote := &mockStrategy{name: "remote"}
	remote.On("Compute", mock.Anything).Return(aggregation.CachedResult{}, errors.New("dial tcp: connection refused")).Once()
	inProcess := &mockStrategy{name: "local"}
	inProcess.On("Compute", mock.Anything).Return(snapshot("fresh"), nil).Once()

	c := NewCoordinator(localStore, sharedStore, remote, inProcess)
	require.NoError(t, c.Start(context.Background()))
	c.Wait()

	require.Equal(t, StateReady, c.Status().State)
	require.Equal(t, "fresh", c.Current().ID)
	require.Equal(t, "fresh", localStore.get().ID)
	require.Equal(t, "fresh", sharedStore.get().ID)
	remote.AssertExpectations(t)
	inProcess.AssertExpectations(t)
}

func TestStart_ColdStartFailureIsReturned(t *testing.T) {
	failing := &mockStrategy{name: "local"}
	failing.On("Compute", mock.Anything).Return(aggregation.CachedResult{}, compute.ErrNoSalesData)

	c := NewCoordinator(&memStore{}, &memStore{}, failing)
	err := c.Start(context.Background())

	require.ErrorIs(t, err, ErrRecomputeFailed)
	require.ErrorIs(t, err, compute.ErrNoSalesData)
	require.Nil(t, c.Current())
	require.Equal(t, StateFailed, c.Status().State)
	require.False(t, c.Status().HasResult)
}

func TestStart_LocalSnapshotDisplayedThenReconciledWithShared(t *testing.T) {
	localSnap := snapshot("local")
	sharedSnap := snapshot("shared")
	localStore := &memStore{value: &localSnap}
	sharedStore := &memStore{value: &sharedSnap}

	strategy := &mockStrategy{name: "local"}
	c := NewCoordinator(localStore, sharedStore, strategy)

	require.NoError(t, c.Start(context.Background()))
	c.Wait()

	require.Equal(t, "shared", c.Current().ID)
	require.Equal(t, "shared", localStore.get().ID, "local tier is overwritten with the shared snapshot")
	require.Equal(t, StateReady, c.Status().State)
	strategy.AssertNotCalled(t, "Compute", mock.Anything)
}

func TestStart_LocalSnapshotWithEmptyShared(t *testing.T) {
	localSnap := snapshot("local")
	c := NewCoordinator(&memStore{value: &localSnap}, &memStore{}, &mockStrategy{name: "local"})

	require.NoError(t, c.Start(context.Background()))
	c.Wait()

	require.Equal(t, "local", c.Current().ID)
	require.Equal(t, StateReady, c.Status().State)
}

func TestStart_SharedSnapshotWhenLocalEmpty(t *testing.T) {
	sharedSnap := snapshot("shared")
	localStore := &memStore{}
	c := NewCoordinator(localStore, &memStore{value: &sharedSnap}, &mockStrategy{name: "local"})

	require.NoError(t, c.Start(context.Background()))

	require.Equal(t, "shared", c.Current().ID)
	require.Equal(t, "shared", localStore.get().ID)
}

func TestStart_UnreadableTiersAreTreatedAsEmpty(t *testing.T) {
	strategy := &mockStrategy{name: "local"}
	strategy.On("Compute", mock.Anything).Return(snapshot("fresh"), nil).Once()

	c := NewCoordinator(
		&memStore{readErr: errors.New("permission denied")},
		&memStore{readErr: errors.New("connection refused")},
		strategy,
	)
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, "fresh", c.Current().ID)
}

func TestRefresh_ManualFailureRetainsDisplay(t *testing.T) {
	localSnap := snapshot("local")
	localStore := &memStore{value: &localSnap}

	remote := compute.NewRemote("", time.Second)
	failing := &mockStrategy{name: "local"}
	failing.On("Compute", mock.Anything).Return(aggregation.CachedResult{}, errors.New("agreement source unavailable"))

	c := NewCoordinator(localStore, &memStore{}, remote, failing)
	require.NoError(t, c.Start(context.Background()))
	c.Wait()

	result, err := c.Refresh(context.Background(), TriggerManual)
	require.ErrorIs(t, err, ErrRecomputeFailed)
	require.Nil(t, result)

	status := c.Status()
	require.Equal(t, StateFailed, status.State)
	require.Equal(t, TriggerManual, status.LastTrigger)
	require.Contains(t, status.LastError, "agreement source unavailable")
	require.True(t, status.HasResult)
	require.Equal(t, "local", c.Current().ID, "stale data outranks no data")
	require.Equal(t, "local", localStore.get().ID)
}

func TestRefresh_SharedWriteFailureIsNotFatal(t *testing.T) {
	localStore := &memStore{}
	strategy := &mockStrategy{name: "local"}
	strategy.On("Compute", mock.Anything).Return(snapshot("fresh"), nil)

	c := NewCoordinator(localStore, &memStore{writeErr: errors.New("read-only")}, strategy)
	result, err := c.Refresh(context.Background(), TriggerManual)

	require.NoError(t, err)
	require.Equal(t, "fresh", result.ID)
	require.Equal(t, "fresh", localStore.get().ID)
	require.Equal(t, StateReady, c.Status().State)
}

func TestRefresh_SuccessClearsPreviousError(t *testing.T) {
	strategy := &mockStrategy{name: "local"}
	strategy.On("Compute", mock.Anything).Return(aggregation.CachedResult{}, errors.New("boom")).Once()
	strategy.On("Compute", mock.Anything).Return(snapshot("fresh"), nil).Once()

	c := NewCoordinator(&memStore{}, nil, strategy)
	_, err := c.Refresh(context.Background(), TriggerPeriodic)
	require.Error(t, err)

	_, err = c.Refresh(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Empty(t, c.Status().LastError)
	require.Equal(t, StateReady, c.Status().State)
}

func TestRefresh_NoStrategies(t *testing.T) {
	c := NewCoordinator(&memStore{}, nil, compute.NewRemote("", time.Second))
	_, err := c.Refresh(context.Background(), TriggerManual)
	require.ErrorIs(t, err, ErrRecomputeFailed)
}

// blockingStrategy holds every Compute until released and counts calls.
type blockingStrategy struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingStrategy) Name() string { return "blocking" }

func (b *blockingStrategy) Compute(context.Context) (aggregation.CachedResult, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	<-b.release
	return snapshot("coalesced"), nil
}

func TestRefresh_ConcurrentTriggersAreCoalesced(t *testing.T) {
	strategy := &blockingStrategy{started: make(chan struct{}), release: make(chan struct{})}
	sharedStore := &memStore{}
	c := NewCoordinator(&memStore{}, sharedStore, strategy)

	first := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), TriggerPeriodic)
		first <- err
	}()
	<-strategy.started
	require.Equal(t, StateRecomputing, c.Status().State)

	const joiners = 5
	var wg sync.WaitGroup
	results := make(chan *aggregation.CachedResult, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.Refresh(context.Background(), TriggerManual)
			if err == nil {
				results <- r
			}
		}()
	}

	// Give the joiners time to attach to the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(strategy.release)

	require.NoError(t, <-first)
	wg.Wait()
	close(results)

	require.Equal(t, int32(1), strategy.calls.Load())
	require.Equal(t, 1, sharedStore.writes)
	for r := range results {
		require.Equal(t, "coalesced", r.ID)
	}
}

func TestCoordinator_WithLocalSnapshotStore(t *testing.T) {
	path := t.TempDir() + "/snapshot.msgpack"
	strategy := &mockStrategy{name: "local"}
	strategy.On("Compute", mock.Anything).Return(snapshot("fresh"), nil).Once()

	first := NewCoordinator(local.NewSnapshotStore(path), nil, strategy)
	require.NoError(t, first.Start(context.Background()))

	// A restarted process displays the persisted snapshot without recomputing.
	second := NewCoordinator(local.NewSnapshotStore(path), nil, strategy)
	require.NoError(t, second.Start(context.Background()))
	second.Wait()

	require.Equal(t, "fresh", second.Current().ID)
	strategy.AssertNumberOfCalls(t, "Compute", 1)
}

func TestRefresh_EmptyRemoteResultIsAFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"performances":[]}}`))
	}))
	defer srv.Close()

	localSnap := snapshot("local")
	sharedSnap := snapshot("local")
	localStore := &memStore{value: &localSnap}
	sharedStore := &memStore{value: &sharedSnap}

	c := NewCoordinator(localStore, sharedStore, compute.NewRemote(srv.URL, time.Second))
	require.NoError(t, c.Start(context.Background()))
	c.Wait()

	result, err := c.Refresh(context.Background(), TriggerManual)
	require.ErrorIs(t, err, ErrRecomputeFailed)
	require.ErrorIs(t, err, ErrEmptyResult)
	require.Nil(t, result)

	require.Equal(t, StateFailed, c.Status().State)
	require.Equal(t, "local", c.Current().ID)
	require.Len(t, c.Current().Performances, 1)
	require.Zero(t, localStore.writes)
	require.Zero(t, sharedStore.writes)
}

func TestRefresh_EmptyResultFallsThroughToNextStrategy(t *testing.T) {
	empty := &mockStrategy{name: "remote"}
	empty.On("Compute", mock.Anything).Return(aggregation.CachedResult{ID: "empty"}, nil).Once()
	inProcess := &mockStrategy{name: "local"}
	inProcess.On("Compute", mock.Anything).Return(snapshot("fresh"), nil).Once()

	c := NewCoordinator(&memStore{}, nil, empty, inProcess)
	result, err := c.Refresh(context.Background(), TriggerManual)

	require.NoError(t, err)
	require.Equal(t, "fresh", result.ID)
	empty.AssertExpectations(t)
	inProcess.AssertExpectations(t)
}

func TestRefresh_PublishDuringReconciliationKeepsLocalTierCurrent(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	localSnap := snapshot("local")
	sharedSnap := snapshot("shared")
	localStore := &memStore{value: &localSnap}
	localStore.beforeWrite = func(id string) {
		if id != "shared" {
			return
		}
		once.Do(func() { close(entered) })
		<-release
	}

	strategy := &mockStrategy{name: "local"}
	strategy.On("Compute", mock.Anything).Return(snapshot("fresh"), nil).Once()

	c := NewCoordinator(localStore, &memStore{value: &sharedSnap}, strategy)
	require.NoError(t, c.Start(context.Background()))

	// Reconciliation has swapped in the shared snapshot and is mid local write.
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), TriggerManual)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-done)
	c.Wait()

	require.Equal(t, "fresh", c.Current().ID)
	require.Equal(t, "fresh", localStore.get().ID)
}
