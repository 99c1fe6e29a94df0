package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/sheets"
)

type loadResult struct {
	data *clinic.Dataset
	errs []sheets.RowError
	err  error
}

type fakeLoader struct {
	mu      sync.Mutex
	results []loadResult
	gates   []chan struct{}
	calls   int
}

func (f *fakeLoader) Load(ctx context.Context) (*clinic.Dataset, []sheets.RowError, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	var gate chan struct{}
	if i < len(f.gates) {
		gate = f.gates[i]
	}
	res := f.results[i]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return res.data, res.errs, res.err
}

func datasetWithVisit(id int64, status clinic.VisitStatus) *clinic.Dataset {
	return &clinic.Dataset{Visits: []clinic.Visit{{ID: id, ClinicID: 1, VisitDate: "2024-05-01", QueueNumber: 1, Status: status}}}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{data: datasetWithVisit(1, clinic.StatusWaiting), errs: []sheets.RowError{{Sheet: "Visits"}}},
	}}
	store := NewStore(loader, nil)

	require.NoError(t, store.Refresh(context.Background()))
	st := store.Status()
	assert.True(t, st.Loaded)
	assert.False(t, st.Syncing)
	assert.Equal(t, 1, st.Quarantined)
	assert.Len(t, store.Snapshot().Visits, 1)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{data: datasetWithVisit(1, clinic.StatusWaiting)},
		{err: errors.New("network down")},
	}}
	store := NewStore(loader, nil)
	require.NoError(t, store.Refresh(context.Background()))
	require.Error(t, store.Refresh(context.Background()))

	assert.Len(t, store.Snapshot().Visits, 1)
	assert.Equal(t, "network down", store.Status().LastError)
}

func TestPatchIsTentativeUntilRefresh(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{
		{data: datasetWithVisit(1, clinic.StatusWaiting)},
		{data: datasetWithVisit(1, clinic.StatusWaiting)},
	}}
	store := NewStore(loader, nil)
	require.NoError(t, store.Refresh(context.Background()))

	p, err := store.PatchVisitStatus(1, clinic.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, p.Unconfirmed)
	assert.Equal(t, clinic.StatusInProgress, store.View().Visits[0].Status)
	assert.Equal(t, clinic.StatusWaiting, store.Snapshot().Visits[0].Status)
	assert.Equal(t, 1, store.Status().Tentative)

	require.NoError(t, store.Refresh(context.Background()))
	assert.Empty(t, store.Patches())
	assert.Equal(t, clinic.StatusWaiting, store.View().Visits[0].Status)
}

func TestPatchUnknownVisit(t *testing.T) {
	store := NewStore(&fakeLoader{}, nil)
	_, err := store.PatchVisitStatus(99, clinic.StatusInProgress)
	assert.ErrorIs(t, err, clinic.ErrVisitNotFound)
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	slow := make(chan struct{})
	loader := &fakeLoader{
		results: []loadResult{
			{data: datasetWithVisit(1, clinic.StatusWaiting)},
			{data: datasetWithVisit(1, clinic.StatusCompleted)},
		},
		gates: []chan struct{}{slow, nil},
	}
	store := NewStore(loader, nil)

	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()

	// Wait until the slow fetch has started before issuing the newer one.
	require.Eventually(t, func() bool {
		loader.mu.Lock()
		defer loader.mu.Unlock()
		return loader.calls == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Refresh(context.Background()))
	close(slow)
	require.NoError(t, <-done)

	assert.Equal(t, clinic.StatusCompleted, store.Snapshot().Visits[0].Status)
}

func TestListenersSeeRefreshAndPatch(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{{data: datasetWithVisit(1, clinic.StatusWaiting)}}}
	store := NewStore(loader, nil)

	var seen []clinic.VisitStatus
	store.OnRefresh(func(d *clinic.Dataset) {
		seen = append(seen, d.Visits[0].Status)
	})
	require.NoError(t, store.Refresh(context.Background()))
	_, err := store.PatchVisitStatus(1, clinic.StatusInProgress)
	require.NoError(t, err)

	assert.Equal(t, []clinic.VisitStatus{clinic.StatusWaiting, clinic.StatusInProgress}, seen)
}

func TestEnsureLoadedFetchesOnce(t *testing.T) {
	loader := &fakeLoader{results: []loadResult{{data: datasetWithVisit(1, clinic.StatusWaiting)}}}
	store := NewStore(loader, nil)
	require.NoError(t, store.EnsureLoaded(context.Background()))
	require.NoError(t, store.EnsureLoaded(context.Background()))
	assert.Equal(t, 1, loader.calls)
}
