package state

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const backgroundRefreshTimeout = 30 * time.Second

// Loader reads a full snapshot from the remote store.
type Loader interface {
	Load(ctx context.Context) (*clinic.Dataset, []sheets.RowError, error)
}

// Status describes the freshness of the cached snapshot.
type Status struct {
	Loaded      bool      `json:"loaded"`
	Syncing     bool      `json:"syncing"`
	LastError   string    `json:"last_error,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	Quarantined int       `json:"quarantined_rows"`
	Tentative   int       `json:"tentative_changes"`
}

// Patch is a local visit status change not yet confirmed by a fetch.
type Patch struct {
	VisitID     int64              `json:"visit_id"`
	Status      clinic.VisitStatus `json:"status"`
	Unconfirmed bool               `json:"unconfirmed"`
	At          time.Time          `json:"at"`
}

// Store caches the last fetched dataset and overlays tentative patches.
// Every refresh replaces the dataset wholesale and drops all patches.
type Store struct {
	loader Loader
	logger *logging.Logger
	now    func() time.Time

	mu        sync.RWMutex
	data      *clinic.Dataset
	patches   map[int64]Patch
	status    Status
	started   uint64
	applied   uint64
	inflight  int
	listeners []func(*clinic.Dataset)
}

func NewStore(loader Loader, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		loader:  loader,
		logger:  logger,
		now:     time.Now,
		data:    &clinic.Dataset{},
		patches: map[int64]Patch{},
	}
}

// Refresh refetches every sheet. A fetch that completes after a newer one
// has already been applied is discarded.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.inflight++
	s.status.Syncing = true
	s.mu.Unlock()

	data, rowErrs, err := s.loader.Load(ctx)

	s.mu.Lock()
	s.inflight--
	s.status.Syncing = s.inflight > 0
	if err != nil {
		if seq > s.applied {
			s.status.LastError = err.Error()
		}
		s.mu.Unlock()
		s.logger.Warn("cache refresh failed", "error", err)
		return err
	}
	if seq < s.applied {
		s.mu.Unlock()
		s.logger.Debug("discarding stale refresh", "seq", seq, "applied", s.applied)
		return nil
	}
	s.applied = seq
	s.data = data
	s.patches = map[int64]Patch{}
	s.status.Loaded = true
	s.status.LastError = ""
	s.status.FetchedAt = s.now()
	s.status.Quarantined = len(rowErrs)
	listeners := append([]func(*clinic.Dataset){}, s.listeners...)
	view := s.data
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
	return nil
}

// RefreshInBackground starts a detached refresh and logs its failure.
func (s *Store) RefreshInBackground() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRefreshTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.logger.Warn("background refresh failed", "error", err)
		}
	}()
}

// EnsureLoaded refreshes only if no fetch has succeeded yet.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.status.Loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// Snapshot returns the last confirmed dataset. Callers must not modify it.
func (s *Store) Snapshot() *clinic.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// View returns the dataset with tentative patches applied.
func (s *Store) View() *clinic.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.patches) == 0 {
		return s.data
	}
	out := s.data.Clone()
	for i, v := range out.Visits {
		if p, ok := s.patches[v.ID]; ok {
			out.Visits[i].Status = p.Status
		}
	}
	return out
}

// PatchVisitStatus records a tentative status for a cached visit and
// notifies refresh listeners with the patched view.
func (s *Store) PatchVisitStatus(visitID int64, status clinic.VisitStatus) (Patch, error) {
	s.mu.Lock()
	if _, ok := s.data.Visit(visitID); !ok {
		s.mu.Unlock()
		return Patch{}, clinic.ErrVisitNotFound
	}
	p := Patch{VisitID: visitID, Status: status, Unconfirmed: true, At: s.now()}
	s.patches[visitID] = p
	listeners := append([]func(*clinic.Dataset){}, s.listeners...)
	s.mu.Unlock()

	if len(listeners) > 0 {
		view := s.View()
		for _, fn := range listeners {
			fn(view)
		}
	}
	return p, nil
}

func (s *Store) Patches() []Patch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patch, 0, len(s.patches))
	for _, p := range s.patches {
		out = append(out, p)
	}
	return out
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Tentative = len(s.patches)
	return st
}

// OnRefresh registers fn to run after each applied refresh or patch.
func (s *Store) OnRefresh(fn func(*clinic.Dataset)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
