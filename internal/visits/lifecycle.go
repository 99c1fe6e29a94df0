package visits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/state"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Gateway is the subset of the remote store client the coordinator needs.
type Gateway interface {
	DatasetLoader
	Write(ctx context.Context, sheet string, payload *sheets.Payload) (*sheets.WriteResult, error)
	Location() *time.Location
}

// Cache is the local snapshot the coordinator refreshes and patches.
type Cache interface {
	Refresh(ctx context.Context) error
	View() *clinic.Dataset
	Snapshot() *clinic.Dataset
	PatchVisitStatus(visitID int64, status clinic.VisitStatus) (state.Patch, error)
}

var transitions = map[clinic.VisitStatus][]clinic.VisitStatus{
	clinic.StatusWaiting:    {clinic.StatusInProgress, clinic.StatusCompleted, clinic.StatusCanceled},
	clinic.StatusInProgress: {clinic.StatusCompleted, clinic.StatusCanceled},
}

// CanTransition reports whether a visit may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to clinic.VisitStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Config struct {
	Gateway      Gateway
	Cache        Cache
	Locker       Locker
	ConfirmDelay time.Duration
	Logger       *logging.Logger
	Metrics      *metrics.DeskMetrics
}

// Coordinator owns queue allocation, visit creation, and the diagnosis
// driven status lifecycle.
type Coordinator struct {
	gateway   Gateway
	cache     Cache
	locker    Locker
	allocator *Allocator
	resolver  *Resolver
	logger    *logging.Logger
	metrics   *metrics.DeskMetrics
	now       func() time.Time
}

func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Coordinator{
		gateway:   cfg.Gateway,
		cache:     cfg.Cache,
		locker:    locker,
		allocator: NewAllocator(cfg.Gateway, cfg.Metrics),
		resolver:  NewResolver(cfg.Gateway, cfg.Gateway.Location(), cfg.ConfirmDelay, logger, cfg.Metrics),
		logger:    logger,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// Today is the clinic's current calendar date.
func (c *Coordinator) Today() string {
	return sheets.Today(c.now(), c.gateway.Location())
}

// NewVisit is a request to queue a patient at a clinic.
type NewVisit struct {
	PatientID int64
	ClinicID  int64
	VisitType clinic.VisitType
	// VisitDate defaults to today in the clinic timezone.
	VisitDate string
}

// CreateVisit allocates the next queue number, writes the visit as Waiting,
// confirms the stored row, and refreshes the cache. A failed pre-read aborts
// before anything is written. The returned visit carries the requested
// fields even when confirmation fails.
func (c *Coordinator) CreateVisit(ctx context.Context, req NewVisit) (clinic.Visit, error) {
	date := req.VisitDate
	if date == "" {
		date = c.Today()
	}

	release := c.acquire(ctx, QueueLockKey(req.ClinicID, date))
	queue, err := c.allocator.Next(ctx, req.ClinicID, date)
	if err != nil {
		release()
		return clinic.Visit{}, err
	}

	visit := clinic.Visit{
		PatientID:   req.PatientID,
		ClinicID:    req.ClinicID,
		VisitDate:   date,
		QueueNumber: queue,
		Status:      clinic.StatusWaiting,
		VisitType:   req.VisitType,
	}
	res, err := c.gateway.Write(ctx, sheets.SheetVisits, sheets.VisitPayload(visit))
	release()
	if err != nil {
		return clinic.Visit{}, fmt.Errorf("visits: write visit: %w", err)
	}

	confirmed, confirmErr := c.resolver.ConfirmVisit(ctx, KeyOf(visit), res)
	c.refresh(ctx, "create_visit")
	if confirmErr != nil {
		c.logger.Warn("visit write not confirmed",
			"patient_id", visit.PatientID,
			"clinic_id", visit.ClinicID,
			"queue_number", visit.QueueNumber,
			"error", confirmErr,
		)
		return visit, confirmErr
	}
	c.logger.Info("visit created",
		"visit_id", confirmed.ID,
		"clinic_id", confirmed.ClinicID,
		"queue_number", confirmed.QueueNumber,
	)
	return confirmed, nil
}

// acquire takes the queue lock when available. Lock failures fall back to
// the unguarded path.
func (c *Coordinator) acquire(ctx context.Context, key string) func() {
	release, err := c.locker.Acquire(ctx, key)
	switch {
	case err == nil:
		if _, noop := c.locker.(NoopLocker); !noop {
			c.metrics.ObserveQueueLock("acquired")
		}
		return release
	case errors.Is(err, ErrLockContended):
		c.metrics.ObserveQueueLock("contended")
	default:
		c.metrics.ObserveQueueLock("unavailable")
	}
	c.logger.Warn("queue lock not held, allocating without it", "key", key, "error", err)
	return func() {}
}

// SetStatus applies an optimistic, local-only status change. It is
// overwritten by the next refresh unless the remote store agrees.
func (c *Coordinator) SetStatus(visitID int64, to clinic.VisitStatus) (state.Patch, error) {
	if !to.IsValid() {
		return state.Patch{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	view := c.cache.View()
	v, ok := view.Visit(visitID)
	if !ok {
		return state.Patch{}, clinic.ErrVisitNotFound
	}
	from := view.EffectiveStatus(v)
	if !CanTransition(from, to) {
		return state.Patch{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from.Label(), to.Label())
	}
	return c.cache.PatchVisitStatus(visitID, to)
}

// BeginDiagnosis marks the visit InProgress locally while the doctor fills
// in the diagnosis.
func (c *Coordinator) BeginDiagnosis(visitID int64) (state.Patch, error) {
	return c.SetStatus(visitID, clinic.StatusInProgress)
}

// DiagnosisOutcome reports what happened after the diagnosis row landed.
type DiagnosisOutcome struct {
	Diagnosis       clinic.Diagnosis   `json:"diagnosis"`
	StatusUpdated   bool               `json:"status_updated"`
	Refreshed       bool               `json:"refreshed"`
	EffectiveStatus clinic.VisitStatus `json:"effective_status"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// SubmitDiagnosis writes the diagnosis, then marks the visit Completed,
// then refreshes. Only the diagnosis write is fatal: the effective status
// is Completed once the diagnosis exists. Cancellation is checked against
// the confirmed snapshot, so a local-only Canceled patch does not block it.
func (c *Coordinator) SubmitDiagnosis(ctx context.Context, d clinic.Diagnosis) (DiagnosisOutcome, error) {
	confirmed := c.cache.Snapshot()
	if confirmed == nil {
		return DiagnosisOutcome{}, clinic.ErrVisitNotFound
	}
	v, ok := confirmed.Visit(d.VisitID)
	if !ok {
		return DiagnosisOutcome{}, clinic.ErrVisitNotFound
	}
	if _, exists := confirmed.DiagnosisFor(d.VisitID); exists {
		return DiagnosisOutcome{}, ErrAlreadyDiagnosed
	}
	if v.Status == clinic.StatusCanceled {
		return DiagnosisOutcome{}, fmt.Errorf("%w: visit %d is canceled", ErrInvalidTransition, v.ID)
	}

	res, err := c.gateway.Write(ctx, sheets.SheetDiagnosis, sheets.DiagnosisPayload(d))
	if err != nil {
		return DiagnosisOutcome{}, fmt.Errorf("visits: write diagnosis: %w", err)
	}
	if res != nil && len(res.Row) > 0 {
		if id, err := sheets.DiagnosisSchema.RowID(res.Row, c.gateway.Location()); err == nil {
			d.ID = id
		}
	}

	out := DiagnosisOutcome{Diagnosis: d, EffectiveStatus: clinic.StatusCompleted}
	if _, err := c.gateway.Write(ctx, sheets.SheetVisits, sheets.VisitStatusPayload(d.VisitID, clinic.StatusCompleted)); err != nil {
		c.logger.Warn("diagnosis saved but visit status update failed", "visit_id", d.VisitID, "error", err)
		out.Warnings = append(out.Warnings, "diagnosis saved, but the visit status could not be updated: "+err.Error())
	} else {
		out.StatusUpdated = true
	}

	if err := c.cache.Refresh(ctx); err != nil {
		out.Warnings = append(out.Warnings, "diagnosis saved, but the data could not be refreshed: "+err.Error())
	} else {
		out.Refreshed = true
	}
	return out, nil
}

func (c *Coordinator) refresh(ctx context.Context, op string) {
	if err := c.cache.Refresh(ctx); err != nil {
		c.logger.Warn("post-mutation refresh failed", "op", op, "error", err)
	}
}
