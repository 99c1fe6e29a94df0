package visits

import (
	"context"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// DefaultConfirmDelay gives the remote store time to commit before re-reading.
const DefaultConfirmDelay = 500 * time.Millisecond

// VisitKey identifies a freshly written visit before its id is known.
type VisitKey struct {
	PatientID   int64            `json:"patient_id"`
	ClinicID    int64            `json:"clinic_id"`
	VisitDate   string           `json:"visit_date"`
	QueueNumber int              `json:"queue_number"`
	VisitType   clinic.VisitType `json:"visit_type"`
}

func KeyOf(v clinic.Visit) VisitKey {
	return VisitKey{
		PatientID:   v.PatientID,
		ClinicID:    v.ClinicID,
		VisitDate:   v.VisitDate,
		QueueNumber: v.QueueNumber,
		VisitType:   v.VisitType,
	}
}

func (k VisitKey) Matches(v clinic.Visit) bool {
	return v.PatientID == k.PatientID &&
		v.ClinicID == k.ClinicID &&
		v.VisitDate == k.VisitDate &&
		v.QueueNumber == k.QueueNumber &&
		v.VisitType == k.VisitType
}

// FindVisit returns the first visit in sheet order matching key.
func FindVisit(data *clinic.Dataset, key VisitKey) (clinic.Visit, bool) {
	for _, v := range data.Visits {
		if key.Matches(v) {
			return v, true
		}
	}
	return clinic.Visit{}, false
}

// Resolver turns an accepted visit write into the stored row.
type Resolver struct {
	loader  DatasetLoader
	loc     *time.Location
	delay   time.Duration
	logger  *logging.Logger
	metrics *metrics.DeskMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewResolver(loader DatasetLoader, loc *time.Location, delay time.Duration, logger *logging.Logger, m *metrics.DeskMetrics) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if delay < 0 {
		delay = DefaultConfirmDelay
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		loader:  loader,
		loc:     loc,
		delay:   delay,
		logger:  logger,
		metrics: m,
		sleep:   sleepCtx,
	}
}

// ConfirmVisit prefers the row echoed by the write. Otherwise it waits,
// re-reads, and matches on the business key. Not finding the row, or
// failing to re-read, yields a ConfirmationTimeoutError.
func (r *Resolver) ConfirmVisit(ctx context.Context, key VisitKey, res *sheets.WriteResult) (clinic.Visit, error) {
	if res != nil && len(res.Row) > 0 {
		v, err := sheets.DecodeVisit(res.Row, r.loc)
		if err == nil {
			r.metrics.ObserveConfirmation("echo")
			return v, nil
		}
		r.logger.Debug("echoed visit row unusable, re-reading", "error", err)
	}

	if err := r.sleep(ctx, r.delay); err != nil {
		r.metrics.ObserveConfirmation("timeout")
		return clinic.Visit{}, &ConfirmationTimeoutError{Key: key, Cause: err}
	}
	data, _, err := r.loader.Load(ctx)
	if err != nil {
		r.metrics.ObserveConfirmation("timeout")
		return clinic.Visit{}, &ConfirmationTimeoutError{Key: key, Cause: err}
	}
	v, ok := FindVisit(data, key)
	if !ok {
		r.metrics.ObserveConfirmation("timeout")
		return clinic.Visit{}, &ConfirmationTimeoutError{Key: key}
	}
	r.metrics.ObserveConfirmation("reread")
	return v, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
