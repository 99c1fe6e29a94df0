package visits

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/sheets"
)

// DatasetLoader performs a fresh read of every sheet.
type DatasetLoader interface {
	Load(ctx context.Context) (*clinic.Dataset, []sheets.RowError, error)
}

// Allocator assigns per-clinic, per-day queue numbers from a fresh remote
// read. The local cache is never consulted. Two writers racing on the same
// clinic and day may receive the same number.
type Allocator struct {
	loader  DatasetLoader
	metrics *metrics.DeskMetrics
}

func NewAllocator(loader DatasetLoader, m *metrics.DeskMetrics) *Allocator {
	return &Allocator{loader: loader, metrics: m}
}

// Next returns the queue number for a new visit: visits already booked for
// the clinic on date, plus one. Quarantined rows that still name the clinic
// and date are counted too.
func (a *Allocator) Next(ctx context.Context, clinicID int64, date string) (int, error) {
	data, rowErrs, err := a.loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("visits: read queue for clinic %d: %w", clinicID, err)
	}
	a.metrics.ObserveQueueAllocation()
	return Count(data, clinicID, date) + countQuarantined(rowErrs, clinicID, date) + 1, nil
}

// Count returns how many visits the clinic has on date.
func Count(data *clinic.Dataset, clinicID int64, date string) int {
	n := 0
	for _, v := range data.Visits {
		if v.ClinicID == clinicID && v.VisitDate == date {
			n++
		}
	}
	return n
}

func countQuarantined(rowErrs []sheets.RowError, clinicID int64, date string) int {
	n := 0
	for _, re := range rowErrs {
		if re.Slot != nil && re.Slot.ClinicID == clinicID && re.Slot.Date == date {
			n++
		}
	}
	return n
}
