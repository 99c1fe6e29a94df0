package journal

import (
	"context"
	"time"

	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Verifier re-reads the remote store for visit writes that were accepted
// but never confirmed, and records whether they landed. It never writes to
// the remote store.
type Verifier struct {
	store     *Store
	loader    visits.DatasetLoader
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
	giveUp    time.Duration
	now       func() time.Time
}

func NewVerifier(store *Store, loader visits.DatasetLoader, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Verifier{
		store:     store,
		loader:    loader,
		logger:    logger,
		batchSize: 25,
		interval:  time.Minute,
		giveUp:    30 * time.Minute,
		now:       time.Now,
	}
}

func (v *Verifier) WithBatchSize(size int32) *Verifier {
	if size > 0 {
		v.batchSize = size
	}
	return v
}

func (v *Verifier) WithInterval(interval time.Duration) *Verifier {
	if interval > 0 {
		v.interval = interval
	}
	return v
}

// WithGiveUp sets how long an entry may stay unfound before it is marked
// missing.
func (v *Verifier) WithGiveUp(d time.Duration) *Verifier {
	if d > 0 {
		v.giveUp = d
	}
	return v
}

func (v *Verifier) Start(ctx context.Context) {
	if v.store == nil || v.loader == nil {
		return
	}
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.verify(ctx)
		}
	}
}

func (v *Verifier) verify(ctx context.Context) {
	entries, err := v.store.FetchUnconfirmed(ctx, v.batchSize)
	if err != nil {
		v.logger.Error("journal fetch failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	data, _, err := v.loader.Load(ctx)
	if err != nil {
		v.logger.Warn("journal verification skipped, remote read failed", "error", err)
		return
	}

	for _, e := range entries {
		outcome, entityID := "", int64(0)
		if found, ok := visits.FindVisit(data, *e.VisitKey); ok {
			outcome, entityID = OutcomeVerified, found.ID
		} else if v.now().Sub(e.CreatedAt) >= v.giveUp {
			outcome = OutcomeMissing
		} else {
			continue
		}
		ok, err := v.store.MarkVerified(ctx, e.ID, outcome, entityID)
		if err != nil {
			v.logger.Error("journal mark failed", "error", err, "entry_id", e.ID)
			continue
		}
		if ok {
			v.logger.Info("unconfirmed write settled", "entry_id", e.ID, "outcome", outcome, "visit_id", entityID)
		}
	}
}
