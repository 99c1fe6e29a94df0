package frontdesk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wolfman30/clinicdesk/internal/visits"
)

// Outcome classifies how a mutation ended.
type Outcome string

const (
	OutcomeConfirmed   Outcome = "confirmed"
	OutcomeUnconfirmed Outcome = "unconfirmed"
	OutcomeFailed      Outcome = "failed"
	OutcomeRejected    Outcome = "rejected"
	OutcomeLocal       Outcome = "local"
)

// MutationRecord describes one mutation attempt for journaling and audit.
type MutationRecord struct {
	Op        Op               `json:"op"`
	Sheet     string           `json:"sheet"`
	SessionID string           `json:"session_id"`
	UserID    int64            `json:"user_id"`
	Username  string           `json:"username"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	Outcome   Outcome          `json:"outcome"`
	EntityID  int64            `json:"entity_id,omitempty"`
	VisitKey  *visits.VisitKey `json:"visit_key,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Error     string           `json:"error,omitempty"`
	At        time.Time        `json:"at"`
}

// Recorder receives every mutation attempt. Implementations must not block
// for long and handle their own failures.
type Recorder interface {
	Record(ctx context.Context, rec MutationRecord)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec MutationRecord)

func (f RecorderFunc) Record(ctx context.Context, rec MutationRecord) { f(ctx, rec) }
