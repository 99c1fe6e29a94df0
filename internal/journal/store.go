// Package journal keeps a durable record of every mutation attempt and
// re-checks writes whose confirmation timed out.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Outcomes written by the verifier.
const (
	OutcomeVerified = "verified"
	OutcomeMissing  = "missing"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Entry is a journaled mutation.
type Entry struct {
	ID        uuid.UUID
	Op        string
	Sheet     string
	SessionID string
	UserID    int64
	Username  string
	Payload   json.RawMessage
	Outcome   string
	EntityID  int64
	VisitKey  *visits.VisitKey
	Error     string
	CreatedAt time.Time
}

type Store struct {
	db querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("journal: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithQuerier(q querier) *Store {
	if q == nil {
		panic("journal: querier required")
	}
	return &Store{db: q}
}

func (s *Store) Insert(ctx context.Context, rec frontdesk.MutationRecord) (uuid.UUID, error) {
	var key []byte
	if rec.VisitKey != nil {
		b, err := json.Marshal(rec.VisitKey)
		if err != nil {
			return uuid.Nil, fmt.Errorf("journal: marshal visit key: %w", err)
		}
		key = b
	}
	payload := []byte(rec.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	id := uuid.New()
	query := `
		INSERT INTO mutation_journal (id, op, sheet, session_id, user_id, username, payload, outcome, entity_id, visit_key, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := s.db.Exec(ctx, query,
		id, string(rec.Op), rec.Sheet, rec.SessionID, rec.UserID, rec.Username,
		payload, string(rec.Outcome), rec.EntityID, key, rec.Error, at,
	); err != nil {
		return uuid.Nil, fmt.Errorf("journal: insert: %w", err)
	}
	return id, nil
}

// FetchUnconfirmed returns visit writes still awaiting verification,
// oldest first.
func (s *Store) FetchUnconfirmed(ctx context.Context, limit int32) ([]Entry, error) {
	query := `
		SELECT id, op, sheet, session_id, user_id, username, payload, outcome, entity_id, visit_key, error, created_at
		FROM mutation_journal
		WHERE outcome = 'unconfirmed' AND verified_at IS NULL AND visit_key IS NOT NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: fetch unconfirmed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload, key []byte
		if err := rows.Scan(&e.ID, &e.Op, &e.Sheet, &e.SessionID, &e.UserID, &e.Username,
			&payload, &e.Outcome, &e.EntityID, &key, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Payload = append([]byte(nil), payload...)
		if len(key) > 0 {
			var k visits.VisitKey
			if err := json.Unmarshal(key, &k); err != nil {
				return nil, fmt.Errorf("journal: decode visit key for %s: %w", e.ID, err)
			}
			e.VisitKey = &k
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkVerified settles an unconfirmed entry. It reports false when another
// verifier got there first.
func (s *Store) MarkVerified(ctx context.Context, id uuid.UUID, outcome string, entityID int64) (bool, error) {
	query := `
		UPDATE mutation_journal
		SET outcome = $2, entity_id = $3, verified_at = now()
		WHERE id = $1 AND verified_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id, outcome, entityID)
	if err != nil {
		return false, fmt.Errorf("journal: mark verified: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Recorder adapts the store to frontdesk.Recorder. Insert failures are
// logged and never reach the caller.
func (s *Store) Recorder(logger *logging.Logger) frontdesk.Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return frontdesk.RecorderFunc(func(ctx context.Context, rec frontdesk.MutationRecord) {
		if _, err := s.Insert(ctx, rec); err != nil {
			logger.Error("journal insert failed", "op", rec.Op, "outcome", rec.Outcome, "error", err)
		}
	})
}
