// Package compliance keeps an access audit trail for patient records and
// staff accounts.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/clinicdesk/internal/auth"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// AuditEventType represents the type of access event.
type AuditEventType string

const (
	EventLogin             AuditEventType = "auth.login"
	EventLoginFailed       AuditEventType = "auth.login_failed"
	EventLogout            AuditEventType = "auth.logout"
	EventDiagnosisRecorded AuditEventType = "records.diagnosis_recorded"
	EventUserCreated       AuditEventType = "staff.user_created"
	EventUserUpdated       AuditEventType = "staff.user_updated"
	EventDoctorAdded       AuditEventType = "staff.doctor_added"
)

// audited maps the mutations that touch medical records or staff accounts.
var audited = map[frontdesk.Op]AuditEventType{
	frontdesk.OpAddDiagnosis: EventDiagnosisRecorded,
	frontdesk.OpAddUser:      EventUserCreated,
	frontdesk.OpUpdateUser:   EventUserUpdated,
	frontdesk.OpAddDoctor:    EventDoctorAdded,
}

// AuditEvent is an immutable access record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	UserID    int64           `json:"user_id,omitempty"`
	Username  string          `json:"username"`
	Role      string          `json:"role,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Subject   string          `json:"subject,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditService writes to access_audit_events.
type AuditService struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewAuditService(db *sql.DB, logger *logging.Logger) *AuditService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditService{db: db, logger: logger}
}

// LogEvent records an access event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO access_audit_events (
			id, event_type, user_id, username, role,
			session_id, subject, tags, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullInt(event.UserID),
		event.Username,
		nullString(event.Role),
		nullString(event.SessionID),
		nullString(event.Subject),
		pq.Array(event.Tags),
		[]byte(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// RecordAccess implements auth.AccessRecorder.
func (s *AuditService) RecordAccess(ctx context.Context, ev auth.AccessEvent) {
	err := s.LogEvent(ctx, AuditEvent{
		EventType: AuditEventType(ev.Kind),
		UserID:    ev.UserID,
		Username:  ev.Username,
		Role:      string(ev.Role),
		SessionID: ev.SessionID,
		CreatedAt: ev.At,
	})
	if err != nil {
		s.logger.Error("access audit failed", "event_type", ev.Kind, "username", ev.Username, "error", err)
	}
}

// Record implements frontdesk.Recorder for mutations on medical records
// and staff accounts. Other mutations are ignored.
func (s *AuditService) Record(ctx context.Context, rec frontdesk.MutationRecord) {
	eventType, ok := audited[rec.Op]
	if !ok {
		return
	}
	details, _ := json.Marshal(map[string]any{
		"sheet":    rec.Sheet,
		"error":    rec.Error,
		"warnings": rec.Warnings,
	})
	event := AuditEvent{
		EventType: eventType,
		UserID:    rec.UserID,
		Username:  rec.Username,
		SessionID: rec.SessionID,
		Tags:      []string{string(rec.Outcome)},
		Details:   details,
		CreatedAt: rec.At,
	}
	if rec.EntityID > 0 {
		event.Subject = rec.Sheet + ":" + strconv.FormatInt(rec.EntityID, 10)
	}
	if len(rec.Warnings) > 0 {
		event.Tags = append(event.Tags, "warning")
	}
	if err := s.LogEvent(ctx, event); err != nil {
		s.logger.Error("mutation audit failed", "op", rec.Op, "error", err)
	}
}

// QueryEvents retrieves audit events with filters, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, user_id, username, role,
			   session_id, subject, tags, details, created_at
		FROM access_audit_events
		WHERE 1 = 1
	`
	var args []any
	argIdx := 1

	if filter.Username != "" {
		query += fmt.Sprintf(" AND username = $%d", argIdx)
		args = append(args, filter.Username)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if filter.Tag != "" {
		query += fmt.Sprintf(" AND $%d = ANY(tags)", argIdx)
		args = append(args, filter.Tag)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		var userID sql.NullInt64
		var role, sessionID, subject sql.NullString
		var details []byte
		err := rows.Scan(
			&e.ID, &e.EventType, &userID, &e.Username, &role,
			&sessionID, &subject, pq.Array(&e.Tags), &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.UserID = userID.Int64
		e.Role = role.String
		e.SessionID = sessionID.String
		e.Subject = subject.String
		e.Details = append(json.RawMessage(nil), details...)
		events = append(events, e)
	}
	return events, rows.Err()
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	Username  string
	EventType AuditEventType
	Tag       string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}
