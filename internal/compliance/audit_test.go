package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/auth"
	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

func TestAuditService_LogEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db, logging.New("error"))

	tests := []struct {
		name  string
		event AuditEvent
	}{
		{
			name:  "login",
			event: AuditEvent{EventType: EventLogin, UserID: 3, Username: "reem", Role: "receptionist", SessionID: "s1"},
		},
		{
			name:  "failed login has no user id",
			event: AuditEvent{EventType: EventLoginFailed, Username: "ghost"},
		},
		{
			name:  "diagnosis with tags",
			event: AuditEvent{EventType: EventDiagnosisRecorded, Username: "sami", Subject: "Diagnosis:4", Tags: []string{"confirmed"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectExec("INSERT INTO access_audit_events").
				WillReturnResult(sqlmock.NewResult(1, 1))
			assert.NoError(t, service.LogEvent(context.Background(), tt.event))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_RecordAccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db, logging.New("error"))
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO access_audit_events").
		WithArgs(sqlmock.AnyArg(), EventLogout, int64(3), "reem", "receptionist", "s1", nil, sqlmock.AnyArg(), []byte(`{}`), at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	service.RecordAccess(context.Background(), auth.AccessEvent{
		Kind: auth.AccessLogout, UserID: 3, Username: "reem", Role: clinic.RoleReceptionist, SessionID: "s1", At: at,
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_RecordMutation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db, logging.New("error"))

	mock.ExpectExec("INSERT INTO access_audit_events").
		WithArgs(sqlmock.AnyArg(), EventDiagnosisRecorded, int64(2), "sami", nil, "s2", "Diagnosis:9", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	service.Record(context.Background(), frontdesk.MutationRecord{
		Op: frontdesk.OpAddDiagnosis, Sheet: "Diagnosis", SessionID: "s2", UserID: 2, Username: "sami",
		Outcome: frontdesk.OutcomeConfirmed, EntityID: 9, At: time.Now(),
	})
	// Patient registration is not audited.
	service.Record(context.Background(), frontdesk.MutationRecord{Op: frontdesk.OpAddPatient})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_LogFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db, logging.New("error"))
	mock.ExpectExec("INSERT INTO access_audit_events").WillReturnError(assert.AnError)

	service.RecordAccess(context.Background(), auth.AccessEvent{Kind: auth.AccessLoginFailed, Username: "x"})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditService_QueryEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuditService(db, logging.New("error"))

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "user_id", "username", "role",
		"session_id", "subject", "tags", "details", "created_at",
	}).AddRow(
		uuid.NewString(), string(EventDiagnosisRecorded), int64(2), "sami", nil,
		"s2", "Diagnosis:9", []byte(`{confirmed,warning}`), []byte(`{}`), now,
	)

	mock.ExpectQuery("SELECT (.+) FROM access_audit_events").
		WithArgs("sami", "warning", now.Add(-time.Hour)).
		WillReturnRows(rows)

	events, err := service.QueryEvents(context.Background(), AuditFilter{
		Username:  "sami",
		Tag:       "warning",
		StartTime: now.Add(-time.Hour),
		Limit:     50,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventDiagnosisRecorded, events[0].EventType)
	assert.Equal(t, []string{"confirmed", "warning"}, events[0].Tags)
	assert.Equal(t, "Diagnosis:9", events[0].Subject)
	assert.Empty(t, events[0].Role)
}

func TestAuditEventType_String(t *testing.T) {
	assert.Equal(t, string(auth.AccessLogin), string(EventLogin))
	assert.Equal(t, string(auth.AccessLoginFailed), string(EventLoginFailed))
	assert.Equal(t, string(auth.AccessLogout), string(EventLogout))
}
