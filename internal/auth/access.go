package auth

import (
	"context"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

type AccessKind string

const (
	AccessLogin       AccessKind = "auth.login"
	AccessLoginFailed AccessKind = "auth.login_failed"
	AccessLogout      AccessKind = "auth.logout"
)

// AccessEvent is a login or logout, successful or not.
type AccessEvent struct {
	Kind      AccessKind
	Username  string
	UserID    int64
	Role      clinic.Role
	SessionID string
	At        time.Time
}

// AccessRecorder persists access events. Failures are the recorder's to log.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, ev AccessEvent)
}

type nopAccess struct{}

func (nopAccess) RecordAccess(context.Context, AccessEvent) {}
