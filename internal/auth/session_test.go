package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/sheets/sheetstest"
	"github.com/wolfman30/clinicdesk/internal/state"
)

type accessLog struct {
	mu     sync.Mutex
	events []AccessEvent
}

func (a *accessLog) RecordAccess(_ context.Context, ev AccessEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *accessLog) kinds() []AccessKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AccessKind
	for _, ev := range a.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newManager(t *testing.T) (*Manager, *sheetstest.Remote, *state.Store, *accessLog) {
	t.Helper()
	remote := sheetstest.New()
	remote.Seed(sheets.SheetUsers,
		map[string]any{"user_id": 1, "name": "Reem", "username": "reem", "password": "pw1", "role": " Receptionist "},
		map[string]any{"user_id": 2, "name": "Sami", "username": "dr.sami", "password": "pw2", "role": "doctor", "clinic_id": 3, "doctor_id": 4, "doctor_name": "Dr. Sami"},
	)
	store := state.NewStore(remote, nil)
	log := &accessLog{}
	m, err := NewManager(Config{Directory: store, Secret: "test-secret", TTL: time.Hour, Access: log})
	require.NoError(t, err)
	return m, remote, store, log
}

func TestLoginLoadsUsersAndStripsPassword(t *testing.T) {
	m, remote, _, log := newManager(t)

	s, token, err := m.Login(context.Background(), " dr.sami ", "pw2")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.Loads)
	assert.NotEmpty(t, token)
	assert.Empty(t, s.User.Password)
	assert.Equal(t, clinic.RoleDoctor, s.User.Role)
	assert.Equal(t, int64(3), s.User.ClinicID)
	assert.Equal(t, ViewDashboard, s.View)
	assert.Equal(t, []AccessKind{AccessLogin}, log.kinds())

	got, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.ID, got.Actor().SessionID)
}

func TestLoginRoleIsNormalized(t *testing.T) {
	m, _, _, _ := newManager(t)

	s, _, err := m.Login(context.Background(), "reem", "pw1")
	require.NoError(t, err)
	assert.Equal(t, clinic.RoleReceptionist, s.User.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	m, _, _, log := newManager(t)

	for _, tc := range []struct{ user, pass string }{
		{"reem", "PW1"},
		{"reem", "pw1 "},
		{"nobody", "pw1"},
	} {
		_, _, err := m.Login(context.Background(), tc.user, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%s/%s", tc.user, tc.pass)
	}
	assert.Equal(t, 0, m.Active())
	assert.Len(t, log.kinds(), 3)
}

func TestLoginFailsWhenUsersUnavailable(t *testing.T) {
	m, remote, _, _ := newManager(t)
	remote.LoadErr = errors.New("offline")

	_, _, err := m.Login(context.Background(), "reem", "pw1")
	assert.ErrorIs(t, err, ErrUsersUnavailable)
}

func TestLogoutDestroysSession(t *testing.T) {
	m, _, _, log := newManager(t)
	s, token, err := m.Login(context.Background(), "reem", "pw1")
	require.NoError(t, err)

	require.NoError(t, m.Logout(context.Background(), s.ID))
	_, err = m.Authenticate(token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Logout(context.Background(), s.ID), ErrSessionNotFound)
	assert.Equal(t, []AccessKind{AccessLogin, AccessLogout}, log.kinds())
}

func TestSessionExpires(t *testing.T) {
	m, _, _, _ := newManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }
	s, _, err := m.Login(context.Background(), "reem", "pw1")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = m.Lookup(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, m.Active())
}

func TestSetViewTriggersRefresh(t *testing.T) {
	m, remote, _, _ := newManager(t)
	s, _, err := m.Login(context.Background(), "reem", "pw1")
	require.NoError(t, err)

	got, err := m.SetView(s.ID, ViewBoard)
	require.NoError(t, err)
	assert.Equal(t, ViewBoard, got.View)
	require.Eventually(t, func() bool { return remote.LoadCount() >= 2 }, time.Second, 10*time.Millisecond)

	_, err = m.SetView(s.ID, "settings")
	assert.True(t, clinic.IsValidation(err))
	_, err = m.SetView("missing", ViewBoard)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionPicksUpUserChanges(t *testing.T) {
	m, remote, store, _ := newManager(t)
	s, _, err := m.Login(context.Background(), "reem", "pw1")
	require.NoError(t, err)

	_, err = remote.Write(context.Background(), sheets.SheetUsers,
		sheets.NewPayload().Set("action", sheets.ActionUpdate).Set("user_id", 1).Set("role", "manager"))
	require.NoError(t, err)
	require.NoError(t, store.Refresh(context.Background()))

	got, err := m.Lookup(s.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.RoleManager, got.User.Role)
	assert.Empty(t, got.User.Password)
}

func TestTokensRejectForgery(t *testing.T) {
	tokens, err := NewTokens("secret")
	require.NoError(t, err)
	now := time.Now()
	s := Session{ID: "abc", User: clinic.User{Username: "reem", Role: clinic.RoleReceptionist}, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}

	good, err := tokens.Issue(s)
	require.NoError(t, err)
	claims, err := tokens.Parse(good)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.SessionID)
	assert.Equal(t, clinic.RoleReceptionist, claims.Role)

	other, err := NewTokens("other")
	require.NoError(t, err)
	forged, err := other.Issue(s)
	require.NoError(t, err)
	_, err = tokens.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{SessionID: "abc"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tokens.Parse(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return now.Add(time.Hour) }
	_, err = tokens.Parse(good)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokens("")
	assert.Error(t, err)
}
