// Package auth holds login sessions for front desk staff.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsersUnavailable   = errors.New("user list could not be loaded")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidToken       = errors.New("invalid session token")
)

const defaultTTL = 12 * time.Hour

// Directory is the cached user list logins are checked against.
type Directory interface {
	EnsureLoaded(ctx context.Context) error
	View() *clinic.Dataset
	RefreshInBackground()
}

// View names the screen a session is looking at.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewPatients  View = "patients"
	ViewVisits    View = "visits"
	ViewDiagnosis View = "diagnosis"
	ViewRevenues  View = "revenues"
	ViewReports   View = "reports"
	ViewUsers     View = "users"
	ViewDoctors   View = "doctors"
	ViewBoard     View = "board"
)

var views = map[View]bool{
	ViewDashboard: true, ViewPatients: true, ViewVisits: true, ViewDiagnosis: true,
	ViewRevenues: true, ViewReports: true, ViewUsers: true, ViewDoctors: true, ViewBoard: true,
}

func (v View) IsValid() bool { return views[v] }

type Session struct {
	ID        string      `json:"session_id"`
	User      clinic.User `json:"user"`
	View      View        `json:"view"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Actor is the identity mutations run under.
func (s Session) Actor() frontdesk.Actor {
	return frontdesk.Actor{SessionID: s.ID, User: s.User}
}

type Config struct {
	Directory Directory
	Secret    string
	TTL       time.Duration
	Access    AccessRecorder
	Logger    *logging.Logger
}

// Manager creates sessions at login and drops them at logout or expiry.
type Manager struct {
	dir    Directory
	tokens *Tokens
	ttl    time.Duration
	access AccessRecorder
	logger *logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Directory == nil {
		return nil, errors.New("auth: directory is required")
	}
	tokens, err := NewTokens(cfg.Secret)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	access := cfg.Access
	if access == nil {
		access = nopAccess{}
	}
	return &Manager{
		dir:      cfg.Directory,
		tokens:   tokens,
		ttl:      ttl,
		access:   access,
		logger:   logger,
		now:      time.Now,
		sessions: map[string]*Session{},
	}, nil
}

// Login matches username and password verbatim against the cached users,
// loading them first when nothing has been fetched yet.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, string, error) {
	username = strings.TrimSpace(username)
	if err := m.dir.EnsureLoaded(ctx); err != nil {
		m.logger.Warn("login without a loaded user list", "error", err)
		if len(m.dir.View().Users) == 0 {
			return Session{}, "", fmt.Errorf("%w: %v", ErrUsersUnavailable, err)
		}
	}

	u, ok := m.dir.View().UserByUsername(username)
	if !ok || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		m.access.RecordAccess(ctx, AccessEvent{Kind: AccessLoginFailed, Username: username, At: m.now()})
		return Session{}, "", ErrInvalidCredentials
	}

	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		User:      u.Public(),
		View:      ViewDashboard,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	token, err := m.tokens.Issue(*s)
	if err != nil {
		return Session{}, "", err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("login", "username", u.Username, "role", u.Role, "session_id", s.ID)
	m.access.RecordAccess(ctx, AccessEvent{Kind: AccessLogin, Username: u.Username, UserID: u.ID, Role: u.Role, SessionID: s.ID, At: now})
	return *s, token, nil
}

func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.access.RecordAccess(ctx, AccessEvent{Kind: AccessLogout, Username: s.User.Username, UserID: s.User.ID, Role: s.User.Role, SessionID: s.ID, At: m.now()})
	return nil
}

// Authenticate resolves a token to its live session. The session user is
// re-read from the cache so role and clinic changes apply immediately.
func (m *Manager) Authenticate(token string) (Session, error) {
	claims, err := m.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	return m.Lookup(claims.SessionID)
}

func (m *Manager) Lookup(sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, sessionID)
		return Session{}, ErrSessionNotFound
	}
	if u, ok := m.dir.View().User(s.User.ID); ok && u.Username == s.User.Username {
		s.User = u.Public()
	}
	return *s, nil
}

// SetView switches the session's screen and refreshes the cache in the
// background.
func (m *Manager) SetView(sessionID string, view View) (Session, error) {
	if !view.IsValid() {
		return Session{}, &clinic.ValidationError{Fields: []string{fmt.Sprintf("view %q is not recognized", view)}}
	}
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		s.View = view
	}
	m.mu.Unlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	m.dir.RefreshInBackground()
	return m.Lookup(sessionID)
}

// Active counts live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
