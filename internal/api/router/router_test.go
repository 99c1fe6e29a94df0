package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/assistant"
	"github.com/wolfman30/clinicdesk/internal/auth"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/internal/http/handlers"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/sheets/sheetstest"
	"github.com/wolfman30/clinicdesk/internal/state"
	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

type testServer struct {
	remote  *sheetstest.Remote
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	remote := sheetstest.New()
	remote.Seed(sheets.SheetClinics,
		map[string]any{"clinic_id": 1, "clinic_name": "Internal", "price_first_visit": 300, "price_followup": 150, "max_patients_per_day": 20},
	)
	remote.Seed(sheets.SheetDoctors,
		map[string]any{"doctor_id": 1, "doctor_name": "Dr. Sami", "clinic_id": 1, "status": "نشط"},
	)
	remote.Seed(sheets.SheetPatients,
		map[string]any{"patient_id": 1, "name": "Mona Adel", "phone": "0100"},
	)
	remote.Seed(sheets.SheetUsers,
		map[string]any{"user_id": 1, "name": "Reem", "username": "reem", "password": "pw", "role": "receptionist"},
		map[string]any{"user_id": 2, "name": "Sami", "username": "sami", "password": "pw", "role": "doctor", "clinic_id": 1, "doctor_id": 1, "doctor_name": "Dr. Sami"},
		map[string]any{"user_id": 3, "name": "Lina", "username": "lina", "password": "pw", "role": "manager"},
	)

	logger := logging.New("error")
	m := metrics.NewDeskMetrics(prometheus.NewRegistry())
	store := state.NewStore(remote, logger)
	coordinator := visits.NewCoordinator(visits.Config{Gateway: remote, Cache: store, Logger: logger, Metrics: m})
	desk := frontdesk.NewService(frontdesk.Config{
		Gateway:     remote,
		Cache:       store,
		Coordinator: coordinator,
		Logger:      logger,
		Metrics:     m,
	})
	sessions, err := auth.NewManager(auth.Config{Directory: store, Secret: "test-secret", Logger: logger})
	require.NoError(t, err)
	helper := assistant.New(nil, assistant.NewExecutor(desk, store, coordinator.Today), logger)

	handler := New(&Config{
		Logger:        logger,
		Authenticator: sessions,
		Auth:          handlers.NewAuthHandler(sessions, logger),
		Desk:          handlers.NewDeskHandler(desk, logger),
		Reports:       handlers.NewReportsHandler(store, remote.Location(), logger),
		Health:        handlers.Health(store),
		Assistant:     handlers.NewAssistantHandler(helper, logger),
	})
	return &testServer{remote: remote, handler: handler}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": "pw"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestRouterHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])
}

func TestRouterLogin(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "reem", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token := s.login(t, "reem")
	rr = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"pw"`)
	me := decode[auth.Session](t, rr)
	assert.Equal(t, "reem", me.User.Username)

	rr = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouterRequiresSession(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/dashboard", "/api/visits", "/api/users", "/api/sync"} {
		rr := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouterAddVisitAllocatesQueue(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "reem")

	for want := 1; want <= 2; want++ {
		rr := s.do(t, http.MethodPost, "/api/visits", token, map[string]any{"patient_id": 1, "clinic_id": 1, "visit_type": "first"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		res := decode[frontdesk.VisitResult](t, rr)
		assert.Equal(t, want, res.Visit.QueueNumber)
		assert.Equal(t, float64(300), res.SuggestedPrice)
	}

	rr := s.do(t, http.MethodGet, "/api/board", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Mona Adel")
}

func TestRouterErrorMapping(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "reem")

	t.Run("validation", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/api/visits", token, map[string]any{"patient_id": 99, "clinic_id": 1, "visit_type": "first"})
		require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		body := decode[map[string]any](t, rr)
		assert.Equal(t, "validation failed", body["error"])
		assert.Len(t, body["fields"], 1)
	})

	t.Run("unknown field", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/api/patients", token, map[string]any{"name": "Hana", "age": 30})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("role", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/api/users", token, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		rr = s.do(t, http.MethodPost, "/api/doctors", token, map[string]any{"doctor_name": "Dr. X", "clinic_id": 1})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("remote failure", func(t *testing.T) {
		s.remote.WriteErr[sheets.SheetPatients] = &sheets.RemoteError{Message: "sheet locked"}
		defer delete(s.remote.WriteErr, sheets.SheetPatients)
		rr := s.do(t, http.MethodPost, "/api/patients", token, map[string]any{"name": "Hana"})
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), "sheet locked")
	})

	t.Run("unconfirmed visit", func(t *testing.T) {
		s.remote.DropAppends = true
		defer func() { s.remote.DropAppends = false }()
		rr := s.do(t, http.MethodPost, "/api/visits", token, map[string]any{"patient_id": 1, "clinic_id": 1, "visit_type": "follow_up"})
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		assert.NotEmpty(t, decode[map[string]any](t, rr)["warning"])
	})
}

func TestRouterDiagnosisFlow(t *testing.T) {
	s := newTestServer(t)
	reception := s.login(t, "reem")
	doctor := s.login(t, "sami")

	rr := s.do(t, http.MethodPost, "/api/visits", reception, map[string]any{"patient_id": 1, "clinic_id": 1, "visit_type": "first"})
	require.Equal(t, http.StatusCreated, rr.Code)
	visitID := decode[frontdesk.VisitResult](t, rr).Visit.ID
	require.NotZero(t, visitID)

	rr = s.do(t, http.MethodPost, "/api/diagnoses", reception, map[string]any{"visit_id": visitID, "diagnosis": "flu"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	body := map[string]any{"visit_id": visitID, "diagnosis": "flu", "prescription": "rest"}
	rr = s.do(t, http.MethodPost, "/api/diagnoses", doctor, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	outcome := decode[visits.DiagnosisOutcome](t, rr)
	assert.Equal(t, "Dr. Sami", outcome.Diagnosis.Doctor)

	rr = s.do(t, http.MethodPost, "/api/diagnoses", doctor, body)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/medical-records", doctor, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "flu")

	rr = s.do(t, http.MethodGet, "/api/medical-records", reception, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterManagerUsers(t *testing.T) {
	s := newTestServer(t)
	manager := s.login(t, "lina")

	rr := s.do(t, http.MethodGet, "/api/users", manager, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = s.do(t, http.MethodPatch, "/api/users/1", manager, map[string]any{"password": "new", "confirm_password": "other"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = s.do(t, http.MethodPatch, "/api/users/1", manager, map[string]any{"password": "new", "confirm_password": "new"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "reem", "password": "new"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterAssistant(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "reem")

	rr := s.do(t, http.MethodPost, "/api/assistant/commands", token, map[string]any{
		"command": "find_patients",
		"args":    map[string]any{"query": "mona"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "Mona Adel")

	rr = s.do(t, http.MethodPost, "/api/assistant/commands", token, map[string]any{"command": "drop_tables", "args": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/assistant/chat", token, map[string]any{"message": "who is waiting?"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterSyncReportsRemoteFailure(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "reem")

	s.remote.LoadErr = &sheets.TransportError{Op: "load", Err: errors.New("connection refused")}
	rr := s.do(t, http.MethodPost, "/api/sync", token, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rr)["status"])
}
