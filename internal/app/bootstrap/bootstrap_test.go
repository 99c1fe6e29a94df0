package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinicdesk/internal/config"
	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: "  "}, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	logger := logging.New("error")

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true))
}

func TestBuildQueueLocker(t *testing.T) {
	_, ok := BuildQueueLocker(nil, time.Second).(visits.NoopLocker)
	assert.True(t, ok)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	defer client.Close()
	_, ok = BuildQueueLocker(client, time.Second).(*visits.RedisLocker)
	assert.True(t, ok)
}

func TestBuildPostgresDisabled(t *testing.T) {
	pool, db, err := BuildPostgres(context.Background(), " ", nil)
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Nil(t, db)
}

func TestBuildAssistantModel(t *testing.T) {
	_, err := BuildAssistantModel(context.Background(), nil, nil)
	assert.Error(t, err)

	model, err := BuildAssistantModel(context.Background(), &appconfig.Config{}, logging.New("error"))
	require.NoError(t, err)
	assert.Nil(t, model)

	model, err = BuildAssistantModel(context.Background(), &appconfig.Config{GeminiAPIKey: "k"}, logging.New("error"))
	require.NoError(t, err)
	assert.Nil(t, model)
}

func TestBuildRequiresEndpointAndSecret(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logging.New("error")

	_, err := Build(ctx, nil, logger, prometheus.NewRegistry())
	assert.Error(t, err)

	_, err = Build(ctx, &appconfig.Config{SessionSecret: "s"}, logger, prometheus.NewRegistry())
	assert.Error(t, err)

	_, err = Build(ctx, &appconfig.Config{SheetsEndpoint: "http://sheets.invalid/exec"}, logger, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestBuildServesHealthAndMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, &appconfig.Config{
		SheetsEndpoint: "http://sheets.invalid/exec",
		SheetsTimeout:  time.Second,
		SessionSecret:  "secret",
		RateLimitRPS:   10,
		RateLimitBurst: 10,
	}, logging.New("error"), prometheus.NewRegistry())
	require.NoError(t, err)
	defer app.Close()
	assert.Nil(t, app.Verifier)

	for path, want := range map[string]int{
		"/health":        http.StatusOK,
		"/metrics":       http.StatusOK,
		"/api/dashboard": http.StatusUnauthorized,
		"/ws/board":      http.StatusUnauthorized,
	} {
		rr := httptest.NewRecorder()
		app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rr.Code, path)
	}
}
