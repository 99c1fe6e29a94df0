package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinicdesk/internal/api/router"
	"github.com/wolfman30/clinicdesk/internal/assistant"
	"github.com/wolfman30/clinicdesk/internal/auth"
	"github.com/wolfman30/clinicdesk/internal/board"
	"github.com/wolfman30/clinicdesk/internal/compliance"
	appconfig "github.com/wolfman30/clinicdesk/internal/config"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinicdesk/internal/http/middleware"
	"github.com/wolfman30/clinicdesk/internal/journal"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/reports"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/state"
	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Login attempts allowed per client IP: a burst of 5, then one every 5s.
const (
	loginRate  = 0.2
	loginBurst = 5
)

// App is the wired service. Build it once, then Start the background
// loops and serve Handler.
type App struct {
	Handler  http.Handler
	Store    *state.Store
	Hub      *board.Hub
	Sessions *auth.Manager
	Verifier *journal.Verifier

	logger  *logging.Logger
	closers []func()
}

// Build wires every component from cfg. reg receives the service metrics;
// nil uses the default Prometheus registry. Optional backends (Redis,
// Postgres, Gemini) are skipped when unconfigured.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{logger: logger}

	var deskMetrics *metrics.DeskMetrics
	var metricsHandler http.Handler
	if reg != nil {
		deskMetrics = metrics.NewDeskMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	} else {
		deskMetrics = metrics.NewDeskMetrics(prometheus.DefaultRegisterer)
		metricsHandler = promhttp.Handler()
	}

	gateway, err := sheets.New(sheets.Config{
		Endpoint: cfg.SheetsEndpoint,
		Timeout:  cfg.SheetsTimeout,
		Location: cfg.Location(),
		Logger:   logger.Component("sheets"),
		Metrics:  deskMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	store := state.NewStore(gateway, logger.Component("state"))
	app.Store = store

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	coordinator := visits.NewCoordinator(visits.Config{
		Gateway:      gateway,
		Cache:        store,
		Locker:       BuildQueueLocker(redisClient, cfg.QueueLockTTL),
		ConfirmDelay: cfg.ConfirmDelay,
		Logger:       logger.Component("visits"),
		Metrics:      deskMetrics,
	})

	pool, sqlDB, err := BuildPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	recorders, access := app.persistence(pool, sqlDB, gateway)

	desk := frontdesk.NewService(frontdesk.Config{
		Gateway:         gateway,
		Cache:           store,
		Coordinator:     coordinator,
		MutationTimeout: cfg.MutationTimeout,
		Recorders:       recorders,
		Logger:          logger,
		Metrics:         deskMetrics,
	})

	sessions, err := auth.NewManager(auth.Config{
		Directory: store,
		Secret:    cfg.SessionSecret,
		TTL:       cfg.SessionTTL,
		Access:    access,
		Logger:    logger.Component("auth"),
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("bootstrap: sessions: %w", err)
	}
	app.Sessions = sessions

	app.Hub = board.NewHub(board.Config{
		Source:       store,
		Today:        coordinator.Today,
		Scope:        boardScope,
		PingInterval: cfg.BoardPingInterval,
		Logger:       logger,
		Metrics:      deskMetrics,
	})

	gemini, err := BuildAssistantModel(ctx, cfg, logger)
	if err != nil {
		logger.Warn("assistant chat unavailable", "error", err)
	}
	var model assistant.Model
	if gemini != nil {
		model = gemini
		app.closers = append(app.closers, func() { _ = gemini.Close() })
	}
	helper := assistant.New(model, assistant.NewExecutor(desk, store, coordinator.Today), logger)

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		Authenticator:      sessions,
		Auth:               handlers.NewAuthHandler(sessions, logger),
		Desk:               handlers.NewDeskHandler(desk, logger),
		Reports:            handlers.NewReportsHandler(store, cfg.Location(), logger),
		Health:             handlers.Health(store),
		Assistant:          handlers.NewAssistantHandler(helper, logger),
		Board:              app.Hub.HandleWebSocket,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		LoginLimiter:       httpmiddleware.NewRateLimiter(ctx, loginRate, loginBurst),
		APILimiter:         httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
	})
	return app, nil
}

// persistence wires the mutation journal and access audit when Postgres
// is available.
func (a *App) persistence(pool *pgxpool.Pool, db *sql.DB, loader visits.DatasetLoader) ([]frontdesk.Recorder, auth.AccessRecorder) {
	if pool == nil || db == nil {
		return nil, nil
	}
	a.closers = append(a.closers, func() { _ = db.Close() }, pool.Close)

	journalStore := journal.NewStore(pool)
	a.Verifier = journal.NewVerifier(journalStore, loader, a.logger)
	audit := compliance.NewAuditService(db, a.logger.Component("audit"))
	return []frontdesk.Recorder{journalStore.Recorder(a.logger), audit}, audit
}

// Start loads the first snapshot in the background and runs the board
// and journal loops until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.Store.RefreshInBackground()
	go a.Hub.Run(ctx)
	if a.Verifier != nil {
		go a.Verifier.Start(ctx)
	}
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func boardScope(r *http.Request) int64 {
	requested, _ := strconv.ParseInt(r.URL.Query().Get("clinic_id"), 10, 64)
	session, _ := httpmiddleware.SessionFromContext(r.Context())
	return reports.ScopeClinic(session.User, requested)
}
