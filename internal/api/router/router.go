package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinicdesk/internal/http/middleware"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger        *logging.Logger
	Authenticator httpmiddleware.Authenticator
	Auth          *handlers.AuthHandler
	Desk          *handlers.DeskHandler
	Reports       *handlers.ReportsHandler
	Health        http.HandlerFunc

	// Optional surfaces.
	Assistant      *handlers.AssistantHandler
	Board          http.HandlerFunc
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	// LoginLimiter throttles login attempts per client IP.
	LoginLimiter *httpmiddleware.RateLimiter
	// APILimiter throttles authenticated calls per session.
	APILimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		login := public.With()
		if cfg.LoginLimiter != nil {
			login = public.With(httpmiddleware.RateLimit(cfg.LoginLimiter, httpmiddleware.ByClientIP))
		}
		login.Post("/api/auth/login", cfg.Auth.Login)
	})

	if cfg.Board != nil {
		r.With(httpmiddleware.RequireSession(cfg.Authenticator)).Get("/ws/board", cfg.Board)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.RequireSession(cfg.Authenticator))
		if cfg.APILimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.APILimiter, httpmiddleware.BySession))
		}

		api.Post("/auth/logout", cfg.Auth.Logout)
		api.Get("/auth/me", cfg.Auth.Me)
		api.Put("/auth/view", cfg.Auth.SetView)

		api.Get("/dashboard", cfg.Reports.Dashboard)
		api.Get("/board", cfg.Reports.Board)
		api.Get("/clinics", cfg.Reports.Clinics)
		api.Get("/quote", cfg.Reports.Quote)
		api.Get("/sync", cfg.Reports.SyncStatus)
		api.Post("/sync", cfg.Reports.Sync)

		api.Route("/patients", func(r chi.Router) {
			r.Get("/", cfg.Reports.Patients)
			r.Post("/", cfg.Desk.AddPatient)
			r.Get("/{patientID}/history", cfg.Reports.PatientHistory)
		})

		api.Route("/visits", func(r chi.Router) {
			r.Get("/", cfg.Reports.Visits)
			r.Post("/", cfg.Desk.AddVisit)
			r.Post("/{visitID}/status", cfg.Desk.UpdateVisitStatus)
			r.Post("/{visitID}/begin", cfg.Desk.BeginDiagnosis)
		})

		api.Post("/diagnoses", cfg.Desk.AddDiagnosis)

		api.Route("/revenues", func(r chi.Router) {
			r.Get("/", cfg.Reports.Revenues)
			r.Post("/", cfg.Desk.AddManualRevenue)
		})

		api.Route("/medical-records", func(r chi.Router) {
			r.Use(httpmiddleware.RequireRole(clinic.RoleDoctor, clinic.RoleManager))
			r.Get("/", cfg.Reports.MedicalRecords)
			r.Get("/{visitID}", cfg.Reports.MedicalReport)
		})

		api.Route("/doctors", func(r chi.Router) {
			r.Get("/", cfg.Reports.Doctors)
			r.Post("/", cfg.Desk.AddDoctor)
		})

		api.Route("/users", func(r chi.Router) {
			r.Use(httpmiddleware.RequireRole(clinic.RoleManager))
			r.Get("/", cfg.Reports.Users)
			r.Post("/", cfg.Desk.AddUser)
			r.Patch("/{userID}", cfg.Desk.UpdateUser)
		})

		if cfg.Assistant != nil {
			api.Route("/assistant", func(r chi.Router) {
				r.Post("/commands", cfg.Assistant.Commands)
				r.Post("/chat", cfg.Assistant.Chat)
			})
		}
	})

	return r
}
