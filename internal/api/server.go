package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/agentplane/internal/api/handler"
	mw "github.com/edvin/agentplane/internal/api/middleware"
	"github.com/edvin/agentplane/internal/api/response"
	"github.com/edvin/agentplane/internal/authz"
	"github.com/edvin/agentplane/internal/core"
)

const serviceName = "control-plane"

// Pinger reports whether the database is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP surface. Temporal is optional.
type Deps struct {
	Services       *core.Services
	Verifier       core.TokenVerifier
	Authorizer     *authz.Authorizer
	DB             Pinger
	TemporalClient temporalclient.Client
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type Server struct {
	router chi.Router
	logger zerolog.Logger
	deps   Deps
}

func NewServer(logger zerolog.Logger, deps Deps) *Server {
	if deps.RequestTimeout == 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.deps.RequestTimeout))
	s.router.Use(mw.Metrics)
	if len(s.deps.CORSOrigins) > 0 {
		s.router.Use(mw.CORS(s.deps.CORSOrigins))
	}
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteError(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.WriteErrorCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	az := s.deps.Authorizer
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.deps.Verifier))

		// Templates
		template := handler.NewTemplate(s.deps.Services)
		r.With(mw.RequirePermission(az, authz.ObjTemplates, authz.ActWrite)).Post("/templates", template.Create)
		r.With(mw.RequirePermission(az, authz.ObjTemplates, authz.ActRead)).Get("/templates", template.List)
		r.With(mw.RequirePermission(az, authz.ObjTemplates, authz.ActRead)).Get("/templates/{id}", template.Get)

		// Versions
		version := handler.NewVersion(s.deps.Services)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActWrite)).Post("/templates/{id}/versions", version.Create)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActRead)).Get("/templates/{id}/versions", version.ListByTemplate)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActRead)).Get("/versions/{id}", version.Get)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActWrite)).Post("/versions/{id}/submit", version.Submit)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActPromote)).Post("/versions/{id}/promote", version.Promote)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActPromote)).Post("/versions/{id}/reject", version.Reject)
		r.With(mw.RequirePermission(az, authz.ObjVersions, authz.ActPromote)).Post("/versions/{id}/retire", version.Retire)

		// Evaluation runs
		evaluation := handler.NewEvaluation(s.deps.Services)
		r.With(mw.RequirePermission(az, authz.ObjEvaluations, authz.ActWrite)).Post("/versions/{id}/evaluations", evaluation.Record)
		r.With(mw.RequirePermission(az, authz.ObjEvaluations, authz.ActRead)).Get("/versions/{id}/evaluations", evaluation.ListByVersion)

		// Instances
		instance := handler.NewInstance(s.deps.Services)
		r.With(mw.RequirePermission(az, authz.ObjInstances, authz.ActWrite)).Post("/instances", instance.Create)
		r.With(mw.RequirePermission(az, authz.ObjInstances, authz.ActRead)).Get("/instances", instance.List)
		r.With(mw.RequirePermission(az, authz.ObjInstances, authz.ActRead)).Get("/instances/{id}", instance.Get)
		r.With(mw.RequirePermission(az, authz.ObjInstances, authz.ActWrite)).Patch("/instances/{id}", instance.UpdateStatus)

		// Policy envelopes
		policy := handler.NewPolicy(s.deps.Services)
		r.With(mw.RequirePermission(az, authz.ObjPolicies, authz.ActWrite)).Post("/policies", policy.Create)
		r.With(mw.RequirePermission(az, authz.ObjPolicies, authz.ActRead)).Get("/policies", policy.List)
		r.With(mw.RequirePermission(az, authz.ObjPolicies, authz.ActRead)).Get("/policies/{id}", policy.Get)

		// Audit events
		event := handler.NewEvent(s.deps.Services)
		r.With(mw.RequirePermission(az, authz.ObjEvents, authz.ActRead)).Get("/events", event.List)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// handleReadyz pings the database and, when configured, Temporal. Failure
// causes are logged rather than returned.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.deps.DB == nil {
		checks["database"] = "unconfigured"
		healthy = false
	} else if err := s.deps.DB.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness: database ping failed")
		checks["database"] = "unavailable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if s.deps.TemporalClient != nil {
		if _, err := s.deps.TemporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness: temporal health check failed")
			checks["temporal"] = "unavailable"
			healthy = false
		} else {
			checks["temporal"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	response.WriteJSON(w, status, checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
