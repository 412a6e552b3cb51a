package api

import (
	"net/http"
	"time"

	"github.com/goodaegwang/cirrus/internal/api/middleware"
	"github.com/goodaegwang/cirrus/internal/audit"
	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/service"
	"github.com/goodaegwang/cirrus/internal/tasks"
	"github.com/goodaegwang/cirrus/internal/token"
)

// adminScope is required on the bearer token for the admin subtree.
const adminScope = "admin"

type Server struct {
	store        core.CredentialStore
	taskManager  *tasks.Manager
	auditor      core.Auditor
	metrics      *Metrics
	tokenService *service.TokenService
	verifier     *service.Verifier
	statistics   *service.StatisticsService
}

func NewServer(
	store core.CredentialStore,
	telemetry core.TelemetryStore,
	userStats core.UserStatsStore,
	codec *token.Codec,
	taskManager *tasks.Manager,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	return &Server{
		store:        store,
		taskManager:  taskManager,
		auditor:      auditor,
		metrics:      NewMetrics(),
		tokenService: service.NewTokenService(store, codec, auditor),
		verifier:     service.NewVerifier(store, codec),
		statistics:   service.NewStatisticsService(store, telemetry, userStats),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.Handle("GET "+MetricsRoute, s.metrics.Handler())

	// token routes; the bare patterns catch other methods with a 405
	mux.HandleFunc("POST "+TokenRoute, s.handleToken)
	mux.HandleFunc(TokenRoute, s.handleMethodNotAllowed)
	mux.HandleFunc("POST "+ServiceTokenRoute, s.handleServiceToken)
	mux.HandleFunc(ServiceTokenRoute, s.handleMethodNotAllowed)
	mux.HandleFunc("POST "+AppKeyRoute, s.handleAppKey)
	mux.HandleFunc("POST "+VerificationRoute, s.handleVerification)

	// resource routes
	mux.HandleFunc("GET "+StatisticsRoute, s.handleStatistics)
	mux.HandleFunc("GET "+UserStatisticsRoute, s.handleUserStatistics)
	mux.HandleFunc(UserStatisticsRoute, s.handleMethodNotAllowed)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListActiveTokensRoute, s.handleAdminTokens)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.RequireScope(adminScope)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				middleware.BearerAuth(s.verifier)(
					s.instrument(mux)))))
}

// instrument records request latency per route pattern.
func (s *Server) instrument(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// the route pattern keeps metric cardinality bounded
		_, route := next.Handler(r)
		if route == "" {
			route = "(unmatched)"
		}
		s.metrics.ObserveRequest(r.Method, route, ww.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	w.WriteHeader(http.StatusMethodNotAllowed)
}
