package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/httputil"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/middleware"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// DefaultMaxUploadBytes caps policy document uploads
const DefaultMaxUploadBytes = 20 << 20

// ReconcileRunner runs an orphan profile reconciliation pass
type ReconcileRunner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error)
}

// AccessProvisioner provisions portal access for a new client
type AccessProvisioner interface {
	Create(ctx context.Context, client *models.Client, sendEmail bool) (*access.Result, error)
}

// Dependencies are the collaborators of the API server. Metrics, Health and RateLimit
// are optional.
type Dependencies struct {
	Store       storage.Store
	Objects     storage.ObjectStore
	Reconciler  ReconcileRunner
	Provisioner AccessProvisioner
	Auth        *middleware.AuthMiddleware
	RateLimit   *middleware.RateLimitMiddleware
	Audit       *auth.AuditLogger
	Metrics     *observability.Metrics
	Health      *observability.HealthChecker
	Logger      *observability.Logger

	MaxUploadBytes int64
	PresignTTL     time.Duration
	CORSOrigins    []string
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates a new API server with all routes registered
func NewServer(deps Dependencies) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = auth.NewAuditLogger(deps.Logger)
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: deps.Logger,
	}
	s.setupRoutes(deps)
	s.handler = httputil.CORSMiddleware(deps.CORSOrigins)(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Dependencies) {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})

	if deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
		s.router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}
	if deps.Health != nil {
		observability.RegisterHealthRoutes(s.router, deps.Health)
	}

	validate := validator.New()

	api := s.router.PathPrefix("/api").Subrouter()

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(deps.Auth.WithRejectStatus(http.StatusForbidden).Handler)
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	if deps.RateLimit != nil {
		admin.Use(deps.RateLimit.Handler)
	}

	documents := NewDocumentHandlers(deps.Store, deps.Objects, deps.Audit, deps.MaxUploadBytes, deps.PresignTTL)
	NewReconcileHandlers(deps.Reconciler, deps.Audit).RegisterRoutes(admin)
	NewClientHandlers(deps.Store, deps.Provisioner, deps.Audit, validate).RegisterRoutes(admin)
	NewPolicyHandlers(deps.Store, deps.Audit, validate).RegisterRoutes(admin)
	documents.RegisterRoutes(admin)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(deps.Auth.Handler)
	me.Use(middleware.RequireAuthenticated)
	NewMeHandlers(deps.Store, documents).RegisterRoutes(me)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
