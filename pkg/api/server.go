package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/assignment"
	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/enrollment"
	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/middleware"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/session"
)

// Server wires the HTTP surface over the domain services.
type Server struct {
	sessions    *session.Manager
	validator   *access.Validator
	assignments *assignment.Service
	enrollments *enrollment.Controller
	sink        audit.Sink
	trail       audit.Trail
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewServer creates the API server.
func NewServer(
	sessions *session.Manager,
	validator *access.Validator,
	assignments *assignment.Service,
	enrollments *enrollment.Controller,
	sink audit.Sink,
	trail audit.Trail,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		sessions:    sessions,
		validator:   validator,
		assignments: assignments,
		enrollments: enrollments,
		sink:        sink,
		trail:       trail,
		logger:      logger,
		metrics:     metrics,
	}
}

// Router builds the full route tree. Session lifecycle routes only
// need an authenticated principal; everything else additionally runs
// inside a resolved tenant context.
func (s *Server) Router() *mux.Router {
	root := mux.NewRouter()
	root.Use(mux.MiddlewareFunc(middleware.RequestID))
	root.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	if s.metrics != nil {
		root.Use(mux.MiddlewareFunc(middleware.Metrics(s.metrics)))
	}

	v1 := root.PathPrefix("/api/v1").Subrouter()
	v1.Use(mux.MiddlewareFunc(middleware.Principal))

	sessionHandlers := &SessionHandlers{sessions: s.sessions, sink: s.sink, logger: s.logger}
	sessionHandlers.RegisterRoutes(v1)

	scoped := v1.PathPrefix("/").Subrouter()
	scoped.Use(mux.MiddlewareFunc(middleware.Tenant(s.sessions, s.validator, s.logger)))

	authzHandlers := &AuthzHandlers{validator: s.validator, logger: s.logger}
	authzHandlers.RegisterRoutes(scoped)

	roleHandlers := &RoleHandlers{assignments: s.assignments, logger: s.logger}
	roleHandlers.RegisterRoutes(scoped)

	enrollmentHandlers := &EnrollmentHandlers{enrollments: s.enrollments, logger: s.logger}
	enrollmentHandlers.RegisterRoutes(scoped)

	auditRouter := scoped.PathPrefix("/audit").Subrouter()
	auditRouter.Use(mux.MiddlewareFunc(requireAdmin))
	audit.NewHandlers(s.trail, s.logger).RegisterRoutes(auditRouter)

	return root
}

// requireAdmin restricts a subtree to institution administrators.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := middleware.TenantFromContext(r.Context())
		if !ok || tc.Role() != roles.RoleInstitutionAdmin {
			httputil.WriteForbidden(w, "institution admin required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
