package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/contextkeys"
	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/session"
	"github.com/campuskit/registrar/pkg/tenant"
)

// Header names the middleware chain reads.
const (
	HeaderRequestID   = "X-Request-ID"
	HeaderPrincipalID = "X-Principal-ID"
	HeaderSessionID   = "X-Session-ID"
)

// RequestID assigns every request a UUID, honoring one supplied by
// the caller, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(contextkeys.WithRequestID(r.Context(), requestID)))
	})
}

// Principal requires the authenticated principal and session headers
// set by the authentication proxy in front of the service.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID := r.Header.Get(HeaderPrincipalID)
		if principalID == "" {
			httputil.WriteUnauthorized(w, "missing principal")
			return
		}
		ctx := contextkeys.WithPrincipal(r.Context(), principalID)
		if sessionID := r.Header.Get(HeaderSessionID); sessionID != "" {
			ctx = contextkeys.WithSession(ctx, sessionID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextResolver resolves the caller's tenant context for an
// institution. Implemented by session.Manager.
type ContextResolver interface {
	EstablishContext(ctx context.Context, sessionID, institutionID string) (tenant.Context, error)
}

// CrossTenantAuditor writes the outcome of a cross-institution access
// attempt to the audit trail. Implemented by access.Validator.
type CrossTenantAuditor interface {
	CheckCrossInstitutional(ctx context.Context, principalID, targetInstitutionID string, meta audit.RequestMeta) (bool, error)
}

// Tenant resolves the institution named by the request into a tenant
// context and stores it on the request context. A request naming an
// institution the principal cannot enter is denied and the attempt is
// recorded on the audit trail through the auditor.
func Tenant(resolver ContextResolver, auditor CrossTenantAuditor, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := contextkeys.Session(r.Context())
			if sessionID == "" {
				httputil.WriteUnauthorized(w, "missing session")
				return
			}

			institutionID := InstitutionID(r)
			if institutionID == "" {
				httputil.WriteBadRequest(w, "missing institution id")
				return
			}

			tc, err := resolver.EstablishContext(r.Context(), sessionID, institutionID)
			if err != nil {
				logger.WithError(err).WithField("institution_id", institutionID).Warn("context establishment failed")
				if errors.Is(err, session.ErrNotFound) {
					httputil.WriteUnauthorized(w, "session expired")
					return
				}
				if auditor != nil {
					meta := audit.RequestMeta{
						IPAddress: r.RemoteAddr,
						UserAgent: r.UserAgent(),
						RequestID: contextkeys.RequestID(r.Context()),
					}
					// The auditor records the denial itself; its
					// error restates what we already know.
					_, _ = auditor.CheckCrossInstitutional(r.Context(), contextkeys.Principal(r.Context()), institutionID, meta)
				}
				httputil.WriteForbidden(w, "no access to institution")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tc)))
		})
	}
}

// InstitutionID extracts the requested institution from the request:
// path variable, then header, then query parameter.
func InstitutionID(r *http.Request) string {
	if id, ok := mux.Vars(r)["institution_id"]; ok && id != "" {
		return id
	}
	if id := r.Header.Get("X-Institution-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("institution_id")
}

// WithTenant stores the resolved tenant context on the request
// context.
func WithTenant(ctx context.Context, tc tenant.Context) context.Context {
	return context.WithValue(ctx, contextkeys.TenantKey, tc)
}

// TenantFromContext retrieves the tenant context resolved by Tenant.
func TenantFromContext(ctx context.Context) (tenant.Context, bool) {
	tc, ok := ctx.Value(contextkeys.TenantKey).(tenant.Context)
	return tc, ok
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Metrics records request count and duration per route.
func Metrics(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			metrics.ObserveHTTPRequest(r.Method, path, recorder.status, time.Since(start))
		})
	}
}

// Logging emits one structured line per request.
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     recorder.status,
				"duration":   time.Since(start).String(),
				"request_id": contextkeys.RequestID(r.Context()),
			}).Info("request completed")
		})
	}
}
