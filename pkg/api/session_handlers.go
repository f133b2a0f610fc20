package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/contextkeys"
	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/session"
	"github.com/campuskit/registrar/pkg/tenant"
)

// SessionHandlers handles session lifecycle and institution context
// switching.
type SessionHandlers struct {
	sessions *session.Manager
	sink     audit.Sink
	logger   *observability.Logger
}

// RegisterRoutes registers session routes.
func (h *SessionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sessions", h.createSession).Methods("POST")
	router.HandleFunc("/sessions/current", h.deleteSession).Methods("DELETE")
	router.HandleFunc("/context", h.getContext).Methods("GET")
	router.HandleFunc("/context", h.establishContext).Methods("POST")
	router.HandleFunc("/context/switch", h.switchContext).Methods("POST")
}

type contextRequest struct {
	InstitutionID string `json:"institution_id"`
}

type contextResponse struct {
	InstitutionID   string `json:"institution_id"`
	InstitutionName string `json:"institution_name"`
	PrincipalID     string `json:"principal_id"`
	Role            string `json:"role"`
	EstablishedAt   string `json:"established_at"`
}

func toContextResponse(tc tenant.Context) contextResponse {
	return contextResponse{
		InstitutionID:   tc.InstitutionID,
		InstitutionName: tc.Institution.Name,
		PrincipalID:     tc.PrincipalID,
		Role:            string(tc.Role()),
		EstablishedAt:   tc.EstablishedAt.UTC().Format(time.RFC3339),
	}
}

func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	principalID := contextkeys.Principal(r.Context())

	sess, err := h.sessions.Login(r.Context(), principalID)
	if err != nil {
		h.logger.WithError(err).Error("failed to create session")
		httputil.WriteInternalError(w, err)
		return
	}
	h.record(r, &audit.Entry{
		EventType:   audit.EventSessionCreate,
		PrincipalID: principalID,
		Allowed:     true,
		Metadata:    map[string]string{"session_id": sess.ID},
	})
	httputil.WriteCreated(w, map[string]interface{}{
		"session_id":   sess.ID,
		"principal_id": sess.PrincipalID,
		"created_at":   sess.CreatedAt,
	})
}

func (h *SessionHandlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := contextkeys.Session(r.Context())
	if sessionID == "" {
		httputil.WriteUnauthorized(w, "missing session")
		return
	}
	if err := h.sessions.Logout(r.Context(), sessionID); err != nil {
		h.logger.WithError(err).Error("failed to destroy session")
		httputil.WriteInternalError(w, err)
		return
	}
	h.record(r, &audit.Entry{
		EventType:   audit.EventSessionDestroy,
		PrincipalID: contextkeys.Principal(r.Context()),
		Allowed:     true,
	})
	httputil.WriteNoContent(w)
}

func (h *SessionHandlers) getContext(w http.ResponseWriter, r *http.Request) {
	sessionID := contextkeys.Session(r.Context())
	if sessionID == "" {
		httputil.WriteUnauthorized(w, "missing session")
		return
	}

	tc, err := h.sessions.CurrentContext(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			httputil.WriteUnauthorized(w, "session expired")
		case errors.Is(err, session.ErrContextMissing):
			httputil.WriteNotFound(w, "no institution context established")
		default:
			h.logger.WithError(err).Error("failed to read session context")
			httputil.WriteInternalError(w, err)
		}
		return
	}
	httputil.WriteSuccess(w, toContextResponse(tc))
}

func (h *SessionHandlers) establishContext(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, audit.EventContextEstablish, h.sessions.EstablishContext)
}

func (h *SessionHandlers) switchContext(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, audit.EventContextSwitch, h.sessions.Switch)
}

func (h *SessionHandlers) resolve(w http.ResponseWriter, r *http.Request, event audit.EventType, fn func(ctx context.Context, sessionID, institutionID string) (tenant.Context, error)) {
	sessionID := contextkeys.Session(r.Context())
	if sessionID == "" {
		httputil.WriteUnauthorized(w, "missing session")
		return
	}

	var req contextRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.InstitutionID == "" {
		httputil.WriteBadRequest(w, "institution_id is required")
		return
	}

	entry := &audit.Entry{
		EventType:     event,
		PrincipalID:   contextkeys.Principal(r.Context()),
		InstitutionID: req.InstitutionID,
	}
	tc, err := fn(r.Context(), sessionID, req.InstitutionID)
	if err != nil {
		entry.Reason = err.Error()
		h.record(r, entry)
		h.writeTenantError(w, err)
		return
	}
	entry.Allowed = true
	entry.Metadata = map[string]string{"role": string(tc.Role())}
	h.record(r, entry)
	httputil.WriteSuccess(w, toContextResponse(tc))
}

// record writes a session lifecycle entry. Audit failures never fail
// the request.
func (h *SessionHandlers) record(r *http.Request, entry *audit.Entry) {
	if h.sink == nil {
		return
	}
	if err := h.sink.Record(r.Context(), entry.WithMeta(requestMeta(r))); err != nil {
		h.logger.WithError(err).Error("audit write failed")
	}
}

func (h *SessionHandlers) writeTenantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httputil.WriteUnauthorized(w, "session expired")
	case errors.Is(err, tenant.ErrInstitutionNotFound):
		httputil.WriteNotFound(w, "institution not found")
	case errors.Is(err, tenant.ErrInstitutionInactive):
		httputil.WriteForbidden(w, "institution is inactive")
	case errors.Is(err, tenant.ErrPrincipalNotFound), errors.Is(err, tenant.ErrNoInstitutionalAccess):
		httputil.WriteForbidden(w, "no access to institution")
	default:
		h.logger.WithError(err).Error("context establishment failed")
		httputil.WriteInternalError(w, err)
	}
}
