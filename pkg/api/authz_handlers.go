package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/contextkeys"
	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/middleware"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

// AuthzHandlers exposes permission and resource access checks.
type AuthzHandlers struct {
	validator *access.Validator
	logger    *observability.Logger
}

// RegisterRoutes registers authorization routes.
func (h *AuthzHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/authz/check", h.checkPermission).Methods("POST")
	router.HandleFunc("/resources/{type}/{id}", h.checkResourceAccess).Methods("GET")
}

// requestMeta captures the transport facts handlers attach to audit
// entries.
func requestMeta(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
		RequestID: contextkeys.RequestID(r.Context()),
	}
}

func tenantContext(w http.ResponseWriter, r *http.Request) (tenant.Context, bool) {
	tc, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		httputil.WriteForbidden(w, "no tenant context")
	}
	return tc, ok
}

type checkRequest struct {
	Resource        string `json:"resource"`
	Action          string `json:"action"`
	ResourceOwnerID string `json:"resource_owner_id,omitempty"`
	CourseTeacherID string `json:"course_teacher_id,omitempty"`
	TargetProfileID string `json:"target_profile_id,omitempty"`
}

func (h *AuthzHandlers) checkPermission(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}

	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Resource == "" || req.Action == "" {
		httputil.WriteBadRequest(w, "resource and action are required")
		return
	}

	ec := roles.EvalContext{
		UserID:          tc.PrincipalID,
		ResourceOwnerID: req.ResourceOwnerID,
		CourseTeacherID: req.CourseTeacherID,
		TargetProfileID: req.TargetProfileID,
	}
	decision := h.validator.CheckPermission(r.Context(), tc,
		roles.Resource(req.Resource), roles.Action(req.Action), ec, requestMeta(r))

	httputil.WriteSuccess(w, decision)
}

func (h *AuthzHandlers) checkResourceAccess(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	resourceType := roles.Resource(vars["type"])
	resourceID := vars["id"]
	action := roles.Action(r.URL.Query().Get("action"))
	if action == "" {
		action = roles.ActionRead
	}

	result, err := h.validator.CheckResourceAccess(r.Context(), tc, resourceType, action, resourceID, requestMeta(r))
	switch {
	case err == nil:
		httputil.WriteSuccess(w, result)
	case errors.Is(err, access.ErrResourceNotFound):
		httputil.WriteNotFound(w, "resource not found")
	case errors.Is(err, access.ErrUnknownResourceType):
		httputil.WriteBadRequest(w, "unknown resource type")
	case errors.Is(err, access.ErrInsufficientPrivileges):
		httputil.WriteForbidden(w, result.Reason)
	default:
		h.logger.WithError(err).Error("resource access check failed")
		httputil.WriteInternalError(w, err)
	}
}
