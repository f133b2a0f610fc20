package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/assignment"
	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

// RoleHandlers exposes role assignment operations.
type RoleHandlers struct {
	assignments *assignment.Service
	logger      *observability.Logger
}

// RegisterRoutes registers role management routes.
func (h *RoleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id}/role", h.assignRole).Methods("PUT")
	router.HandleFunc("/users/{id}/admin", h.removeAdmin).Methods("DELETE")
	router.HandleFunc("/users/{id}/registration", h.rejectRegistration).Methods("DELETE")
}

type roleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason,omitempty"`
}

func (h *RoleHandlers) assignRole(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role == "" {
		httputil.WriteBadRequest(w, "role is required")
		return
	}

	profile, err := h.assignments.Assign(r.Context(), tc, targetID, roles.Role(req.Role), req.Reason, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

func (h *RoleHandlers) removeAdmin(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role == "" {
		httputil.WriteBadRequest(w, "role is required")
		return
	}

	profile, err := h.assignments.RemoveAdminPrivileges(r.Context(), tc, targetID, roles.Role(req.Role), req.Reason, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

func (h *RoleHandlers) rejectRegistration(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		req.Reason = ""
	}

	if err := h.assignments.RejectPendingProfile(r.Context(), tc, targetID, req.Reason, requestMeta(r)); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *RoleHandlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assignment.ErrNotAuthorized),
		errors.Is(err, assignment.ErrTargetAboveActor):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, assignment.ErrSameRole),
		errors.Is(err, assignment.ErrProfileNotPending):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, assignment.ErrInvalidRole):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, tenant.ErrPrincipalNotFound),
		errors.Is(err, tenant.ErrNoInstitutionalAccess):
		httputil.WriteNotFound(w, err.Error())
	default:
		h.logger.WithError(err).Error("role change failed")
		httputil.WriteInternalError(w, err)
	}
}
