package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/enrollment"
	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/observability"
)

// EnrollmentHandlers exposes course admission operations.
type EnrollmentHandlers struct {
	enrollments *enrollment.Controller
	logger      *observability.Logger
}

// RegisterRoutes registers enrollment routes.
func (h *EnrollmentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/courses/{course_id}/seats", h.getCourse).Methods("GET")
	router.HandleFunc("/courses/{course_id}/enrollments", h.enroll).Methods("POST")
	router.HandleFunc("/courses/{course_id}/enrollments", h.drop).Methods("DELETE")
	router.HandleFunc("/courses/{course_id}/enrollments/{student_id}", h.adminEnroll).Methods("PUT")
	router.HandleFunc("/courses/{course_id}/enrollments/{student_id}", h.adminRemove).Methods("DELETE")
}

func (h *EnrollmentHandlers) getCourse(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	courseID, ok := httputil.ParsePathStringOrError(w, r, "course_id")
	if !ok {
		return
	}

	seats, err := h.enrollments.Course(r.Context(), tc, courseID, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, seats)
}

func (h *EnrollmentHandlers) enroll(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	courseID, ok := httputil.ParsePathStringOrError(w, r, "course_id")
	if !ok {
		return
	}

	result, err := h.enrollments.Enroll(r.Context(), tc, courseID, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

func (h *EnrollmentHandlers) drop(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	courseID, ok := httputil.ParsePathStringOrError(w, r, "course_id")
	if !ok {
		return
	}

	result, err := h.enrollments.Drop(r.Context(), tc, courseID, requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *EnrollmentHandlers) adminEnroll(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	result, err := h.enrollments.AdminEnroll(r.Context(), tc, vars["course_id"], vars["student_id"], requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

func (h *EnrollmentHandlers) adminRemove(w http.ResponseWriter, r *http.Request) {
	tc, ok := tenantContext(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	result, err := h.enrollments.AdminRemove(r.Context(), tc, vars["course_id"], vars["student_id"], requestMeta(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *EnrollmentHandlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, enrollment.ErrCourseNotFound):
		httputil.WriteNotFound(w, "course not found")
	case errors.Is(err, enrollment.ErrCourseFull):
		httputil.WriteConflict(w, "course is full")
	case errors.Is(err, enrollment.ErrAlreadyEnrolled):
		httputil.WriteConflict(w, "already enrolled")
	case errors.Is(err, enrollment.ErrNotEnrolled):
		httputil.WriteConflict(w, "not enrolled")
	case errors.Is(err, enrollment.ErrConcurrentUpdate):
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "enrollment contention, retry")
	case errors.Is(err, access.ErrInsufficientPrivileges):
		httputil.WriteForbidden(w, err.Error())
	default:
		h.logger.WithError(err).Error("enrollment operation failed")
		httputil.WriteInternalError(w, err)
	}
}
