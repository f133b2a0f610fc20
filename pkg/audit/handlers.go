package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/campuskit/registrar/pkg/httputil"
	"github.com/campuskit/registrar/pkg/observability"
)

// Handlers provides the HTTP query surface over the audit trail.
type Handlers struct {
	trail  Trail
	logger *observability.Logger
}

// NewHandlers creates audit query handlers.
func NewHandlers(trail Trail, logger *observability.Logger) *Handlers {
	return &Handlers{trail: trail, logger: logger}
}

// RegisterRoutes registers the audit query routes. Mount the router
// under the /audit prefix.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events", h.listEvents).Methods("GET")
	router.HandleFunc("/alerts", h.listAlerts).Methods("GET")
	router.HandleFunc("/cross-tenant", h.listCrossTenant).Methods("GET")
	router.HandleFunc("/summary", h.getSummary).Methods("GET")
}

func queryParams(r *http.Request) (institutionID string, limit int) {
	institutionID = r.URL.Query().Get("institution_id")
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return institutionID, limit
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	institutionID, limit := queryParams(r)
	entries, err := h.trail.Recent(r.Context(), institutionID, limit)
	if err != nil {
		h.logger.WithError(err).Error("audit trail query failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	institutionID, limit := queryParams(r)
	entries, err := h.trail.Alerts(r.Context(), institutionID, limit)
	if err != nil {
		h.logger.WithError(err).Error("audit trail query failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"alerts": entries,
		"count":  len(entries),
	})
}

func (h *Handlers) listCrossTenant(w http.ResponseWriter, r *http.Request) {
	institutionID, limit := queryParams(r)
	entries, err := h.trail.CrossTenant(r.Context(), institutionID, limit)
	if err != nil {
		h.logger.WithError(err).Error("audit trail query failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	institutionID := r.URL.Query().Get("institution_id")
	if institutionID == "" {
		httputil.WriteBadRequest(w, "institution_id is required")
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteBadRequest(w, "hours must be a positive integer")
			return
		}
		hours = n
	}

	summary, err := h.trail.Summarize(r.Context(), institutionID, time.Duration(hours)*time.Hour)
	if err != nil {
		h.logger.WithError(err).Error("audit trail query failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}
