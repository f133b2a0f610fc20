package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/registrar/pkg/observability"
)

func newTestRouter(t *testing.T) (*mux.Router, *MemorySink) {
	t.Helper()
	sink := NewMemorySink(100, nil)
	router := mux.NewRouter()
	NewHandlers(sink, observability.NopLogger()).RegisterRoutes(router.PathPrefix("/audit").Subrouter())

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, &Entry{
		EventType: EventPermissionCheck, InstitutionID: "inst-a",
		PrincipalID: "u-1", Action: "read", Resource: "course", Allowed: true,
	}))
	require.NoError(t, sink.Record(ctx, &Entry{
		EventType: EventAccessDenied, InstitutionID: "inst-a",
		PrincipalID: "u-2", Action: "delete", Resource: "course", Allowed: false,
	}))
	require.NoError(t, sink.Record(ctx, &Entry{
		EventType: EventCrossTenant, InstitutionID: "inst-b",
		PrincipalID: "u-1", Allowed: false, CrossTenant: true,
	}))
	return router, sink
}

func get(t *testing.T, router *mux.Router, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListEvents(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := get(t, router, "/audit/events")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["count"])

	rec, body = get(t, router, "/audit/events?institution_id=inst-a")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	rec, body = get(t, router, "/audit/events?limit=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestListAlerts(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := get(t, router, "/audit/alerts")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
}

func TestListCrossTenant(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := get(t, router, "/audit/cross-tenant")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestGetSummary(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := get(t, router, "/audit/summary?institution_id=inst-a&hours=24")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total_entries"])
	assert.Equal(t, float64(1), body["denied_entries"])
}

func TestGetSummaryValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := get(t, router, "/audit/summary")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, router, "/audit/summary?institution_id=inst-a&hours=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
