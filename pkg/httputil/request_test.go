package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	var dest struct {
		InstitutionID string `json:"institutionId"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"institutionId":"inst-a"}`))
	require.NoError(t, ParseJSON(req, &dest))
	assert.Equal(t, "inst-a", dest.InstitutionID)

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{bad`))
	assert.Error(t, ParseJSON(req, &dest))
}

func TestParseJSONOrError(t *testing.T) {
	var dest map[string]string
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`not json`))

	ok := ParseJSONOrError(rec, req, &dest)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePathString(t *testing.T) {
	router := mux.NewRouter()
	var got string
	var err error
	router.HandleFunc("/courses/{course_id}", func(w http.ResponseWriter, r *http.Request) {
		got, err = ParsePathString(r, "course_id")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/courses/c-101", nil))
	require.NoError(t, err)
	assert.Equal(t, "c-101", got)
}

func TestWriteHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]string{"status": "ok"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	WriteForbidden(rec, "insufficient privileges")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient privileges")

	rec = httptest.NewRecorder()
	WriteNotFound(rec, "course not found")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalError(rec, errors.New(`dial tcp 10.0.0.5:5432: connect: connection refused`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.NotContains(t, rec.Body.String(), "5432")
}
