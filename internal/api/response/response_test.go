package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/agentplane/internal/apperr"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	payload := map[string]string{"hello": "world"}

	WriteJSON(w, http.StatusOK, payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "world", body["hello"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusBadRequest, "something went wrong")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body ErrorBody
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "something went wrong", body.Error)
	assert.Equal(t, "invalid_request", body.Code)
}

func TestWriteJSON_NilValue(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	// json.Encode(nil) produces "null\n"
	assert.Equal(t, "null\n", w.Body.String())
}

func TestWriteServiceError_Kinds(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{apperr.Unauthenticated("invalid token"), 401, "unauthenticated", "invalid token"},
		{apperr.Forbidden("access denied"), 403, "forbidden", "access denied"},
		{apperr.Invalid("bad status"), 400, "invalid_request", "bad status"},
		{fmt.Errorf("get: %w", apperr.NotFound("version")), 404, "not_found", "version not found"},
		{apperr.PreconditionFailed("version", "candidate"), 409, "precondition_failed", "version must be in 'candidate' status"},
		{apperr.GateFailed("no passing evaluation found"), 422, "gate_failed", "no passing evaluation found"},
		{apperr.Conflict("resource already exists"), 409, "conflict", "resource already exists"},
		{apperr.StoreUnavailable(errors.New("dial tcp: refused")), 503, "store_unavailable", "backing store unavailable"},
		{apperr.Wrap(apperr.KindInternal, "boom", errors.New("secret detail")), 500, "internal", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestWriteServiceError_UnclassifiedIsLoggedNotLeaked(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(logger.WithContext(r.Context()))

	w := httptest.NewRecorder()
	WriteServiceError(w, r, errors.New(`pq: relation "agent_versions" does not exist`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "agent_versions")
	assert.Contains(t, logs.String(), "agent_versions")
}
