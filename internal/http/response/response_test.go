package response

import (
	"encoding/json/v2"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/annotateapp/annotate-server/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJSON_WritesPayloadUnwrapped(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"id": "ann-1"}, testLogger())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "ann-1", result["id"])
}

func TestJSON_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"ok": "yes"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()

	Created(w, map[string]string{"id": "ann-new"}, testLogger())

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestFailure_Envelope(t *testing.T) {
	w := httptest.NewRecorder()

	Failure(w, http.StatusBadRequest, "missing field", testLogger())

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var envelope FailureEnvelope
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, "failure", envelope.Status)
	assert.Equal(t, "missing field", envelope.Reason)
}

func TestFailureShorthands(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		reason string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "invalid input", nil) }, http.StatusBadRequest, "invalid input"},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "authentication required", nil) }, http.StatusUnauthorized, "authentication required"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "no such annotation", nil) }, http.StatusNotFound, "no such annotation"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "broken", nil) }, http.StatusInternalServerError, "broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)

			var envelope FailureEnvelope
			err := json.Unmarshal(w.Body.Bytes(), &envelope)
			require.NoError(t, err)
			assert.Equal(t, "failure", envelope.Status)
			assert.Equal(t, tt.reason, envelope.Reason)
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", apperrors.NotFound("no such annotation"), http.StatusNotFound},
		{"unauthorized", apperrors.Unauthorized("not allowed"), http.StatusUnauthorized},
		{"validation", apperrors.Validation("bad payload"), http.StatusBadRequest},
		{"unavailable", apperrors.Unavailable("index down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleError(w, tt.err, testLogger())

			assert.Equal(t, tt.status, w.Code)

			var envelope FailureEnvelope
			err := json.Unmarshal(w.Body.Bytes(), &envelope)
			require.NoError(t, err)
			assert.Equal(t, "failure", envelope.Status)
		})
	}
}

func TestHandleError_WrappedDomainError(t *testing.T) {
	w := httptest.NewRecorder()

	wrapped := apperrors.Wrap(errors.New("disk gone"), apperrors.CodeUnavailable, "store unreachable")
	HandleError(w, wrapped, testLogger())

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var envelope FailureEnvelope
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	require.NoError(t, err)
	// The underlying cause never leaks to the client.
	assert.Equal(t, "store unreachable", envelope.Reason)
}

func TestHandleError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.New("mystery"), testLogger())

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var envelope FailureEnvelope
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	require.NoError(t, err)
	assert.Equal(t, "internal server error", envelope.Reason)
}
