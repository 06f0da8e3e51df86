package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := Unauthorized("not authorized to change annotation permissions")

	assert.True(t, Is(err, ErrUnauthorized))
	assert.False(t, Is(err, ErrNotFound))
}

func TestIs_MatchesThroughWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeUnavailable, "search index unreachable")

	assert.True(t, Is(err, ErrUnavailable))
	assert.ErrorContains(t, err, "search index unreachable")
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, cause, Unwrap(err))
}

func TestWithCause(t *testing.T) {
	base := NotFound("annotation not found")
	wrapped := base.WithCause(fmt.Errorf("key missing"))

	assert.True(t, Is(wrapped, ErrNotFound))
	assert.ErrorContains(t, wrapped, "key missing")
	// Original is untouched.
	assert.NotContains(t, base.Error(), "key missing")
}
