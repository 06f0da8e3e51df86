// Package response provides standardized HTTP response formatting and error handling utilities.
package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/annotateapp/annotate-server/internal/errors"
)

// FailureEnvelope is the wire shape of every error response.
type FailureEnvelope struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// JSON writes a JSON response with the given status code using json/v2.
// Success payloads are written as-is, without an envelope.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	// json/v2 MarshalWrite doesn't add a newline, but that's fine for HTTP responses.
	if err := json.MarshalWrite(w, data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a created response (201 Created).
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// NoContent writes a no content response (204 No Content).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Failure writes an error response with the given status code.
func Failure(w http.ResponseWriter, status int, reason string, logger *slog.Logger) {
	JSON(w, status, FailureEnvelope{Status: "failure", Reason: reason}, logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, reason string, logger *slog.Logger) {
	Failure(w, http.StatusBadRequest, reason, logger)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, reason string, logger *slog.Logger) {
	Failure(w, http.StatusUnauthorized, reason, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, reason string, logger *slog.Logger) {
	Failure(w, http.StatusNotFound, reason, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, reason string, logger *slog.Logger) {
	Failure(w, http.StatusInternalServerError, reason, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain errors carry their own status codes, unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		Failure(w, domainErr.HTTPStatus(), domainErr.Message, logger)
		return
	}

	// Unknown error = 500
	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}
