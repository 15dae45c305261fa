package handler

// RESPONSE HELPERS:
// Every JSON endpoint answers through writeJSON and writeError, so errors
// always have the same shape:
//
//	{"error": "not_found", "message": "summary not found with id abc123"}
//
// Page handlers use statusFor and userMessage for the same mapping and
// render the message into the template instead.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
)

// maxBodyBytes bounds JSON request bodies. The largest legitimate body is a
// summary with three long notes fields.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	// Summary is set when generation failed after the record was stored,
	// so the client can still link to it.
	Summary *model.Summary `json:"summary,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and writes it.
//
// Ownership failures arrive as ErrNotFound and stay 404: a summary owned by
// someone else is indistinguishable from one that does not exist.
func writeError(w http.ResponseWriter, err error) {
	writeErrorWith(w, err, nil)
}

func writeErrorWith(w http.ResponseWriter, err error, summary *model.Summary) {
	status, errorType := classify(err)
	resp := ErrorResponse{Error: errorType, Message: userMessage(err), Summary: summary}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}

// classify is the single place where domain errors become status codes.
func classify(err error) (int, string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, "internal_error"
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrCodeUsed):
		return http.StatusConflict, "code_already_used"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func statusFor(err error) int {
	status, _ := classify(err)
	return status
}

// userMessage never exposes internal error text: SQL, file paths and
// upstream bodies stay in the logs.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && statusFor(err) != http.StatusInternalServerError {
		return appErr.Message
	}
	return "An internal error occurred"
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must be %d bytes or less", maxBodyBytes))
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
