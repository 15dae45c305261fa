package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/aligned/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", apperror.ValidationFailed("candidateName", "candidate name is required"), http.StatusBadRequest, "validation_error"},
		{"unauthorized", apperror.Unauthorized("valid authentication required"), http.StatusUnauthorized, "unauthorized"},
		{"not found", apperror.NotFound("summary", "abc"), http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("getting: %w", apperror.NotFound("summary", "abc")), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("share token", "abc"), http.StatusConflict, "conflict"},
		{"code reuse", apperror.CodeUsed(), http.StatusConflict, "code_already_used"},
		{"upstream", apperror.Upstream("report generation timed out", errors.New("deadline")), http.StatusBadGateway, "upstream_error"},
		{"forbidden", apperror.Forbidden("nope"), http.StatusForbidden, "forbidden"},
		{"plain error", errors.New("pq: relation does not exist"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.wantType+`"`)
		})
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("sqlite: database is locked at /var/lib/aligned.db"))

	assert.NotContains(t, rec.Body.String(), "/var/lib")
	assert.Contains(t, rec.Body.String(), "An internal error occurred")
}

func TestWriteError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperror.ValidationFailed("email", "enter a valid email address"))

	assert.JSONEq(t, `{"error":"validation_error","message":"enter a valid email address","field":"email"}`, rec.Body.String())
}
