package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dealflow/platform-server-go/internal/errors"
)

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"key": "value"}, body["data"])
}

func TestWriteError(t *testing.T) {
	t.Run("app error maps to its status and code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.NotFound("integration"))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "NOT_FOUND", body["code"])
		assert.Equal(t, "integration not found", body["error"])
	})

	t.Run("unknown error becomes a 500 without leaking its message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "INTERNAL_ERROR", body["code"])
		assert.NotContains(t, body["error"], "pq:")
	})
}

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code   apperrors.ErrorCode
		status int
	}{
		{apperrors.ErrCodeValidation, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidInput, http.StatusBadRequest},
		{apperrors.ErrCodeMissingRequired, http.StatusBadRequest},
		{apperrors.ErrCodeInvalidState, http.StatusBadRequest},
		{apperrors.ErrCodeUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrCodeForbidden, http.StatusForbidden},
		{apperrors.ErrCodeNotFound, http.StatusNotFound},
		{apperrors.ErrCodeConflict, http.StatusConflict},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeTokenExchange, http.StatusBadGateway},
		{apperrors.ErrCodeTokenRefresh, http.StatusBadGateway},
		{apperrors.ErrCodeProfileFetch, http.StatusBadGateway},
		{apperrors.ErrCodeScrape, http.StatusBadGateway},
		{apperrors.ErrCodeConfiguration, http.StatusInternalServerError},
		{apperrors.ErrCodeDatabase, http.StatusInternalServerError},
		{apperrors.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFromCode(tc.code))
		})
	}
}
