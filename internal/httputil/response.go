package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/dealflow/platform-server-go/internal/errors"
)

// Envelope is the uniform response shape for API endpoints.
type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
	Details any                 `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteData writes a successful {success: true, data: ...} response.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteMessage writes a successful {success: true, message: ...} response.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: true, Message: message})
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteJSON(w, StatusFromCode(appErr.Code), Envelope{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeInvalidState:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case apperrors.ErrCodeConflict:
		return http.StatusConflict

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 502 Bad Gateway
	case apperrors.ErrCodeTokenExchange,
		apperrors.ErrCodeTokenRefresh,
		apperrors.ErrCodeProfileFetch,
		apperrors.ErrCodeExternal,
		apperrors.ErrCodeScrape:
		return http.StatusBadGateway

	// 500 Internal Server Error
	case apperrors.ErrCodeConfiguration,
		apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
