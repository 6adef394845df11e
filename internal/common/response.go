package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the response shape shared by the configuration endpoints.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteEnvelope renders an envelope whose statusCode mirrors the HTTP status.
func WriteEnvelope(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{
		StatusCode: status,
		Success:    status >= 200 && status < 300,
		Message:    message,
		Data:       data,
	})
}

// WriteEnvelopeError maps err onto an envelope. Only AppError messages reach
// the caller; anything else is reported as an internal server error.
func WriteEnvelopeError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		WriteEnvelope(w, http.StatusInternalServerError, InternalServerErrorMessage, nil)
		return
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := appErr.Message
	if message == "" || status >= http.StatusInternalServerError {
		message = InternalServerErrorMessage
	}
	WriteEnvelope(w, status, message, nil)
}
