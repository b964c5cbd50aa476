package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"agora/internal/services"

	"go.uber.org/zap"
)

// Envelope is the uniform JSON response shape.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the serialized error payload.
type ErrorBody struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// Created writes a 201 envelope.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Redirect writes a redirect with an explicit status. Settings
// mutations use 303 so a POST lands on a GET.
func Redirect(w http.ResponseWriter, r *http.Request, location string, status int) {
	http.Redirect(w, r, location, status)
}

// Error maps a service error onto the envelope; unknown errors become
// opaque 500s so internals never leak to clients.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.GetStatusCode() >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
		write(w, svcErr.GetStatusCode(), Envelope{
			Success: false,
			Error: &ErrorBody{
				Type:    svcErr.Type,
				Message: svcErr.Message,
				Code:    svcErr.Code,
				Details: svcErr.Details,
			},
		})
		return
	}

	if logger != nil {
		logger.Error("unhandled error", zap.Error(err))
	}
	write(w, http.StatusInternalServerError, Envelope{
		Success: false,
		Error:   &ErrorBody{Type: "INTERNAL_ERROR", Message: "internal server error"},
	})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
