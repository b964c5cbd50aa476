package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/services"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst with a size cap and strict
// field checking.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return services.NewValidationError("request body is required", nil)
		}
		return services.NewValidationError("malformed request body", map[string]any{"_": err.Error()})
	}
	return nil
}

// idParam parses a numeric chi URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewValidationError("invalid "+name, map[string]any{name: "must be a positive integer"})
	}
	return id, nil
}

// actor returns the authenticated user or an UNAUTHORIZED error. The
// router guards mutating routes with RequireAuth already; this is the
// typed accessor for handler code.
func actor(r *http.Request) (*models.User, error) {
	user := middleware.Actor(r.Context())
	if user == nil {
		return nil, &services.ServiceError{
			Type:       "UNAUTHORIZED",
			Message:    "authentication required",
			StatusCode: http.StatusUnauthorized,
		}
	}
	return user, nil
}

// optionalInstanceScope reads the optional ?instance query parameter.
func optionalInstanceScope(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("instance")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, services.NewValidationError("invalid instance scope", map[string]any{"instance": "must be a positive integer"})
	}
	return &id, nil
}
