package httpapi

import (
	"encoding/json"
	"net/http"

	"classd/internal/holder"
	"classd/internal/registry"
	"classd/internal/service"
	"classd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// errorStatus maps well-known domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest
	case registry.IsNotFound(err):
		return http.StatusNotFound
	case holder.IsNoActiveModel(err):
		return http.StatusServiceUnavailable
	case holder.IsSwitchTimeout(err):
		return http.StatusGatewayTimeout
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	// Load failures and backend inference failures are server-side faults.
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
