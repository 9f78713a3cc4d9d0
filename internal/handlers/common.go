package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"townconnect-backend/internal/apperr"
	"townconnect-backend/internal/middleware"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

// respondJSON writes v with the given status code
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// handleError maps service errors onto status codes
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, apperr.ErrForbidden):
		respondError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case apperr.IsBackend(err):
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Backend failure")
		respondError(w, "storage backend unavailable", http.StatusBadGateway)
	default:
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into v, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// currentUser returns the authenticated user ID
func currentUser(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}
