package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mwrks/plume"
)

// ErrorResponse is the uniform error envelope. Errors carries per-field
// messages on multi-field validation failures and is omitted otherwise.
type ErrorResponse struct {
	Msg    string   `json:"msg"`
	Errors []string `json:"errors,omitempty"`
}

// WriteError writes a JSON error envelope.
func WriteError(w http.ResponseWriter, code int, msg string, fields ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Msg: msg, Errors: fields}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError maps a service error to a status code and envelope. The
// user-facing message travels inside *plume.Error; anything else is an
// unexpected failure and surfaces as a generic 500 with the detail logged
// server-side only.
func HandleError(w http.ResponseWriter, err error) {
	var domainErr *plume.Error
	if errors.As(err, &domainErr) {
		WriteError(w, statusFor(domainErr.Kind), domainErr.Msg, domainErr.Fields...)
		return
	}

	if errors.Is(err, plume.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if errors.Is(err, plume.ErrUnauthenticated) {
		WriteError(w, http.StatusUnauthorized, "Token invalid")
		return
	}

	slog.Error("request error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Server error")
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, plume.ErrInvalidInput),
		errors.Is(kind, plume.ErrInvalidID),
		errors.Is(kind, plume.ErrConflict),
		errors.Is(kind, plume.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(kind, plume.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(kind, plume.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, plume.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
