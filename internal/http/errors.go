package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xxomega77xx/googlepay/internal/paypal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

// respondRaw writes provider JSON exactly as it was received.
func respondRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleGatewayError converts the typed errors of the paypal package to HTTP
// status codes. Provider error bodies are passed on as details.
func handleGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr      *paypal.ConfigError
		authErr     *paypal.AuthError
		providerErr *paypal.ProviderError
		validErr    *paypal.ValidationError
	)

	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: "internal server error", Code: "internal_error"}

	switch {
	case errors.As(err, &validErr):
		status = http.StatusBadRequest
		resp = ErrorResponse{Error: validErr.Error(), Code: "invalid_argument"}
	case errors.As(err, &cfgErr):
		status = http.StatusInternalServerError
		resp = ErrorResponse{Error: "payment gateway is not configured", Code: "configuration_error"}
	case errors.As(err, &authErr):
		status = http.StatusBadGateway
		resp = ErrorResponse{Error: "payment provider authentication failed", Code: "auth_failed", Details: authErr.Body}
	case errors.As(err, &providerErr):
		resp = ErrorResponse{Error: providerErr.Error(), Code: "provider_error", Details: providerErr.Body}
		switch {
		case providerErr.NotFound():
			status = http.StatusNotFound
			resp.Code = "not_found"
		case providerErr.StatusCode >= 400 && providerErr.StatusCode < 500:
			status = http.StatusUnprocessableEntity
		default:
			status = http.StatusBadGateway
			resp.Code = "provider_unavailable"
		}
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", getRequestID(r.Context())),
			slog.Any("error", err))
	}
	respondJSON(w, status, resp)
}
