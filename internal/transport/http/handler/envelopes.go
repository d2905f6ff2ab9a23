package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/ledger"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// EmailEnvelope wraps mail relay responses. OK is always present.
type EmailEnvelope struct {
	OK         bool   `json:"ok"`
	PreviewURL string `json:"previewUrl,omitempty"`
	Email      string `json:"email,omitempty"`
	Message    string `json:"message,omitempty"`
}

// UpstreamEnvelope reports a failed ledger call.
type UpstreamEnvelope struct {
	Message        string `json:"message"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrNoRecord),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrMismatch),
		errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream),
		errors.Is(err, domain.ErrEndpointNotFound),
		errors.Is(err, domain.ErrDeliverable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError reports a credit or purchase failure, passing the ledger's
// own status and Retry-After through when there is one.
func writeLedgerError(w http.ResponseWriter, err error) {
	env := UpstreamEnvelope{Message: err.Error()}
	var rl *ledger.RateLimitError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
	}
	var he *ledger.HTTPError
	if errors.As(err, &he) {
		env.UpstreamStatus = he.Status
	}
	writeJSON(w, statusFor(err), env)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.BadInput("invalid request body")
	}
	return nil
}
