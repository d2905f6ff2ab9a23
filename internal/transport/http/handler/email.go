package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credit-relay/internal/application/mailrelay"
	"github.com/credit-relay/internal/domain"
	"github.com/go-chi/chi/v5"
)

type previewSource interface {
	Get(id string) ([]byte, bool)
}

// EmailHandler serves the OTP, verify-link and SMTP diagnostic endpoints.
type EmailHandler struct {
	svc      mailrelay.Service
	previews previewSource
}

// NewEmailHandler builds the handler. previews may be nil when the preview
// outbox is not held in memory.
func NewEmailHandler(svc mailrelay.Service, previews previewSource) *EmailHandler {
	return &EmailHandler{svc: svc, previews: previews}
}

type emailRequest struct {
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Code  codeString `json:"code"`
}

// codeString accepts the OTP as either a JSON string or a number.
type codeString string

func (c *codeString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = codeString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = codeString(n.String())
	return nil
}

func (h *EmailHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, EmailEnvelope{Message: err.Error()})
		return
	}
	rcpt, err := h.svc.SendOTP(r.Context(), req.Email, req.Name)
	h.writeSent(w, rcpt, err)
}

func (h *EmailHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, EmailEnvelope{Message: err.Error()})
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), req.Email, string(req.Code)); err != nil {
		writeJSON(w, statusFor(err), EmailEnvelope{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, EmailEnvelope{OK: true})
}

func (h *EmailHandler) SendVerifyLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, EmailEnvelope{Message: err.Error()})
		return
	}
	rcpt, err := h.svc.SendVerifyLink(r.Context(), req.Email, req.Name, requestOrigin(r))
	h.writeSent(w, rcpt, err)
}

func (h *EmailHandler) ValidateLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, err := h.svc.ValidateLink(r.Context(), q.Get("token"), q.Get("email"))
	if err != nil {
		writeJSON(w, statusFor(err), EmailEnvelope{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, EmailEnvelope{OK: true, Email: email})
}

func (h *EmailHandler) VerifySMTP(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifySMTP(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, EmailEnvelope{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, EmailEnvelope{OK: true})
}

// Preview renders a message captured by the in-memory outbox.
func (h *EmailHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.previews == nil {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}
	page, ok := h.previews.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (h *EmailHandler) writeSent(w http.ResponseWriter, rcpt domain.Receipt, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrBadRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, MessageEnvelope{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, EmailEnvelope{OK: true, PreviewURL: rcpt.PreviewURL})
}

// requestOrigin is the Origin header, or the scheme and host the request
// arrived on. Both are client controlled; deployments outside development set
// APP_BASE_URL so links never derive from them.
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
