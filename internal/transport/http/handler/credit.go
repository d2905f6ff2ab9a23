package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/credit-relay/internal/application/credit"
	"github.com/credit-relay/internal/domain"
	"github.com/go-chi/chi/v5"
)

// CreditHandler exposes the member's ledger balance, history and purchases.
type CreditHandler struct {
	svc credit.Service
}

func NewCreditHandler(svc credit.Service) *CreditHandler { return &CreditHandler{svc: svc} }

type spendRequest struct {
	ProductID string  `json:"productId"`
	Amount    float64 `json:"amount"`
}

type spendEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
}

type historyAllEnvelope struct {
	Items []domain.HistoryEntry `json:"items"`
	Total int                   `json:"total"`
}

func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	snap, err := h.svc.Balance(r.Context(), force)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *CreditHandler) History(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	v, err := h.svc.History(r.Context(), page, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CreditHandler) HistoryAll(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.HistoryAll(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyAllEnvelope{Items: items, Total: len(items)})
}

func (h *CreditHandler) Spend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	payload, err := h.svc.Spend(r.Context(), req.ProductID, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spendEnvelope{OK: true, Result: payload})
}

func (h *CreditHandler) Generate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Purchase(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
