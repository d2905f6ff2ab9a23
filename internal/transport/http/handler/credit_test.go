package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/credit-relay/internal/application/credit"
	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCreditSvc struct{ mock.Mock }

func (m *mockCreditSvc) Balance(ctx context.Context, force bool) (domain.BalanceSnapshot, error) {
	args := m.Called(ctx, force)
	return args.Get(0).(domain.BalanceSnapshot), args.Error(1)
}
func (m *mockCreditSvc) History(ctx context.Context, page, limit int) (*credit.HistoryView, error) {
	args := m.Called(ctx, page, limit)
	v, _ := args.Get(0).(*credit.HistoryView)
	return v, args.Error(1)
}
func (m *mockCreditSvc) HistoryAll(ctx context.Context) ([]domain.HistoryEntry, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]domain.HistoryEntry)
	return v, args.Error(1)
}
func (m *mockCreditSvc) Spend(ctx context.Context, productID string, amount float64) (json.RawMessage, error) {
	args := m.Called(ctx, productID, amount)
	v, _ := args.Get(0).(json.RawMessage)
	return v, args.Error(1)
}
func (m *mockCreditSvc) Purchase(ctx context.Context, kind string) (*credit.PurchaseResult, error) {
	args := m.Called(ctx, kind)
	v, _ := args.Get(0).(*credit.PurchaseResult)
	return v, args.Error(1)
}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestCreditBalance_Force(t *testing.T) {
	v := 12.5
	svc := &mockCreditSvc{}
	svc.On("Balance", mock.Anything, true).Return(domain.BalanceSnapshot{Balance: &v}, nil)

	rr := get(NewCreditHandler(svc).Balance, "/?force=true")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"balance":12.5,"skipped":false}`, rr.Body.String())
}

func TestCreditBalance_RateLimited(t *testing.T) {
	rl := &ledger.RateLimitError{HTTPError: ledger.HTTPError{Op: "Balance fetch", Status: 429}, RetryAfter: 30 * time.Second}
	svc := &mockCreditSvc{}
	svc.On("Balance", mock.Anything, false).Return(domain.BalanceSnapshot{}, rl)

	rr := get(NewCreditHandler(svc).Balance, "/")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	assert.Equal(t, float64(429), decodeBody(t, rr)["upstreamStatus"])
}

func TestCreditBalance_MissingCredentialIs500(t *testing.T) {
	svc := &mockCreditSvc{}
	svc.On("Balance", mock.Anything, false).
		Return(domain.BalanceSnapshot{}, fmt.Errorf("LEDGER_API_KEY is missing: %w", domain.ErrMissingCredential))
	rr := get(NewCreditHandler(svc).Balance, "/")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCreditHistory_PassesPaging(t *testing.T) {
	page := 2
	svc := &mockCreditSvc{}
	svc.On("History", mock.Anything, 2, 5).Return(&credit.HistoryView{
		HistoryPage: &domain.HistoryPage{Items: []domain.HistoryEntry{{"id": "x"}}, Total: 11, Page: &page},
		HasMore:     true,
		NextPage:    3,
	}, nil)

	rr := get(NewCreditHandler(svc).History, "/?page=2&limit=5")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["hasMore"])
	assert.Equal(t, float64(3), body["nextPage"])
	assert.Equal(t, float64(11), body["total"])
}

func TestCreditHistory_EndpointNotFoundIs502(t *testing.T) {
	svc := &mockCreditSvc{}
	svc.On("History", mock.Anything, 0, 0).Return(nil, fmt.Errorf("set LEDGER_HISTORY_ENDPOINT: %w", domain.ErrEndpointNotFound))
	rr := get(NewCreditHandler(svc).History, "/")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestCreditHistoryAll(t *testing.T) {
	svc := &mockCreditSvc{}
	svc.On("HistoryAll", mock.Anything).Return([]domain.HistoryEntry{{"id": "a"}, {"id": "b"}}, nil)
	rr := get(NewCreditHandler(svc).HistoryAll, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), decodeBody(t, rr)["total"])
}

func TestCreditSpend(t *testing.T) {
	svc := &mockCreditSvc{}
	svc.On("Spend", mock.Anything, "image-gen", 3.0).Return(json.RawMessage(`{"id":"tx1"}`), nil)
	rr := postJSON(t, NewCreditHandler(svc).Spend, `{"productId":"image-gen","amount":3}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"result":{"id":"tx1"}}`, rr.Body.String())
}

func TestCreditSpend_UpstreamFailureCarriesStatus(t *testing.T) {
	svc := &mockCreditSvc{}
	svc.On("Spend", mock.Anything, "", 0.0).Return(nil, &ledger.HTTPError{Op: "Credit spend", Status: 400, Body: "insufficient"})
	rr := postJSON(t, NewCreditHandler(svc).Spend, `{}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, float64(400), decodeBody(t, rr)["upstreamStatus"])
}

func TestCreditSpend_NegativeAmount(t *testing.T) {
	rr := postJSON(t, NewCreditHandler(&mockCreditSvc{}).Spend, `{"amount":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreditGenerate(t *testing.T) {
	svc := &mockCreditSvc{}
	svc.On("Purchase", mock.Anything, "image").
		Return(&credit.PurchaseResult{Deliverable: &domain.Deliverable{Kind: "image", URL: "http://img"}}, nil)
	svc.On("Purchase", mock.Anything, "video").Return(nil, domain.BadInput(`unknown deliverable kind "video"`))
	svc.On("Purchase", mock.Anything, "music").Return(nil, fmt.Errorf("%w: no candidate reachable", domain.ErrDeliverable))

	r := chi.NewRouter()
	r.Post("/generate/{kind}", NewCreditHandler(svc).Generate)
	call := func(kind string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/generate/"+kind, nil))
		return rr
	}

	assert.Equal(t, http.StatusOK, call("image").Code)
	assert.Equal(t, http.StatusBadRequest, call("video").Code)
	assert.Equal(t, http.StatusBadGateway, call("music").Code)
}
