package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/ledger"
)

// Deliverable kinds.
const (
	KindImage = "image"
	KindMusic = "music"
)

// Ledger is the credit ledger client.
type Ledger interface {
	BalanceSource
	HistorySource
	Spend(ctx context.Context, req domain.SpendRequest) (json.RawMessage, error)
}

// Producer makes a deliverable. It must not spend credit.
type Producer interface {
	Produce(ctx context.Context) (*domain.Deliverable, error)
}

// Account is the ledger identity purchases are charged to.
type Account struct {
	MemberID         string
	MembershipTierID string
	BalanceProductID string
	SpendAmount      float64
	HistoryLimit     int
}

// AccountFromConfig reads the ledger identity from cfg.
func AccountFromConfig(cfg config.LedgerConfig) Account {
	return Account{
		MemberID:         cfg.MemberID,
		MembershipTierID: cfg.MembershipTierID,
		BalanceProductID: cfg.ProductBalance,
		SpendAmount:      cfg.SpendAmount,
		HistoryLimit:     cfg.HistoryLimit,
	}
}

// Product binds a deliverable kind to its ledger product.
type Product struct {
	ProductID string
	Producer  Producer
}

// HistoryView is one page plus the pagination decision.
type HistoryView struct {
	*domain.HistoryPage
	HasMore  bool `json:"hasMore"`
	NextPage int  `json:"nextPage,omitempty"`
}

// PurchaseResult reports a completed purchase. Balance and History are
// best-effort refreshes and may be empty when those calls failed.
type PurchaseResult struct {
	Deliverable *domain.Deliverable    `json:"deliverable"`
	Spend       json.RawMessage        `json:"spend,omitempty"`
	Balance     domain.BalanceSnapshot `json:"balance"`
	History     *HistoryView           `json:"history,omitempty"`
}

type Service interface {
	Balance(ctx context.Context, force bool) (domain.BalanceSnapshot, error)
	History(ctx context.Context, page, limit int) (*HistoryView, error)
	HistoryAll(ctx context.Context) ([]domain.HistoryEntry, error)
	Spend(ctx context.Context, productID string, amount float64) (json.RawMessage, error)
	// Purchase produces the deliverable first and spends only once it exists.
	Purchase(ctx context.Context, kind string) (*PurchaseResult, error)
}

type service struct {
	ledger   Ledger
	account  Account
	products map[string]Product
	now      func() time.Time

	mu       sync.Mutex
	trackers map[string]*BalanceTracker
}

func NewService(l Ledger, account Account, products map[string]Product, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	if account.HistoryLimit <= 0 {
		account.HistoryLimit = ledger.DefaultLimit
	}
	return &service{
		ledger:   l,
		account:  account,
		products: products,
		now:      now,
		trackers: make(map[string]*BalanceTracker),
	}
}

func (s *service) balanceQuery() domain.BalanceQuery {
	return domain.BalanceQuery{
		MemberID:         s.account.MemberID,
		MembershipTierID: s.account.MembershipTierID,
		ProductID:        s.account.BalanceProductID,
	}
}

func (s *service) tracker(q domain.BalanceQuery) *BalanceTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[q.Key()]
	if !ok {
		t = NewBalanceTracker(s.ledger, q, s.now)
		s.trackers[q.Key()] = t
	}
	return t
}

func (s *service) Balance(ctx context.Context, force bool) (domain.BalanceSnapshot, error) {
	return s.tracker(s.balanceQuery()).Refresh(ctx, force)
}

func (s *service) historyQuery(page, limit int) domain.HistoryQuery {
	if page <= 0 {
		page = ledger.DefaultPage
	}
	if limit <= 0 {
		limit = s.account.HistoryLimit
	}
	return domain.HistoryQuery{
		MemberID:         s.account.MemberID,
		MembershipTierID: s.account.MembershipTierID,
		ProductID:        s.account.BalanceProductID,
		Page:             page,
		Limit:            limit,
	}
}

func (s *service) History(ctx context.Context, page, limit int) (*HistoryView, error) {
	q := s.historyQuery(page, limit)
	p, err := s.ledger.History(ctx, q)
	if err != nil {
		return nil, err
	}
	v := &HistoryView{HistoryPage: p, HasMore: HasMore(p, q.Limit, q.Page == 1)}
	if v.HasMore {
		v.NextPage = q.Page + 1
	}
	return v, nil
}

func (s *service) HistoryAll(ctx context.Context) ([]domain.HistoryEntry, error) {
	return LoadAll(ctx, s.ledger, s.historyQuery(1, 0))
}

func (s *service) Spend(ctx context.Context, productID string, amount float64) (json.RawMessage, error) {
	if amount <= 0 {
		amount = s.account.SpendAmount
	}
	if productID == "" {
		productID = s.account.BalanceProductID
	}
	return s.ledger.Spend(ctx, domain.SpendRequest{
		MemberID:         s.account.MemberID,
		ProductID:        productID,
		MembershipTierID: s.account.MembershipTierID,
		Amount:           amount,
	})
}

func (s *service) Purchase(ctx context.Context, kind string) (*PurchaseResult, error) {
	prod, ok := s.products[kind]
	if !ok {
		return nil, domain.BadInput(fmt.Sprintf("unknown deliverable kind %q", kind))
	}
	d, err := prod.Producer.Produce(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDeliverable, err)
	}
	d.Kind = kind

	payload, err := s.Spend(ctx, prod.ProductID, s.account.SpendAmount)
	if err != nil {
		return nil, err
	}

	res := &PurchaseResult{Deliverable: d, Spend: payload}
	snap, err := s.Balance(ctx, true)
	if err != nil {
		slog.Warn("balance refresh after purchase failed", "kind", kind, "err", err)
	}
	res.Balance = snap
	if h, err := s.History(ctx, 1, 0); err != nil {
		slog.Warn("history refresh after purchase failed", "kind", kind, "err", err)
	} else {
		res.History = h
	}
	return res, nil
}
