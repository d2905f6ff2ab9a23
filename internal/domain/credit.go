package domain

import (
	"fmt"
	"math"
	"time"
)

// SpendRequest debits credit from a member.
type SpendRequest struct {
	MemberID         string  `json:"memberId" validate:"required"`
	ProductID        string  `json:"productId" validate:"required"`
	MembershipTierID string  `json:"membershipTierId" validate:"required"`
	Amount           float64 `json:"amount" validate:"required,gt=0"`
}

// BalanceQuery addresses a member balance on the ledger.
type BalanceQuery struct {
	MemberID         string `json:"memberId"`
	MembershipTierID string `json:"membershipTierId"`
	ProductID        string `json:"productId"`
}

// Key identifies the balance for throttling purposes.
func (q BalanceQuery) Key() string {
	return q.MemberID + "|" + q.MembershipTierID + "|" + q.ProductID
}

// HistoryQuery addresses one page of credit history. Zero Page and Limit
// mean "use the default".
type HistoryQuery struct {
	MemberID         string `json:"memberId"`
	MembershipTierID string `json:"membershipTierId"`
	ProductID        string `json:"productId"`
	Page             int    `json:"page,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

// HistoryEntry is a loosely-typed upstream history record.
type HistoryEntry map[string]any

func (e HistoryEntry) str(key string) string {
	switch v := e[key].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	}
	return ""
}

func (e HistoryEntry) ID() string          { return e.str("id") }
func (e HistoryEntry) Type() string        { return e.str("type") }
func (e HistoryEntry) Status() string      { return e.str("status") }
func (e HistoryEntry) WalletType() string  { return e.str("walletType") }
func (e HistoryEntry) ReferenceID() string { return e.str("referenceId") }

// Amount returns the signed amount; negative values are debits.
func (e HistoryEntry) Amount() (float64, bool) {
	v, ok := e["amount"].(float64)
	return v, ok
}

// CreatedAt parses createdAt as RFC 3339 when present.
func (e HistoryEntry) CreatedAt() (time.Time, bool) {
	s, ok := e["createdAt"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HistoryPage is one page of history as detected from the upstream shape.
// Optional metadata is nil when the upstream did not report it.
type HistoryPage struct {
	Items      []HistoryEntry `json:"items"`
	Total      int            `json:"total"`
	TotalPages *int           `json:"totalPages,omitempty"`
	Page       *int           `json:"page,omitempty"`
	Limit      *int           `json:"limit,omitempty"`
}

// BalanceSnapshot is the throttled view of a balance. A nil Balance means unknown, not zero.
type BalanceSnapshot struct {
	Balance          *float64   `json:"balance"`
	Skipped          bool       `json:"skipped"`
	FetchedAt        *time.Time `json:"fetchedAt,omitempty"`
	RateLimitedUntil *time.Time `json:"rateLimitedUntil,omitempty"`
}

// Deliverable is the product of a purchase, produced before any credit is spent.
type Deliverable struct {
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}
