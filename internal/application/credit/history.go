package credit

import (
	"context"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/ledger"
)

// MaxLoadAllPages caps LoadAll regardless of what the upstream reports.
const MaxLoadAllPages = 50

// HistorySource fetches one history page.
type HistorySource interface {
	History(ctx context.Context, q domain.HistoryQuery) (*domain.HistoryPage, error)
}

// HasMore decides whether another page exists after p. When the upstream
// reports both page and totalPages those decide; otherwise a full page means
// more, except that on the first page a total at or below limit means done.
// A zero total counts as unknown.
func HasMore(p *domain.HistoryPage, limit int, first bool) bool {
	if p.Page != nil && p.TotalPages != nil {
		return *p.Page < *p.TotalPages
	}
	if len(p.Items) < limit {
		return false
	}
	if first && p.Total > 0 {
		return limit < p.Total
	}
	return true
}

// LoadAll fetches pages sequentially from page 1 while HasMore holds, up to
// MaxLoadAllPages fetches, and concatenates their items in page order.
func LoadAll(ctx context.Context, src HistorySource, q domain.HistoryQuery) ([]domain.HistoryEntry, error) {
	if q.Limit <= 0 {
		q.Limit = ledger.DefaultLimit
	}
	items := []domain.HistoryEntry{}
	for page := 1; page <= MaxLoadAllPages; page++ {
		q.Page = page
		p, err := src.History(ctx, q)
		if err != nil {
			return nil, err
		}
		items = append(items, p.Items...)
		if !HasMore(p, q.Limit, page == 1) {
			break
		}
	}
	return items, nil
}
