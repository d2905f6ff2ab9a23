package credit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/infrastructure/ledger"
	"github.com/credit-relay/internal/pkg/metrics"
)

// MinRefreshInterval bounds unforced polling to roughly 17 requests a minute.
const MinRefreshInterval = 3500 * time.Millisecond

// BalanceSource fetches a balance; nil means unknown.
type BalanceSource interface {
	Balance(ctx context.Context, q domain.BalanceQuery) (*float64, error)
}

// BalanceTracker throttles balance fetches for one query and honors the
// ledger's 429 backoff. The lock is held across the fetch so concurrent
// refreshes observe each other's timestamps.
type BalanceTracker struct {
	mu     sync.Mutex
	source BalanceSource
	query  domain.BalanceQuery
	now    func() time.Time

	balance          *float64
	lastSuccess      time.Time
	rateLimitedUntil time.Time
}

func NewBalanceTracker(source BalanceSource, q domain.BalanceQuery, now func() time.Time) *BalanceTracker {
	if now == nil {
		now = time.Now
	}
	return &BalanceTracker{source: source, query: q, now: now}
}

// Refresh fetches the balance unless a rate-limit window is open (always
// skipped) or the last success is under MinRefreshInterval old (skipped
// unless force). Skips return the cached value and no error.
func (t *BalanceTracker) Refresh(ctx context.Context, force bool) (domain.BalanceSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Before(t.rateLimitedUntil) {
		metrics.BalanceRefreshes.WithLabelValues("rate_limited").Inc()
		return t.snapshot(true), nil
	}
	if !force && !t.lastSuccess.IsZero() && now.Sub(t.lastSuccess) < MinRefreshInterval {
		metrics.BalanceRefreshes.WithLabelValues("skipped").Inc()
		return t.snapshot(true), nil
	}

	v, err := t.source.Balance(ctx, t.query)
	if err != nil {
		t.balance = nil
		var rl *ledger.RateLimitError
		if errors.As(err, &rl) {
			t.rateLimitedUntil = now.Add(rl.RetryAfter)
		}
		metrics.BalanceRefreshes.WithLabelValues("failed").Inc()
		return t.snapshot(false), err
	}
	t.balance = v
	t.lastSuccess = now
	t.rateLimitedUntil = time.Time{}
	metrics.BalanceRefreshes.WithLabelValues("fetched").Inc()
	return t.snapshot(false), nil
}

func (t *BalanceTracker) snapshot(skipped bool) domain.BalanceSnapshot {
	s := domain.BalanceSnapshot{Skipped: skipped}
	if t.balance != nil {
		v := *t.balance
		s.Balance = &v
	}
	if !t.lastSuccess.IsZero() {
		at := t.lastSuccess
		s.FetchedAt = &at
	}
	if t.now().Before(t.rateLimitedUntil) {
		until := t.rateLimitedUntil
		s.RateLimitedUntil = &until
	}
	return s
}
