// Package ledger talks to the external credit ledger: spend, balance and the
// paginated credit history.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/pkg/metrics"
)

const (
	spendPath   = "/credit/v1/credit/customer/spend"
	balancePath = "/credit/v1/credit/customer/balance"

	maxBody = 1 << 20
)

// DefaultHistoryPaths are probed in order when no override is configured.
var DefaultHistoryPaths = []string{
	"/credit/v1/credit/customer/paginate-credit-history",
	"/v1/credit/customer/paginate-credit-history",
}

// Client is safe for concurrent use.
type Client struct {
	baseURL         string
	apiKey          string
	historyOverride string
	historyPaths    []string
	http            *http.Client
	now             func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default client built from the configured timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithHistoryPaths(paths ...string) Option {
	return func(c *Client) { c.historyPaths = paths }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(cfg config.LedgerConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		historyOverride: strings.TrimSpace(cfg.HistoryEndpoint),
		historyPaths:    DefaultHistoryPaths,
		http:            &http.Client{Timeout: cfg.Timeout},
		now:             time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) credential() error {
	if c.apiKey == "" {
		return fmt.Errorf("LEDGER_API_KEY is missing: %w", domain.ErrMissingCredential)
	}
	return nil
}

// Spend debits req.Amount. It is attempted once; the ledger offers no
// idempotency key, so a retry could charge twice.
func (c *Client) Spend(ctx context.Context, req domain.SpendRequest) (json.RawMessage, error) {
	if err := c.credential(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, "spend", http.MethodPost, c.baseURL+spendPath, body)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, res.failure("Credit spend", c.now())
	}
	if !res.isJSON() || len(bytes.TrimSpace(res.body)) == 0 {
		return nil, nil
	}
	return json.RawMessage(res.body), nil
}

// Balance returns the member balance, or nil when the response carries no
// recognizable numeric field.
func (c *Client) Balance(ctx context.Context, q domain.BalanceQuery) (*float64, error) {
	if err := c.credential(); err != nil {
		return nil, err
	}
	u := c.baseURL + balancePath + "?" + encodeQuery([][2]string{
		{"productId", q.ProductID},
		{"membershipTierId", q.MembershipTierID},
		{"memberId", q.MemberID},
	})
	res, err := c.do(ctx, "balance", http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, res.failure("Balance fetch", c.now())
	}
	tree, err := res.tree()
	if err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	return ExtractBalance(tree), nil
}

// History fetches one page, probing candidate endpoints in order. A 404 moves
// on to the next candidate; any other failure aborts the probe.
func (c *Client) History(ctx context.Context, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	if err := c.credential(); err != nil {
		return nil, err
	}
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	urls, err := c.historyURLs(q)
	if err != nil {
		return nil, err
	}
	for _, u := range urls {
		res, err := c.do(ctx, "history", http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if res.status == http.StatusNotFound {
			continue
		}
		if !res.ok() {
			return nil, res.failure("History fetch", c.now())
		}
		tree, err := res.tree()
		if err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		return ParseHistory(tree), nil
	}
	example := c.baseURL + DefaultHistoryPaths[0]
	if len(c.historyPaths) > 0 {
		example = c.resolve(c.historyPaths[0])
	}
	return nil, fmt.Errorf("History fetch failed: 404 - endpoint not found. Configure LEDGER_HISTORY_ENDPOINT to the correct path (e.g. %s): %w",
		example, domain.ErrEndpointNotFound)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

func (r *response) isJSON() bool {
	mt, _, _ := mime.ParseMediaType(r.header.Get("Content-Type"))
	return strings.Contains(mt, "json")
}

// tree decodes a JSON body into a generic tree; non-JSON bodies yield nil.
func (r *response) tree() (any, error) {
	if !r.isJSON() || len(bytes.TrimSpace(r.body)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *response) failure(op string, now time.Time) error {
	he := HTTPError{Op: op, Status: r.status, Body: strings.TrimSpace(string(r.body))}
	if r.isJSON() && he.Body == "" {
		he.Body = "{}"
	}
	if r.status == http.StatusTooManyRequests {
		return &RateLimitError{HTTPError: he, RetryAfter: retryAfter(r.header, now)}
	}
	return &he
}

func (c *Client) do(ctx context.Context, op, method, u string, body []byte) (*response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.LedgerLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LedgerRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		metrics.LedgerRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	metrics.LedgerRequests.WithLabelValues(op, fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}
