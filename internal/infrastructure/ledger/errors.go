package ledger

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/credit-relay/internal/domain"
)

const defaultRetryAfter = 60 * time.Second

// HTTPError is a non-2xx ledger response. Body holds the upstream payload,
// JSON or text, trimmed.
type HTTPError struct {
	Op     string // "Credit spend", "Balance fetch", "History fetch"
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s failed: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += " - " + e.Body
	}
	return msg
}

func (e *HTTPError) Unwrap() error { return domain.ErrUpstream }

// RateLimitError is a 429 from the ledger.
type RateLimitError struct {
	HTTPError
	RetryAfter time.Duration
}

func (e *RateLimitError) Unwrap() []error {
	return []error{domain.ErrRateLimited, &e.HTTPError}
}

// retryAfter reads Retry-After as delta seconds or an HTTP date. Anything
// missing or unparseable falls back to 60 seconds.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return defaultRetryAfter
		}
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}
