package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/credit-relay/internal/domain"
	"github.com/credit-relay/internal/pkg/metrics"
)

// Dispatcher sends through the primary relay and, when allowed, falls back to
// a preview transport. Each message gets a single attempt.
type Dispatcher struct {
	primary      Transport
	primaryErr   error // set when the relay could not be configured
	preview      Transport
	allowPreview bool
	from         string
}

// NewDispatcher builds a dispatcher. primary may be nil when configuration
// failed; primaryErr then explains why and is reported on every send.
func NewDispatcher(primary Transport, primaryErr error, preview Transport, allowPreview bool, from string) *Dispatcher {
	if primary == nil && primaryErr == nil {
		primaryErr = fmt.Errorf("smtp relay not configured: %w", domain.ErrMissingCredential)
	}
	return &Dispatcher{
		primary:      primary,
		primaryErr:   primaryErr,
		preview:      preview,
		allowPreview: allowPreview,
		from:         from,
	}
}

// VerifyPrimary checks only the configured relay, never the preview.
func (d *Dispatcher) VerifyPrimary(ctx context.Context) error {
	if d.primary == nil {
		return d.primaryErr
	}
	return d.primary.Verify(ctx)
}

// Send delivers msg through the relay. Only a failed relay check leads to the
// preview outbox; a relay that verifies but then rejects the message is an error.
func (d *Dispatcher) Send(ctx context.Context, msg domain.Message) (domain.Receipt, error) {
	if msg.From == "" {
		msg.From = d.from
	}
	if err := d.VerifyPrimary(ctx); err != nil {
		return d.fallback(ctx, msg, err)
	}
	rc, err := d.primary.Send(ctx, msg)
	if err != nil {
		metrics.MailFailures.Inc()
		return domain.Receipt{}, fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, err)
	}
	metrics.MailSent.WithLabelValues("smtp").Inc()
	return rc, nil
}

func (d *Dispatcher) fallback(ctx context.Context, msg domain.Message, cause error) (domain.Receipt, error) {
	if !d.allowPreview || d.preview == nil || errors.Is(cause, context.Canceled) {
		metrics.MailFailures.Inc()
		return domain.Receipt{}, fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, cause)
	}
	slog.Warn("smtp relay unavailable, using preview outbox", "to", msg.To, "err", cause)
	rc, err := d.preview.Send(ctx, msg)
	if err != nil {
		metrics.MailFailures.Inc()
		return domain.Receipt{}, fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, errors.Join(cause, err))
	}
	metrics.MailSent.WithLabelValues("preview").Inc()
	return rc, nil
}
