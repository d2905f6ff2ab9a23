// Package metrics holds the process-wide Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerRequests counts calls to the credit ledger by operation and outcome.
	LedgerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit_relay",
		Subsystem: "ledger",
		Name:      "requests_total",
		Help:      "Credit ledger requests by operation and result.",
	}, []string{"op", "result"})

	// LedgerLatency observes ledger round-trip time.
	LedgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "credit_relay",
		Subsystem: "ledger",
		Name:      "request_seconds",
		Help:      "Credit ledger request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	// MailSent counts delivered messages by transport (smtp or preview).
	MailSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit_relay",
		Subsystem: "mail",
		Name:      "sent_total",
		Help:      "Messages delivered by transport.",
	}, []string{"transport"})

	MailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "credit_relay",
		Subsystem: "mail",
		Name:      "failures_total",
		Help:      "Messages that no transport accepted.",
	})

	// BalanceRefreshes counts balance tracker decisions: fetched, skipped,
	// rate_limited or failed.
	BalanceRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credit_relay",
		Subsystem: "balance",
		Name:      "refreshes_total",
		Help:      "Balance refresh attempts by outcome.",
	}, []string{"outcome"})
)
