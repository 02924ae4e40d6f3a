package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsCreated tracks ledgers opened from accepted negotiations
	TransactionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecosetu_transactions_created_total",
			Help: "Total number of transactions created",
		},
	)

	// StatusAppends tracks ledger appends per new status
	StatusAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosetu_ledger_appends_total",
			Help: "Total number of status entries appended",
		},
		[]string{"status"},
	)

	// AppendConflicts tracks optimistic version conflicts that forced a retry
	AppendConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecosetu_ledger_append_conflicts_total",
			Help: "Total number of append version conflicts",
		},
	)

	// PartialFailures tracks side effects of a create that did not apply
	PartialFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosetu_partial_failures_total",
			Help: "Total number of create side effects that failed",
		},
		[]string{"effect"},
	)

	// ChainBreaks tracks broken links found by verification
	ChainBreaks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosetu_ledger_chain_breaks_total",
			Help: "Total number of broken ledger entries detected",
		},
		[]string{"reason"},
	)

	// AuditRuns tracks completed auditor passes
	AuditRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecosetu_audit_runs_total",
			Help: "Total number of auditor passes",
		},
	)

	// AuditLastBroken is the number of broken transactions seen by the last audit
	AuditLastBroken = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecosetu_audit_last_broken_transactions",
			Help: "Broken transactions found by the most recent audit",
		},
	)

	// EventsEmitted tracks ledger events per sink and outcome
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosetu_events_emitted_total",
			Help: "Total number of ledger events emitted",
		},
		[]string{"sink", "result"},
	)

	// HTTPRequests tracks API requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecosetu_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPLatency tracks API request latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecosetu_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// DBConnectionPoolUsage is the share of open connections out of the pool maximum
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecosetu_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
