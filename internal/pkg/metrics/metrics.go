// Package metrics defines and registers all custom Prometheus metrics for the
// user directory. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry on package init via
// promauto; HTTP request metrics come from echoprometheus in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "directory"

// ── Identity metrics ──────────────────────────────────────────────────────────

// UsersCreatedTotal counts successfully registered users.
var UsersCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of users created.",
	},
)

// AuthAttemptsTotal counts password checks.
// Label:
//   - result: "success" or "failure" (failure reasons are deliberately not split)
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of password authentication attempts, by result.",
	},
	[]string{"result"},
)

// StoreErrorsTotal counts store failures surfaced by the identity service.
// Label:
//   - op: the service operation (e.g. "create user", "delete user")
var StoreErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Total number of identity store failures, by operation.",
	},
	[]string{"op"},
)

// ── Access control metrics ────────────────────────────────────────────────────

// RateLimitedTotal counts requests declined by a rate limiter.
// Label:
//   - scope: the guarded entry point (e.g. "get_user_by_id", "login")
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests declined by rate limiting.",
	},
	[]string{"scope"},
)

// TokensIssuedTotal counts bearer tokens minted at login.
var TokensIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of bearer tokens issued.",
	},
)

// ── Bulk import metrics ───────────────────────────────────────────────────────

// BulkRowsTotal counts CSV rows processed by the bulk importer.
// Label:
//   - result: "created" or "failed"
var BulkRowsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bulk_rows_total",
		Help:      "Total number of bulk upload rows processed, by result.",
	},
	[]string{"result"},
)

// ── External collaborator metrics ─────────────────────────────────────────────

// SummarizeDuration measures calls to the external summarizer.
// Label:
//   - outcome: "ok" or "error"
var SummarizeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "summarize_duration_seconds",
		Help:      "Duration of calls to the external summarization API.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)
