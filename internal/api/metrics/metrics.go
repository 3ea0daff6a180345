// Package metrics defines and registers the custom Prometheus metrics of the
// customer service. It is the single source of truth for metric names,
// labels, and help strings.
//
// All metrics are registered with the default registry through promauto when
// the package is first imported. HTTP request metrics are collected
// separately by the echoprometheus middleware installed by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "customersms"

// ── Authentication metrics ───────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "throttled" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, labelled by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts successful self-service registrations.
var RegistrationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of users registered.",
	},
)

// TokenRejectionsTotal counts bearer tokens refused by the authentication middleware.
// Label:
//   - reason: "expired" or "invalid"
var TokenRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_rejections_total",
		Help:      "Total number of presented session tokens that failed verification.",
	},
	[]string{"reason"},
)

// AccessDeniedTotal counts requests stopped by the route policy.
// Label:
//   - reason: "unauthenticated" or "forbidden"
var AccessDeniedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_denied_total",
		Help:      "Total number of requests rejected by the route access policy.",
	},
	[]string{"reason"},
)

// ── Role metrics ─────────────────────────────────────────────────────────────

// RoleGrantMutationsTotal counts role grant mutations.
// Labels:
//   - operation: "assign", "replace" or "revoke"
//   - result: "success" or the failure kind (e.g. "duplicate_grant", "last_admin")
var RoleGrantMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_grant_mutations_total",
		Help:      "Total number of role grant mutations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// RoleCacheHitsTotal counts role registry lookups served from memory.
var RoleCacheHitsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_cache_hits_total",
		Help:      "Total number of role registry cache hits.",
	},
)

// RoleCacheMissesTotal counts role registry lookups that went to the store.
var RoleCacheMissesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_cache_misses_total",
		Help:      "Total number of role registry cache misses.",
	},
)

// PasswordHashDuration measures bcrypt hashing and verification.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing and verification.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"op"},
)
