package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxgw_requests_total",
			Help: "Admitted API requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)

	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxgw_cache_ops_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"}, // hit|miss|store_error
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxgw_upstream_requests_total",
			Help: "Upstream provider calls by endpoint and result",
		},
		[]string{"endpoint", "result"}, // ok|breaker_open|error
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxgw_rate_limited_total",
			Help: "Requests rejected by the limiter, by breached window",
		},
		[]string{"window"}, // minute|day|month
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxgw_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result",
		},
		[]string{"result"}, // ok|error
	)

	WebhookEvaluations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wxgw_webhook_evaluations_total",
			Help: "Webhook condition evaluations",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RequestsTotal,
		CacheOps,
		UpstreamRequests,
		RateLimited,
		WebhookDeliveries,
		WebhookEvaluations,
	)
}
