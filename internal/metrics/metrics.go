// Package metrics defines the anchor's Prometheus metrics: HTTP request
// counters/histograms, SEP-10 auth-outcome counters, and transfer-status
// gauges (SPEC_FULL.md §2's expanded table), following the pack's
// standalone metrics-package pattern used to avoid import cycles
// between domain packages and the HTTP layer.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anchor_http_requests_total",
		Help: "Total HTTP requests handled, by route and status code",
	}, []string{"route", "status"})

	// HTTPRequestDuration measures HTTP request latency in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anchor_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// AuthChallengesIssuedTotal counts SEP-10 challenges created.
	AuthChallengesIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "anchor_auth_challenges_issued_total",
		Help: "Total SEP-10 challenge transactions issued",
	})

	// AuthOutcomesTotal counts SEP-10 verification outcomes by result.
	AuthOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anchor_auth_outcomes_total",
		Help: "Total SEP-10 challenge verifications, by outcome",
	}, []string{"outcome"})

	// TransfersByStatus gauges the number of live transfers in each
	// status, by transfer kind.
	TransfersByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "anchor_transfers_by_status",
		Help: "Current transfer count, by kind and status",
	}, []string{"kind", "status"})

	// TransfersInitiatedTotal counts transfer-initiation calls by kind
	// and mode.
	TransfersInitiatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "anchor_transfers_initiated_total",
		Help: "Total transfers initiated, by kind and mode",
	}, []string{"kind", "mode"})
)

// Register registers every anchor metric on reg (or the default
// registry if nil), tolerating re-registration so callers and tests can
// invoke it more than once.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AuthChallengesIssuedTotal,
		AuthOutcomesTotal,
		TransfersByStatus,
		TransfersInitiatedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveHTTPRequest records one completed HTTP request's route, status
// code, and latency in seconds.
func ObserveHTTPRequest(route string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}
