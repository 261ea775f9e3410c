// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts API requests by route, method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsadmin_http_requests_total",
		Help: "Total number of API requests",
	}, []string{"route", "method", "status"})

	// HTTPDuration tracks API request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pdnsadmin_http_request_duration_seconds",
		Help:    "Histogram of API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// AuthAttempts counts authentication attempts by method and result.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsadmin_auth_attempts_total",
		Help: "Total number of authentication attempts",
	}, []string{"method", "result"})

	// ZoneOperations counts zone mutations by operation.
	ZoneOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsadmin_zone_operations_total",
		Help: "Total number of zone and record mutations",
	}, []string{"operation"})

	// BulkLines counts bulk registration lines by outcome.
	BulkLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsadmin_bulk_lines_total",
		Help: "Total number of bulk registration lines by outcome",
	}, []string{"status"})

	// DNSSECOperations counts DNSSEC key lifecycle operations by result.
	DNSSECOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsadmin_dnssec_operations_total",
		Help: "Total number of DNSSEC operations",
	}, []string{"operation", "result"})

	// PdnsAPIRequests counts calls to the PowerDNS HTTP API by status code.
	PdnsAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdnsadmin_pdns_api_requests_total",
		Help: "Total number of PowerDNS API requests",
	}, []string{"method", "status"})
)

// Result returns the label value for an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
