/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how often and for which
// methods the admission decisions are made.
type MetricsCollector interface {
	// IncAllowed increments the total number of allowed requests for the method.
	IncAllowed(method string)

	// IncDenied increments the total number of denied requests for the method.
	IncDenied(method string)
}

type disabledMetrics struct{}

func (disabledMetrics) IncAllowed(_ string) {}
func (disabledMetrics) IncDenied(_ string)  {}

const metricsLabelMethod = "method"

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for the admission decisions.
type PrometheusMetrics struct {
	AllowedTotal *prometheus.CounterVec
	DeniedTotal  *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	labelNames := append(make([]string, 0, len(opts.CurriedLabelNames)+1), opts.CurriedLabelNames...)
	labelNames = append(labelNames, metricsLabelMethod)

	allowedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_allowed_total",
			Help:        "Number of requests admitted by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		labelNames,
	)

	deniedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_denied_total",
			Help:        "Number of requests denied by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		labelNames,
	)

	return &PrometheusMetrics{
		AllowedTotal: allowedTotal,
		DeniedTotal:  deniedTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AllowedTotal: pm.AllowedTotal.MustCurryWith(labels),
		DeniedTotal:  pm.DeniedTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.AllowedTotal,
		pm.DeniedTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AllowedTotal)
	prometheus.Unregister(pm.DeniedTotal)
}

// IncAllowed increments the total number of allowed requests for the method.
func (pm *PrometheusMetrics) IncAllowed(method string) {
	pm.AllowedTotal.With(prometheus.Labels{metricsLabelMethod: method}).Inc()
}

// IncDenied increments the total number of denied requests for the method.
func (pm *PrometheusMetrics) IncDenied(method string) {
	pm.DeniedTotal.With(prometheus.Labels{metricsLabelMethod: method}).Inc()
}
