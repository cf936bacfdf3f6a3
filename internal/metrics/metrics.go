package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instruments bundles the Prometheus collectors exported on /metrics.
type Instruments struct {
	registry *prometheus.Registry

	ScaleActionsTotal  *prometheus.CounterVec
	ScaleFailuresTotal prometheus.Counter
	CurrentInstances   prometheus.Gauge
	HealthyInstances   prometheus.Gauge
	AlertsTotal        *prometheus.CounterVec
	TickDuration       prometheus.Histogram
	HTTPRequestsTotal  *prometheus.CounterVec
}

func New(serviceName string) *Instruments {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	labels := prometheus.Labels{"service": serviceName}

	return &Instruments{
		registry: registry,
		ScaleActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "capacity_scale_actions_total",
			Help:        "Committed scale actions by direction.",
			ConstLabels: labels,
		}, []string{"action"}),
		ScaleFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "capacity_scale_failures_total",
			Help:        "Scale actions aborted by an orchestrator failure.",
			ConstLabels: labels,
		}),
		CurrentInstances: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "capacity_current_instances",
			Help:        "Authoritative instance count held by the manager.",
			ConstLabels: labels,
		}),
		HealthyInstances: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "capacity_healthy_instances",
			Help:        "Instances currently eligible for traffic.",
			ConstLabels: labels,
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "capacity_alerts_total",
			Help:        "Alerts recorded by severity.",
			ConstLabels: labels,
		}, []string{"severity"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "capacity_tick_duration_seconds",
			Help:        "Duration of one evaluation tick.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "capacity_http_requests_total",
			Help:        "API requests by method and status class.",
			ConstLabels: labels,
		}, []string{"method", "status"}),
	}
}

func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}
