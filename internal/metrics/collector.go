// Package metrics aggregates acquisition telemetry on a private prometheus
// registry so the default registry's process collectors stay out of the
// scrape.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the recorder interfaces of probe, soap, and acquire.
type Collector struct {
	registry *prometheus.Registry

	probeURLs    *prometheus.CounterVec
	soapRequests *prometheus.CounterVec
	acquisitions *prometheus.CounterVec
	duration     prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{registry: reg}

	c.probeURLs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapscout_probe_urls_total",
		Help: "Probed URLs by outcome (hit, unauthorized, rejected, bad_status, transport)",
	}, []string{"outcome"})
	reg.MustRegister(c.probeURLs)

	c.soapRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapscout_soap_requests_total",
		Help: "SOAP requests by operation and HTTP status (0 = transport failure)",
	}, []string{"operation", "status"})
	reg.MustRegister(c.soapRequests)

	c.acquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapscout_acquisitions_total",
		Help: "Finished acquisitions by final stage and result",
	}, []string{"stage", "result"})
	reg.MustRegister(c.acquisitions)

	c.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapscout_acquisition_seconds",
		Help:    "Wall-clock time of one acquisition",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	reg.MustRegister(c.duration)

	return c
}

func (c *Collector) ObserveProbe(outcome string) {
	c.probeURLs.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveSOAP(operation string, status int) {
	c.soapRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

func (c *Collector) ObserveAcquisition(stage string, success bool, elapsed time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	c.acquisitions.WithLabelValues(stage, result).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// Handler exposes the registry for /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
