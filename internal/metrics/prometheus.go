package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "apple_intelligence"

// PrometheusRecorder implements Recorder for the local server.
type PrometheusRecorder struct {
	requestDuration *prom.HistogramVec
	completions     *prom.CounterVec
}

// NewPrometheusRecorder constructs the server metrics and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &PrometheusRecorder{
		requestDuration: register(reg, prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Local server request latency",
			Buckets:   prom.DefBuckets,
		}, []string{"route", "status"})),
		completions: register(reg, prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "chat_completions_total",
			Help:      "Chat completions served, by model and mode",
		}, []string{"model", "mode"})),
	}
}

func (p *PrometheusRecorder) ObserveRequest(route string, status int, d time.Duration) {
	p.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompletion(model string, stream bool) {
	p.completions.WithLabelValues(model, result(stream, "stream", "blocking")).Inc()
}

// PrometheusLaunchRecorder implements launcher.Recorder for SDK callers.
type PrometheusLaunchRecorder struct {
	ensureDuration *prom.HistogramVec
	probes         *prom.CounterVec
	launches       *prom.CounterVec
}

// NewPrometheusLaunchRecorder constructs the client-side readiness metrics on
// reg. Registering twice on the same reg reuses the existing collectors.
func NewPrometheusLaunchRecorder(reg prom.Registerer) *PrometheusLaunchRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &PrometheusLaunchRecorder{
		ensureDuration: register(reg, prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "ensure_duration_seconds",
			Help:      "Time spent making a server ready, by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})),
		probes: register(reg, prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "health_probes_total",
			Help:      "Health probes by result",
		}, []string{"result"})),
		launches: register(reg, prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Server spawn attempts by result",
		}, []string{"result"})),
	}
}

func (p *PrometheusLaunchRecorder) ObserveEnsure(outcome string, d time.Duration) {
	p.ensureDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (p *PrometheusLaunchRecorder) IncProbe(healthy bool) {
	p.probes.WithLabelValues(result(healthy, "healthy", "unhealthy")).Inc()
}

func (p *PrometheusLaunchRecorder) IncLaunch(success bool) {
	p.launches.WithLabelValues(result(success, "success", "failure")).Inc()
}

// Handler exposes g in the Prometheus text format.
func Handler(g prom.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// register adds c to reg, returning the collector already registered under
// the same descriptor instead when there is one.
func register[C prom.Collector](reg prom.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
