package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons reported by RequestRejected.
const (
	ReasonQueueFull        = "queue_full"
	ReasonPermissionDenied = "permission_denied"
	ReasonNoProfile        = "no_profile"
)

// Recorder receives request and job measurements.
type Recorder interface {
	RequestEnqueued(profile string)
	RequestRejected(reason string)
	JobFinished(profile, status string, duration time.Duration)
	SetQueueDepth(depth int)
	SetPendingAssemblies(count int)
	SetWorkerBusy(busy bool)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) RequestEnqueued(string)                    {}
func (Noop) RequestRejected(string)                    {}
func (Noop) JobFinished(string, string, time.Duration) {}
func (Noop) SetQueueDepth(int)                         {}
func (Noop) SetPendingAssemblies(int)                  {}
func (Noop) SetWorkerBusy(bool)                        {}

// Prom implements Recorder backed by Prometheus collectors on a private
// registry.
type Prom struct {
	registry          *prometheus.Registry
	requestsEnqueued  *prometheus.CounterVec
	requestsRejected  *prometheus.CounterVec
	jobsCompleted     *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	queueDepth        prometheus.Gauge
	pendingAssemblies prometheus.Gauge
	workerBusy        prometheus.Gauge
}

// NewProm registers the easel collectors under namespace, plus the Go runtime
// and process collectors.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		requestsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_enqueued_total",
			Help:      "Requests admitted to the queue by profile",
		}, []string{"profile"}),
		requestsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Requests refused before enqueueing by reason",
		}, []string{"reason"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Jobs finished by profile and terminal status",
		}, []string{"profile", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job wall time from start to terminal status by profile",
			Buckets:   []float64{5, 15, 30, 60, 90, 120, 180, 300, 600},
		}, []string{"profile"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Requests waiting in the queue",
		}),
		pendingAssemblies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_assemblies",
			Help:      "Requests still collecting images",
		}),
		workerBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_busy",
			Help:      "1 while a job is running",
		}),
	}
	p.registry.MustRegister(
		p.requestsEnqueued,
		p.requestsRejected,
		p.jobsCompleted,
		p.jobDuration,
		p.queueDepth,
		p.pendingAssemblies,
		p.workerBusy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prom) RequestEnqueued(profile string) {
	p.requestsEnqueued.WithLabelValues(profile).Inc()
}

func (p *Prom) RequestRejected(reason string) {
	p.requestsRejected.WithLabelValues(reason).Inc()
}

func (p *Prom) JobFinished(profile, status string, duration time.Duration) {
	p.jobsCompleted.WithLabelValues(profile, status).Inc()
	p.jobDuration.WithLabelValues(profile).Observe(duration.Seconds())
}

func (p *Prom) SetQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

func (p *Prom) SetPendingAssemblies(count int) {
	p.pendingAssemblies.Set(float64(count))
}

func (p *Prom) SetWorkerBusy(busy bool) {
	if busy {
		p.workerBusy.Set(1)
		return
	}
	p.workerBusy.Set(0)
}

// Registry exposes the underlying registry.
func (p *Prom) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler for /metrics.
func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
