package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mythweaver"

// Outcomes of one image request.
const (
	OutcomeDone     = "done"
	OutcomeFiltered = "filtered"
	OutcomeAborted  = "aborted"
	OutcomeFailed   = "failed"
	OutcomeNoop     = "noop"
)

type Collector struct {
	batchesTotal      prometheus.Counter
	artifactsTotal    *prometheus.CounterVec
	imagesCreated     prometheus.Counter
	requestsTotal     *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	httpRequestsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		batchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_batches_total",
			Help:      "Calls made to the text-to-image service.",
		}),
		artifactsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_artifacts_total",
			Help:      "Candidate images returned by the service, by finish reason.",
		}, []string{"finish_reason"}),
		imagesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_created_total",
			Help:      "Images stored and recorded.",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_requests_total",
			Help:      "Image requests by outcome.",
		}, []string{"outcome"}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_request_duration_seconds",
			Help:      "Wall time to fulfil an image request.",
			Buckets:   []float64{1, 5, 10, 20, 40, 80, 160, 320},
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the api.",
		}, []string{"method", "route", "status"}),
	}
}

func (c *Collector) BatchRequested() {
	if c == nil {
		return
	}
	c.batchesTotal.Inc()
}

// ArtifactReturned counts one candidate by finish reason. Reasons the
// generation service may add later are folded into "other".
func (c *Collector) ArtifactReturned(finishReason string) {
	if c == nil {
		return
	}
	c.artifactsTotal.WithLabelValues(finishReasonLabel(finishReason)).Inc()
}

func finishReasonLabel(reason string) string {
	switch reason {
	case "SUCCESS", "CONTENT_FILTERED", "ERROR":
		return reason
	default:
		return "other"
	}
}

func (c *Collector) ImageCreated() {
	if c == nil {
		return
	}
	c.imagesCreated.Inc()
}

func (c *Collector) RequestFinished(outcome string, started time.Time) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(outcome).Inc()
	c.requestDuration.Observe(time.Since(started).Seconds())
}

func (c *Collector) HTTPRequest(method, route, status string) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
}
