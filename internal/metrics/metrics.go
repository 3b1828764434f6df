// Package metrics exposes gateway counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can build as many as they need.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	mistakes    prometheus.Counter
	boardCache  *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmotablas",
			Name:      "record_submissions_total",
			Help:      "Record submissions by outcome.",
		}, []string{"result"}),
		mistakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cosmotablas",
			Name:      "mistakes_ingested_total",
			Help:      "Accepted (table, multiplier) mistake reports.",
		}),
		boardCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cosmotablas",
			Name:      "board_cache_lookups_total",
			Help:      "Global board cache lookups by board and outcome.",
		}, []string{"board", "outcome"}),
	}
	r.registry.MustRegister(
		r.submissions,
		r.mistakes,
		r.boardCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// SubmissionAccepted counts a stored record.
func (r *Recorder) SubmissionAccepted() {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues("accepted").Inc()
}

// SubmissionRejected counts a record refused at the trust boundary.
func (r *Recorder) SubmissionRejected(reason string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(reason).Inc()
}

// MistakesIngested counts accepted mistake pairs.
func (r *Recorder) MistakesIngested(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.mistakes.Add(float64(n))
}

// CacheLookup counts a board cache hit or miss.
func (r *Recorder) CacheLookup(board string, hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.boardCache.WithLabelValues(board, outcome).Inc()
}

// Registry exposes the underlying registry to tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
