package download

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	stateLabel   = "state"
)

var (
	downloadJobs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "download_jobs",
		Help: "The number of download jobs by state.",
	}, []string{stateLabel})

	downloadFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "download_fetch_latency",
		Help: "The time to fetch a tile content.",
	})

	downloadFetchError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "download_fetch_errors",
		Help: "The errors that occured while fetching a tile content.",
	}, []string{errTypeLabel})

	downloadStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_stale_jobs",
		Help: "The number of jobs dropped because their tile was disposed or reloaded.",
	})
)

func instrumentDownloading(pending, inflight int) {
	downloadJobs.
		With(prometheus.Labels{stateLabel: "pending"}).
		Set(float64(pending))

	downloadJobs.
		With(prometheus.Labels{stateLabel: "inflight"}).
		Set(float64(inflight))
}

func instrumentFetch(r Result) {
	downloadFetchLatency.Observe(r.Duration.Seconds())

	if r.Err != nil {
		downloadFetchError.
			With(prometheus.Labels{errTypeLabel: errors.Type(r.Err)}).
			Inc()
	}
}

func instrumentStale() {
	downloadStale.Inc()
}
