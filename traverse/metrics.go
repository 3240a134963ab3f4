package traverse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	policyLabel = "policy"
	passLabel   = "pass"
)

var (
	frameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traversal_frame_duration_seconds",
		Help:    "The duration of a traversal frame.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}, []string{policyLabel})

	tilesUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traversal_tiles_used",
		Help: "The number of tiles used during the last frame.",
	})

	tilesInFrustum = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traversal_tiles_in_frustum",
		Help: "The number of tiles in the view frustum during the last frame.",
	})

	tilesVisible = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traversal_tiles_visible",
		Help: "The number of visible tiles during the last frame.",
	})

	tilesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traversal_tiles_active",
		Help: "The number of active tiles during the last frame.",
	})

	tileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traversal_tile_requests",
		Help: "The number of tile content requests by traversal pass.",
	}, []string{passLabel})
)

func instrumentFrame(p Policy, s Stats) {
	frameDuration.
		With(prometheus.Labels{policyLabel: p.String()}).
		Observe(s.Duration.Seconds())

	tilesUsed.Set(float64(s.Used))
	tilesInFrustum.Set(float64(s.InFrustum))
	tilesVisible.Set(float64(s.Visible))
	tilesActive.Set(float64(s.Active))
}

func instrumentRequest(pass string) {
	tileRequests.
		With(prometheus.Labels{passLabel: pass}).
		Inc()
}
