package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	cacheLabel = "cache"
)

var (
	cacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tile_cache_size",
		Help: "The number of items in the tile cache.",
	}, []string{cacheLabel})

	cacheCached = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tile_cache_protected",
		Help: "The number of items protected from eviction.",
	}, []string{cacheLabel})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tile_cache_evictions",
		Help: "The number of items evicted from the tile cache.",
	}, []string{cacheLabel})
)

func instrumentSize(name string, n int) {
	cacheSize.
		With(prometheus.Labels{cacheLabel: name}).
		Set(float64(n))
}

func instrumentCached(name string, n int) {
	cacheCached.
		With(prometheus.Labels{cacheLabel: name}).
		Set(float64(n))
}

func instrumentEvictions(name string, n int) {
	if n == 0 {
		return
	}

	cacheEvictions.
		With(prometheus.Labels{cacheLabel: name}).
		Add(float64(n))
}
