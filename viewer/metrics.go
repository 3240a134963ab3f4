package viewer

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tilestream/tiles"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	contentTypeLabel = "content_type"
	errTypeLabel     = "error_type"
)

var (
	viewerAppliedContents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_applied_contents",
		Help: "The number of tile contents applied by type.",
	}, []string{contentTypeLabel})

	viewerFailedContents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_failed_contents",
		Help: "The number of tiles that failed to load by error type.",
	}, []string{errTypeLabel})

	viewerStaleCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viewer_stale_completions",
		Help: "The number of completions discarded because the tile load epoch changed.",
	})
)

func instrumentApplied(typ tiles.ContentType) {
	viewerAppliedContents.
		With(prometheus.Labels{contentTypeLabel: string(typ)}).
		Inc()
}

func instrumentFailure(err error) {
	viewerFailedContents.
		With(prometheus.Labels{errTypeLabel: errors.Type(err)}).
		Inc()
}

func instrumentStale() {
	viewerStaleCompletions.Inc()
}
