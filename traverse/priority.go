package traverse

import (
	"github.com/aukilabs/tilestream/tiles"
)

// Priority is the download priority of a tile.
type Priority struct {
	DepthFromRenderedParent int
	InFrustum               bool
	Used                    bool
	Error                   Metric
	Distance                Metric
	Foveation               float64
}

// Priority returns the download priority of the tile for the current frame.
func (e *Engine) Priority(t *tiles.Tile) Priority {
	r := e.at(t)
	return Priority{
		DepthFromRenderedParent: r.depthFromRenderedParent,
		InFrustum:               r.inFrustum,
		Used:                    r.used,
		Error:                   r.err,
		Distance:                r.distance,
		Foveation:               r.foveation,
	}
}

// Before reports whether a tile with priority p should be downloaded before a
// tile with priority o. Tiles closer to a rendered ancestor go first, then
// tiles in view, used tiles, tiles with a higher error, closer tiles and
// finally tiles closer to the view direction.
func (p Priority) Before(o Priority) bool {
	switch {
	case p.DepthFromRenderedParent != o.DepthFromRenderedParent:
		return p.DepthFromRenderedParent < o.DepthFromRenderedParent
	case p.InFrustum != o.InFrustum:
		return p.InFrustum
	case p.Used != o.Used:
		return p.Used
	case p.Error.set != o.Error.set:
		return p.Error.set
	case p.Error.value != o.Error.value:
		return p.Error.value > o.Error.value
	case p.Distance.Less(o.Distance):
		return true
	case o.Distance.Less(p.Distance):
		return false
	default:
		return p.Foveation < o.Foveation
	}
}
