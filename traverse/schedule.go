package traverse

import (
	"slices"

	"github.com/aukilabs/tilestream/tiles"
)

const (
	busyFraction = 0.75
	idleFraction = 0.5
)

// requestPriorityTiles requests the unloaded content of the used set in view
// priority order, then the deferred tiles outside of the view, then pre-warms
// the cache when downloads are idle.
func (e *Engine) requestPriorityTiles(root *tiles.Tile) {
	if !e.usedThisFrame(root) {
		return
	}

	if !root.ContentEmpty && !root.LoadState().Finished() && !e.saturated(busyFraction) {
		e.request(root, passSchedule)
	}

	var deferred []*tiles.Tile
	stack := []*tiles.Tile{root}
	depth := 0
	touchedUnloaded := false

walk:
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !e.usedThisFrame(n) {
			continue
		}

		content := slices.Clone(e.contentChildren(n))
		if len(content) == 0 {
			continue
		}
		slices.SortStableFunc(content, e.compareSchedule)

		inFrustum := content
		var outFrustum []*tiles.Tile
		if e.config.DeferOutsideFrustum {
			inFrustum = nil
			for _, c := range content {
				if e.at(c).inFrustum {
					inFrustum = append(inFrustum, c)
				} else {
					outFrustum = append(outFrustum, c)
				}
			}
		}

		var pending []*tiles.Tile
		for _, c := range inFrustum {
			if !c.LoadState().Finished() {
				pending = append(pending, c)
			}
		}

		if len(pending) > 0 || touchedUnloaded {
			for _, c := range pending {
				if e.saturated(busyFraction) {
					break walk
				}
				e.request(c, passSchedule)
			}

			touchedUnloaded = true
			depth++

			if e.saturated(busyFraction) {
				break
			}
		}

		if depth > e.config.LookaheadDepth {
			break
		}

		for i := len(inFrustum) - 1; i >= 0; i-- {
			stack = append(stack, inFrustum[i])
		}
		deferred = append(deferred, outFrustum...)
	}

	e.stats.Deferred = len(deferred)
	for len(deferred) > 0 && !e.saturated(busyFraction) {
		e.request(deferred[0], passDefer)
		deferred = deferred[1:]
	}

	if !e.saturated(idleFraction) {
		e.prewarm(root)
	}
}

// prewarm protects the structural subtree of the root from eviction, down to
// the cache depth, and requests the content of the protected tiles while
// downloads are not busy.
func (e *Engine) prewarm(root *tiles.Tile) {
	stack := []*tiles.Tile{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n != root && !n.LoadState().Finished() && !e.saturated(busyFraction) {
			e.request(n, passPrewarm)
		}

		if e.cache.CachedCount() >= e.config.MaxCacheChildren {
			return
		}
		e.cache.MarkCache(n)

		if n.Depth >= e.config.CacheDepth {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// compareSchedule orders tiles in view first, then by distance to the camera
// and finally by foveation factor.
func (e *Engine) compareSchedule(a, b *tiles.Tile) int {
	ra := e.at(a)
	rb := e.at(b)

	switch {
	case ra.inFrustum != rb.inFrustum:
		if ra.inFrustum {
			return -1
		}
		return 1

	case ra.distance.Less(rb.distance):
		return -1

	case rb.distance.Less(ra.distance):
		return 1

	case e.config.Foveation && ra.foveation != rb.foveation:
		if ra.foveation < rb.foveation {
			return -1
		}
		return 1

	default:
		return 0
	}
}
