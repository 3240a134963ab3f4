package traverse

import (
	"github.com/aukilabs/tilestream/tiles"
)

const (
	passVisibility = "visibility"
	passRefine     = "refine"
	passSchedule   = "schedule"
	passDefer      = "defer"
	passPrewarm    = "prewarm"
)

type visit struct {
	tile *tiles.Tile
	exit bool
}

// determineFrustumSet marks the tiles intersecting the view as used, down to
// the tiles whose error meets the target.
func (e *Engine) determineFrustumSet(root *tiles.Tile) {
	stack := []visit{{tile: root}}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.exit {
			e.exitFrustumSet(v.tile)
			continue
		}

		t := v.tile
		r := e.at(t)
		if !e.host.TileInView(t) {
			continue
		}

		r.used = true
		r.inFrustum = true
		r.contributed = true
		e.cache.MarkUsed(t)
		e.stats.InFrustum++

		if (e.config.StopAtEmptyTiles || !t.ContentEmpty) && !t.External {
			e.measure(t, r)

			if r.err.AtMost(e.config.ErrorTarget) {
				continue
			}
			if e.config.MaxDepth > 0 && t.Depth+1 >= e.config.MaxDepth {
				continue
			}
		}

		if t.External {
			e.measureDistance(t, r)

			if !t.LoadState().Finished() {
				e.request(t, passVisibility)
			}
		}

		stack = append(stack, visit{tile: t, exit: true})
		for i := len(t.Children) - 1; i >= 0; i-- {
			stack = append(stack, visit{tile: t.Children[i]})
		}
	}
}

func (e *Engine) exitFrustumSet(t *tiles.Tile) {
	anyChildrenUsed := false
	for _, c := range t.Children {
		if e.at(c).contributed {
			anyChildrenUsed = true
			break
		}
	}

	if anyChildrenUsed && e.config.LoadSiblings {
		for _, c := range t.Children {
			e.markUsedDown(c)

			if c.External && !e.at(c).inFrustum && !c.LoadState().Finished() {
				e.request(c, passVisibility)
			}
		}
	}

	r := e.at(t)
	if e.config.CullWithChildrenBounds &&
		!anyChildrenUsed &&
		len(t.Children) > 0 &&
		t.Refine == tiles.Replace &&
		r.inFrustum {
		r.inFrustum = false
		r.contributed = false
		e.stats.InFrustum--
	}
}

// markUsedDown marks the tile used along with its content-empty descendants
// down to the next layer of content.
func (e *Engine) markUsedDown(t *tiles.Tile) {
	stack := []*tiles.Tile{t}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e.at(n).used = true
		e.cache.MarkUsed(n)

		if n.ContentEmpty {
			stack = append(stack, n.Children...)
		}
	}
}

func (e *Engine) measure(t *tiles.Tile, r *record) {
	m := e.host.CalculateError(t)
	r.err = Measured(m.Error)
	r.distance = Measured(m.Distance)
	if e.config.Foveation {
		r.foveation = m.Foveation
	}
}

// measureDistance records the distance of an external tileset. Its error is
// left unset so that it never stops the descent.
func (e *Engine) measureDistance(t *tiles.Tile, r *record) {
	m := e.host.CalculateError(t)
	r.distance = Measured(m.Distance)
}
