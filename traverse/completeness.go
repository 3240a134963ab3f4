package traverse

import (
	"github.com/aukilabs/tilestream/tiles"
)

// markUsedSetLeaves flags the leaves of the used set and computes, bottom-up,
// whether the children of each used tile were visible and are loaded.
func (e *Engine) markUsedSetLeaves(root *tiles.Tile) {
	stack := []visit{{tile: root}}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.exit {
			e.markChildrenLoaded(v.tile)
			continue
		}

		t := v.tile
		r := e.at(t)
		if !r.used {
			continue
		}
		e.stats.Used++

		children := e.children(t)
		anyChildrenUsed := false
		for _, c := range children {
			if e.usedThisFrame(c) {
				anyChildrenUsed = true
				break
			}
		}

		if !anyChildrenUsed {
			r.leaf = true
			continue
		}

		stack = append(stack, visit{tile: t, exit: true})
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, visit{tile: children[i]})
		}
	}
}

func (e *Engine) markChildrenLoaded(t *tiles.Tile) {
	r := e.at(t)
	childrenWereVisible := false
	allChildrenLoaded := true

	for _, c := range e.children(t) {
		cr := e.at(c)
		childrenWereVisible = childrenWereVisible || cr.wasSetVisible || cr.childrenWereVisible

		relevant := cr.used
		if e.config.Policy == PolicyScheduled {
			relevant = cr.inFrustum
		}
		if !relevant {
			continue
		}

		loaded := cr.allChildrenLoaded ||
			(!c.ContentEmpty && c.LoadState().Finished()) ||
			(c.External && c.LoadState() == tiles.Failed)
		allChildrenLoaded = allChildrenLoaded && loaded
	}

	r.childrenWereVisible = childrenWereVisible
	r.allChildrenLoaded = allChildrenLoaded
}
