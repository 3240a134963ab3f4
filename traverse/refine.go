package traverse

import (
	"github.com/aukilabs/tilestream/tiles"
)

type refineVisit struct {
	tile        *tiles.Tile
	parentDepth int
}

// skipTraversal walks the used set top-down and decides, per tile, whether
// the tile is displayed or replaced by its children.
func (e *Engine) skipTraversal(root *tiles.Tile) {
	errorRequirement := (e.config.ErrorTarget + 1) * e.config.ErrorThreshold
	legacy := e.config.Policy == PolicyLegacy
	stack := []refineVisit{{tile: root, parentDepth: -1}}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		t := v.tile
		r := e.at(t)
		if !r.used {
			continue
		}
		r.depthFromRenderedParent = v.parentDepth

		if r.leaf {
			r.depthFromRenderedParent++

			if t.LoadState() == tiles.Loaded {
				e.display(r)
			} else if !e.cache.IsFull() && (!t.ContentEmpty || t.External) {
				e.request(t, passRefine)
			}
			continue
		}

		meetsSSE := r.err.AtMost(errorRequirement)
		includeTile := meetsSSE || t.Refine == tiles.Add
		hasModel := !t.ContentEmpty
		hasContent := hasModel || t.External
		loadedContent := t.LoadState().Finished() && hasContent

		if includeTile && hasModel {
			r.depthFromRenderedParent++
		}

		if legacy && includeTile && !loadedContent && hasContent && !e.cache.IsFull() {
			e.request(t, passRefine)
		}

		children := e.children(t)
		anyChildrenUsed := false

		switch {
		case legacy && t.Refine != tiles.Add && meetsSSE && !r.allChildrenLoaded && loadedContent:
			for _, c := range children {
				if e.usedThisFrame(c) && !e.cache.IsFull() {
					e.loadDown(c, r.depthFromRenderedParent+1)
				}
			}

		case legacy || r.allChildrenLoaded:
			for i := len(children) - 1; i >= 0; i-- {
				c := children[i]
				anyChildrenUsed = anyChildrenUsed || e.usedThisFrame(c)
				stack = append(stack, refineVisit{
					tile:        c,
					parentDepth: r.depthFromRenderedParent,
				})
			}
		}

		var displayed bool
		if legacy {
			displayed = meetsSSE && !r.allChildrenLoaded && !r.childrenWereVisible && loadedContent
		} else {
			displayed = meetsSSE && (!r.allChildrenLoaded || !anyChildrenUsed) && loadedContent
		}
		if displayed || (t.Refine == tiles.Add && loadedContent) {
			e.display(r)
		}
	}
}

func (e *Engine) display(r *record) {
	if r.inFrustum {
		r.visible = true
		e.stats.Visible++
	}
	r.active = true
	e.stats.Active++
}

// loadDown requests the content of the tile, or of the next content layer
// when the tile is a routing tile. Routing layers do not count as a rendered
// depth.
func (e *Engine) loadDown(t *tiles.Tile, depth int) {
	stack := []*tiles.Tile{t}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e.at(n).depthFromRenderedParent = depth

		if n.ContentEmpty && (!n.External || n.LoadState().Finished()) {
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
			continue
		}

		e.request(n, passRefine)
	}
}
