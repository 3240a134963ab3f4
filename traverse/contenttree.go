package traverse

import (
	"github.com/aukilabs/tilestream/tiles"
)

// buildContentTree links the root and every used content tile reached from it
// to their nearest content descendants.
func (e *Engine) buildContentTree(root *tiles.Tile) {
	if !e.usedThisFrame(root) {
		return
	}

	e.resolveContentChildren(root)
	stack := []*tiles.Tile{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !e.usedThisFrame(n) {
			continue
		}

		children := e.at(n).contentChildren
		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			if c.ContentEmpty {
				continue
			}

			e.resolveContentChildren(c)
			stack = append(stack, c)
		}
	}
}

// resolveContentChildren stores the first layer of descendants that carry
// content. Unresolved external tilesets end the search on their branch and
// fold their distance into the tile distance.
func (e *Engine) resolveContentChildren(t *tiles.Tile) {
	r := e.at(t)
	r.contentFrame = e.frame
	r.contentChildren = r.contentChildren[:0]

	layer := t.Children
	for len(layer) > 0 {
		var next []*tiles.Tile

		for _, c := range layer {
			switch {
			case !c.ContentEmpty:
				r.contentChildren = append(r.contentChildren, c)

			case c.External && (!c.LoadState().Finished() || len(c.Children) == 0):
				r.distance = r.distance.Min(e.at(c).distance)

			default:
				next = append(next, c.Children...)
			}
		}

		if len(r.contentChildren) > 0 {
			return
		}
		layer = next
	}
}

// contentChildren returns the content children resolved this frame.
func (e *Engine) contentChildren(t *tiles.Tile) []*tiles.Tile {
	r := e.at(t)
	if r.contentFrame != e.frame {
		return nil
	}
	return r.contentChildren
}

// children returns the children a pass walks under the engine policy.
func (e *Engine) children(t *tiles.Tile) []*tiles.Tile {
	if e.config.Policy == PolicyScheduled {
		return e.contentChildren(t)
	}
	return t.Children
}
