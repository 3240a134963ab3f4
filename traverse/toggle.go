package traverse

import (
	"github.com/aukilabs/tilestream/tiles"
)

// toggleTiles applies the active and visible decisions of the frame to the
// tiles used this frame or the previous one. Host callbacks are only called
// on change.
func (e *Engine) toggleTiles(root *tiles.Tile) {
	stack := []*tiles.Tile{root}

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		r := e.at(t)
		used := r.used
		if !used && !r.usedLastFrame {
			continue
		}

		var setActive, setVisible bool
		if used {
			setActive = r.active
			setVisible = r.visible
			if e.config.DisplayActiveTiles {
				setVisible = r.active || r.visible
			}
		}

		if !t.ContentEmpty && t.LoadState() == tiles.Loaded {
			if r.wasSetActive != setActive {
				e.host.SetTileActive(t, setActive)
			}
			if r.wasSetVisible != setVisible {
				e.host.SetTileVisible(t, setVisible)
			}
		}

		r.wasSetActive = setActive
		r.wasSetVisible = setVisible
		r.usedLastFrame = used

		for i := len(t.Children) - 1; i >= 0; i-- {
			stack = append(stack, t.Children[i])
		}
	}
}

// Forget drops the persisted display state of the tile. Hosts call it when
// the tile content is disposed so that a reload is toggled again.
func (e *Engine) Forget(t *tiles.Tile) {
	r := e.at(t)
	r.wasSetActive = false
	r.wasSetVisible = false
}
