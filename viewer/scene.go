package viewer

import (
	"slices"
	"sync"

	"github.com/aukilabs/tilestream/tiles"
)

// Scene tracks the tiles whose content is attached to the rendered scene.
type Scene struct {
	// OnVisibilityChange is called when a tile is shown or hidden.
	OnVisibilityChange func(t *tiles.Tile, visible bool)

	mutex   sync.RWMutex
	active  map[*tiles.Tile]struct{}
	visible map[*tiles.Tile]struct{}
}

func NewScene() *Scene {
	return &Scene{
		active:  make(map[*tiles.Tile]struct{}),
		visible: make(map[*tiles.Tile]struct{}),
	}
}

func (s *Scene) SetActive(t *tiles.Tile, active bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if active {
		s.active[t] = struct{}{}
	} else {
		delete(s.active, t)
	}
}

func (s *Scene) SetVisible(t *tiles.Tile, visible bool) {
	s.mutex.Lock()
	_, wasVisible := s.visible[t]
	if visible {
		s.visible[t] = struct{}{}
	} else {
		delete(s.visible, t)
	}
	s.mutex.Unlock()

	if wasVisible != visible && s.OnVisibilityChange != nil {
		s.OnVisibilityChange(t, visible)
	}
}

// Remove detaches the tile from the scene.
func (s *Scene) Remove(t *tiles.Tile) {
	s.SetActive(t, false)
	s.SetVisible(t, false)
}

func (s *Scene) IsActive(t *tiles.Tile) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.active[t]
	return ok
}

func (s *Scene) IsVisible(t *tiles.Tile) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.visible[t]
	return ok
}

func (s *Scene) ActiveCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.active)
}

func (s *Scene) VisibleCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.visible)
}

// VisibleTiles returns the visible tiles ordered by id.
func (s *Scene) VisibleTiles() []*tiles.Tile {
	s.mutex.RLock()
	visible := make([]*tiles.Tile, 0, len(s.visible))
	for t := range s.visible {
		visible = append(visible, t)
	}
	s.mutex.RUnlock()

	slices.SortFunc(visible, func(a, b *tiles.Tile) int {
		return a.ID - b.ID
	})
	return visible
}
