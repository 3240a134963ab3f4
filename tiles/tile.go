package tiles

import (
	"strings"
	"sync/atomic"

	"cogentcore.org/core/math32"
)

// Refinement describes how a tile relates to its children once they are
// displayed.
type Refinement int

const (
	// Replace means the children supersede the parent.
	Replace Refinement = iota

	// Add means the children supplement the parent, which stays displayed.
	Add
)

func (r Refinement) String() string {
	if r == Add {
		return "ADD"
	}
	return "REPLACE"
}

// ParseRefinement parses the refine value of a tileset. Matching is case
// insensitive.
func ParseRefinement(s string) (Refinement, bool) {
	switch strings.ToUpper(s) {
	case "REPLACE":
		return Replace, true
	case "ADD":
		return Add, true
	default:
		return Replace, false
	}
}

// LoadState is the loading state of a tile content.
type LoadState int32

const (
	Unloaded LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "LOADING"
	case Loaded:
		return "LOADED"
	case Failed:
		return "FAILED"
	default:
		return "UNLOADED"
	}
}

// Finished reports whether a download reached a terminal state.
func (s LoadState) Finished() bool {
	return s == Loaded || s == Failed
}

// BoundingVolume is the volume enclosing a tile and all its descendants.
type BoundingVolume struct {
	Sphere math32.Sphere

	// Box is an axis aligned approximation of the tile volume. Only set when
	// HasBox is true.
	Box    math32.Box3
	HasBox bool
}

// Content is the payload of a loaded tile.
type Content struct {
	Type ContentType
	Data []byte
}

// Tile is a node of a tile tree.
type Tile struct {
	// The tile id, unique within its tree. Assigned when the tile is
	// registered in a tree.
	ID int

	Parent   *Tile
	Children []*Tile

	GeometricError float64
	Bounds         BoundingVolume
	Refine         Refinement

	// Reports whether the tile has no renderable content and is only used to
	// route the tree structure. External tileset tiles are content empty.
	ContentEmpty bool

	// Reports whether the tile content references another tileset that is
	// spliced under the tile once loaded.
	External bool

	Depth      int
	ContentURI string

	state   LoadState
	epoch   atomic.Uint32
	content Content
}

// IsRoot reports whether the tile has no parent.
func (t *Tile) IsRoot() bool {
	return t.Parent == nil
}

// AddChild appends the given tile to the tile children and returns it.
func (t *Tile) AddChild(c *Tile) *Tile {
	c.Parent = t
	c.Depth = t.Depth + 1
	t.Children = append(t.Children, c)
	return c
}

// LoadState returns the tile loading state.
func (t *Tile) LoadState() LoadState {
	return t.state
}

// Epoch returns the current load epoch. It is safe to call from any
// goroutine.
func (t *Tile) Epoch() uint32 {
	return t.epoch.Load()
}

// Content returns the tile content. It is empty until the tile is loaded.
func (t *Tile) Content() Content {
	return t.content
}

// BeginLoad moves an unloaded tile to the loading state and returns the
// epoch that its completion must carry. It returns false when the tile is
// already loading or finished.
func (t *Tile) BeginLoad() (uint32, bool) {
	if t.state != Unloaded {
		return 0, false
	}

	t.state = Loading
	return t.epoch.Add(1), true
}

// Complete applies a successful load. The completion is discarded and false
// returned when the epoch does not match the tile's current epoch.
func (t *Tile) Complete(epoch uint32, c Content) bool {
	if t.state != Loading || epoch != t.epoch.Load() {
		return false
	}

	t.state = Loaded
	t.content = c
	return true
}

// Fail marks a load as failed. Like Complete, stale epochs are discarded.
func (t *Tile) Fail(epoch uint32) bool {
	if t.state != Loading || epoch != t.epoch.Load() {
		return false
	}

	t.state = Failed
	t.content = Content{}
	return true
}

// Dispose releases the tile content and returns it to the unloaded state.
// Loads in flight are invalidated.
func (t *Tile) Dispose() {
	t.state = Unloaded
	t.content = Content{}
	t.epoch.Add(1)
}
