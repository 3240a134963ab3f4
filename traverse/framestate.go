package traverse

import (
	"math"
	"slices"

	"github.com/aukilabs/tilestream/tiles"
)

// Metric is an optional measurement. The zero value is unset, which orders
// after every set value and never satisfies a threshold.
type Metric struct {
	value float64
	set   bool
}

// Measured returns a set metric. NaN values produce an unset metric.
func Measured(v float64) Metric {
	if math.IsNaN(v) {
		return Metric{}
	}
	return Metric{value: v, set: true}
}

// Value returns the metric value and whether it is set.
func (m Metric) Value() (float64, bool) {
	return m.value, m.set
}

// AtMost reports whether the metric is set and lower or equal to limit.
func (m Metric) AtMost(limit float64) bool {
	return m.set && m.value <= limit
}

// Less orders metrics ascending with unset metrics last.
func (m Metric) Less(o Metric) bool {
	switch {
	case m.set && o.set:
		return m.value < o.value
	default:
		return m.set && !o.set
	}
}

// Min returns the smallest of two metrics.
func (m Metric) Min(o Metric) Metric {
	if o.Less(m) {
		return o
	}
	return m
}

// transient holds the fields that are reset at the start of every frame a
// tile is visited.
type transient struct {
	used                    bool
	inFrustum               bool
	leaf                    bool
	visible                 bool
	active                  bool
	err                     Metric
	distance                Metric
	foveation               float64
	childrenWereVisible     bool
	allChildrenLoaded       bool
	depthFromRenderedParent int

	// Whether the visibility pass reported the subtree as used.
	contributed bool
}

type record struct {
	tile  *tiles.Tile
	stamp uint64

	transient

	// Persisted across frames.
	wasSetVisible   bool
	wasSetActive    bool
	usedLastFrame   bool
	contentChildren []*tiles.Tile
	contentFrame    uint64
}

// reset clears the transient fields unless the record was already reset for
// the given frame.
func (r *record) reset(frame uint64) {
	if r.stamp == frame {
		return
	}

	r.stamp = frame
	r.transient = transient{foveation: 1}
}

// frameTable is the per view side table of tile frame state, indexed by tile
// id.
type frameTable struct {
	records []*record
}

// at returns the record of the given tile, reset for the given frame. A slot
// that holds another tile (recycled id) is cleared entirely.
func (ft *frameTable) at(t *tiles.Tile, frame uint64) *record {
	for len(ft.records) <= t.ID {
		ft.records = append(ft.records, nil)
	}

	r := ft.records[t.ID]
	if r == nil || r.tile != t {
		r = &record{tile: t}
		ft.records[t.ID] = r
	}

	r.reset(frame)
	return r
}

// TileState is a read only snapshot of a tile frame state.
type TileState struct {
	Used                    bool
	InFrustum               bool
	Leaf                    bool
	Visible                 bool
	Active                  bool
	Error                   Metric
	Distance                Metric
	Foveation               float64
	ChildrenWereVisible     bool
	AllChildrenLoaded       bool
	DepthFromRenderedParent int
	WasSetVisible           bool
	WasSetActive            bool
	UsedLastFrame           bool
	ContentChildren         []*tiles.Tile
}

func (r *record) snapshot() TileState {
	return TileState{
		Used:                    r.used,
		InFrustum:               r.inFrustum,
		Leaf:                    r.leaf,
		Visible:                 r.visible,
		Active:                  r.active,
		Error:                   r.err,
		Distance:                r.distance,
		Foveation:               r.foveation,
		ChildrenWereVisible:     r.childrenWereVisible,
		AllChildrenLoaded:       r.allChildrenLoaded,
		DepthFromRenderedParent: r.depthFromRenderedParent,
		WasSetVisible:           r.wasSetVisible,
		WasSetActive:            r.wasSetActive,
		UsedLastFrame:           r.usedLastFrame,
		ContentChildren:         slices.Clone(r.contentChildren),
	}
}
