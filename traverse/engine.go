// Package traverse implements the per frame tile selection and streaming
// scheduler.
package traverse

import (
	"math"
	"strings"
	"time"

	"github.com/aukilabs/tilestream/tiles"
)

// Policy selects the traversal behaviour of an engine.
type Policy int

const (
	// PolicyLegacy refines over structural children and requests content
	// while refining.
	PolicyLegacy Policy = iota

	// PolicyScheduled refines over content children and leaves requests to
	// the priority download scheduler.
	PolicyScheduled
)

func (p Policy) String() string {
	switch p {
	case PolicyScheduled:
		return "scheduled"
	default:
		return "legacy"
	}
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "":
		return PolicyLegacy, true
	case "scheduled":
		return PolicyScheduled, true
	default:
		return PolicyLegacy, false
	}
}

// Config is the engine configuration.
type Config struct {
	Policy Policy `json:"policy"`

	// The screen space error under which a tile is considered detailed
	// enough.
	ErrorTarget float64 `json:"error_target"`

	// The multiplier applied to ErrorTarget + 1 to decide whether a tile
	// can be displayed while its children load.
	ErrorThreshold float64 `json:"error_threshold"`

	// The maximum tile depth to traverse. 0 means unlimited.
	MaxDepth int `json:"max_depth"`

	LoadSiblings           bool `json:"load_siblings"`
	StopAtEmptyTiles       bool `json:"stop_at_empty_tiles"`
	CullWithChildrenBounds bool `json:"cull_with_children_bounds"`
	DisplayActiveTiles     bool `json:"display_active_tiles"`
	DeferOutsideFrustum    bool `json:"defer_outside_frustum"`

	// The depth down to which the pre-warm pass protects tiles.
	CacheDepth int `json:"cache_depth"`

	// The maximum number of strongly cached tiles.
	MaxCacheChildren int `json:"max_cache_children"`

	// The number of unloaded content layers the scheduler looks ahead.
	LookaheadDepth int `json:"lookahead_depth"`

	Foveation        bool    `json:"foveation"`
	FoveatedConeSize float64 `json:"foveated_cone_size"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Policy:           PolicyLegacy,
		ErrorTarget:      6,
		ErrorThreshold:   math.Inf(1),
		LoadSiblings:     true,
		StopAtEmptyTiles: true,
		CacheDepth:       3,
		MaxCacheChildren: 200,
		LookaheadDepth:   2,
		FoveatedConeSize: 0.3,
	}
}

// Measurement is the result of a host error calculation.
type Measurement struct {
	// The screen space error of the tile.
	Error float64

	// The distance between the camera and the tile bounding volume.
	Distance float64

	// The foveation factor of the tile. Lower is closer to the view
	// direction.
	Foveation float64
}

// Host is the renderer side of the engine.
type Host interface {
	// TileInView reports whether the tile intersects the view frustum.
	TileInView(t *tiles.Tile) bool

	// CalculateError measures the tile from the current camera.
	CalculateError(t *tiles.Tile) Measurement

	// RequestTileContents requests the tile content. It must be a no-op
	// when the tile is already loading or loaded.
	RequestTileContents(t *tiles.Tile)

	SetTileActive(t *tiles.Tile, active bool)
	SetTileVisible(t *tiles.Tile, visible bool)
}

// Cache is the tile content cache.
type Cache interface {
	MarkUsed(t *tiles.Tile)
	MarkCache(t *tiles.Tile)
	IsFull() bool
	CachedCount() int
}

// Downloads reports the download queue budget and load.
type Downloads interface {
	MaxJobs() int
	Downloading() int
}

// Stats are the counters of a frame.
type Stats struct {
	Frame       uint64        `json:"frame"`
	InFrustum   int           `json:"in_frustum"`
	Used        int           `json:"used"`
	Visible     int           `json:"visible"`
	Active      int           `json:"active"`
	Requested   int           `json:"requested"`
	Deferred    int           `json:"deferred"`
	Downloading int           `json:"downloading"`
	Duration    time.Duration `json:"-"`

	// The frame duration in seconds.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Engine selects the tiles to display, fetch and protect, once per frame.
// It is not safe for concurrent use.
type Engine struct {
	config    Config
	host      Host
	cache     Cache
	downloads Downloads

	frame uint64
	table frameTable
	stats Stats
}

// New creates an engine.
func New(c Config, h Host, cache Cache, d Downloads) *Engine {
	if c.ErrorThreshold <= 0 || math.IsNaN(c.ErrorThreshold) {
		c.ErrorThreshold = math.Inf(1)
	}
	if c.LookaheadDepth <= 0 {
		c.LookaheadDepth = DefaultConfig().LookaheadDepth
	}

	return &Engine{
		config:    c,
		host:      h,
		cache:     cache,
		downloads: d,
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Frame returns the current frame number.
func (e *Engine) Frame() uint64 {
	return e.frame
}

// Stats returns the counters of the last frame.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Update runs one frame of traversal from the given root.
func (e *Engine) Update(root *tiles.Tile) Stats {
	start := time.Now()

	e.frame++
	e.stats = Stats{Frame: e.frame}

	if root != nil {
		e.determineFrustumSet(root)
		e.buildContentTree(root)
		e.markUsedSetLeaves(root)
		e.skipTraversal(root)
		if e.config.Policy == PolicyScheduled {
			e.requestPriorityTiles(root)
		}
		e.toggleTiles(root)
	}

	e.stats.Downloading = e.downloads.Downloading()
	e.stats.Duration = time.Since(start)
	e.stats.DurationSeconds = e.stats.Duration.Seconds()
	instrumentFrame(e.config.Policy, e.stats)
	return e.stats
}

// State returns a snapshot of the tile frame state.
func (e *Engine) State(t *tiles.Tile) TileState {
	return e.at(t).snapshot()
}

func (e *Engine) at(t *tiles.Tile) *record {
	return e.table.at(t, e.frame)
}

func (e *Engine) usedThisFrame(t *tiles.Tile) bool {
	return e.at(t).used
}

// request asks the host for the tile content. Tiles without anything to load
// and tiles that already started loading are skipped.
func (e *Engine) request(t *tiles.Tile, pass string) {
	if t.ContentEmpty && !t.External {
		return
	}
	if t.LoadState() != tiles.Unloaded {
		return
	}

	e.host.RequestTileContents(t)
	e.stats.Requested++
	instrumentRequest(pass)
}

func (e *Engine) saturated(fraction float64) bool {
	return float64(e.downloads.Downloading()) >= float64(e.downloads.MaxJobs())*fraction
}
