// Package viewer implements a headless tileset viewer that drives the
// traversal engine from a camera and streams tile contents.
package viewer

import (
	"context"
	"sync"
	"time"

	"cogentcore.org/core/math32"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tilestream/cache"
	"github.com/aukilabs/tilestream/download"
	"github.com/aukilabs/tilestream/tiles"
	"github.com/aukilabs/tilestream/traverse"
	"github.com/google/uuid"
)

const (
	ErrTypeUnsupportedContent = "unsupported_content"
	ErrTypeLoadTileset        = "load_tileset"

	DefaultFrameDuration = time.Second / 30
)

// Config is the viewer configuration.
type Config struct {
	// The uri of the root tileset.
	TilesetURI string `json:"tileset_uri"`

	Traversal traverse.Config `json:"traversal"`

	CacheMinSize       int     `json:"cache_min_size"`
	CacheMaxSize       int     `json:"cache_max_size"`
	CacheUnloadPercent float64 `json:"cache_unload_percent"`

	// The number of concurrent downloads.
	MaxJobs int `json:"max_jobs"`

	FrameDuration time.Duration `json:"frame_duration"`

	// The interval between tile summary logs. Summaries are disabled when 0.
	LogSummaryInterval time.Duration `json:"log_summary_interval"`
}

// FrameStats are the counters of a viewer frame.
type FrameStats struct {
	traverse.Stats

	SessionID      string `json:"session_id"`
	Tiles          int    `json:"tiles"`
	Cached         int    `json:"cached"`
	StronglyCached int    `json:"strongly_cached"`
	Pending        int    `json:"pending"`
	Applied        int    `json:"applied"`
	Evicted        int    `json:"evicted"`
	SceneActive    int    `json:"scene_active"`
	SceneVisible   int    `json:"scene_visible"`
}

// Viewer loads a tileset and selects, fetches and evicts its tiles once per
// frame from the point of view of a camera.
//
// Update and Run must not be called concurrently. Camera, stats and frame
// handler methods are safe to call from any goroutine.
type Viewer struct {
	SessionID string
	Scene     *Scene

	config  Config
	fetcher download.Fetcher

	cameraMutex   sync.RWMutex
	camera        Camera
	cameraChanged bool

	// The camera used by the current frame.
	frameCamera Camera

	tree    *tiles.Tree
	cache   *cache.LRU[*tiles.Tile]
	queue   *download.Queue
	engine  *traverse.Engine
	summary *summary

	statsMutex sync.RWMutex
	stats      FrameStats

	frameMutex      sync.RWMutex
	frameHandlerIDs tiles.IDGenerator
	frameHandlers   map[int]func(FrameStats)
}

// New creates a viewer that fetches tileset and tile contents with the given
// fetcher.
func New(c Config, f download.Fetcher) *Viewer {
	if c.FrameDuration <= 0 {
		c.FrameDuration = DefaultFrameDuration
	}

	sessionID := uuid.NewString()

	v := &Viewer{
		SessionID:     sessionID,
		Scene:         NewScene(),
		config:        c,
		fetcher:       f,
		cache:         cache.New[*tiles.Tile]("tiles", c.CacheMinSize, c.CacheMaxSize, c.CacheUnloadPercent),
		queue:         download.NewQueue(f, c.MaxJobs),
		summary:       newSummary(sessionID, c.LogSummaryInterval),
		frameHandlers: make(map[int]func(FrameStats)),
	}

	v.engine = traverse.New(c.Traversal, v, v.cache, v.queue)
	v.queue.Less = func(a, b download.Job) bool {
		return v.engine.Priority(a.Tile).Before(v.engine.Priority(b.Tile))
	}

	v.camera = Camera{
		Direction:        math32.Vector3{Z: -1},
		FOV:              DefaultFOV,
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		Foveation:        c.Traversal.Foveation,
		FoveatedConeSize: c.Traversal.FoveatedConeSize,
	}
	return v
}

// Load fetches and parses the root tileset. It must be called before the
// first frame.
func (v *Viewer) Load(ctx context.Context) error {
	data, err := v.fetcher.Fetch(ctx, v.config.TilesetURI)
	if err != nil {
		return errors.New("fetching root tileset failed").
			WithType(ErrTypeLoadTileset).
			WithTag("uri", v.config.TilesetURI).
			Wrap(err)
	}

	root, err := tiles.ParseTileset(data, v.config.TilesetURI)
	if err != nil {
		return errors.New("parsing root tileset failed").
			WithType(ErrTypeLoadTileset).
			WithTag("uri", v.config.TilesetURI).
			Wrap(err)
	}

	v.tree = tiles.NewTree(root)
	logs.WithTag("session_uuid", v.SessionID).
		WithTag("uri", v.config.TilesetURI).
		WithTag("tiles", v.tree.Len()).
		Info("root tileset loaded")
	return nil
}

// Tree returns the loaded tile tree. It is nil until Load succeeds.
func (v *Viewer) Tree() *tiles.Tree {
	return v.tree
}

// Camera returns the current camera.
func (v *Viewer) Camera() Camera {
	v.cameraMutex.RLock()
	defer v.cameraMutex.RUnlock()

	return v.camera
}

// SetCamera changes the camera used from the next frame. The foveation
// settings are taken from the traversal configuration. Strongly cached tiles
// are released on the next frame.
func (v *Viewer) SetCamera(c Camera) {
	c.Foveation = v.config.Traversal.Foveation
	c.FoveatedConeSize = v.config.Traversal.FoveatedConeSize

	v.cameraMutex.Lock()
	defer v.cameraMutex.Unlock()

	v.camera = c
	v.cameraChanged = true
}

// Stats returns the counters of the last frame.
func (v *Viewer) Stats() FrameStats {
	v.statsMutex.RLock()
	defer v.statsMutex.RUnlock()

	return v.stats
}

// HandleFrame registers a handler called with the stats of every frame.
func (v *Viewer) HandleFrame(h func(FrameStats)) (cancel func()) {
	v.frameMutex.Lock()
	defer v.frameMutex.Unlock()

	id := v.frameHandlerIDs.New()
	v.frameHandlers[id] = h

	return func() {
		v.frameMutex.Lock()
		defer v.frameMutex.Unlock()

		delete(v.frameHandlers, id)
		v.frameHandlerIDs.Reuse(id)
	}
}

// Run starts the download workers and updates the viewer every frame until
// the context is canceled. The root tileset is loaded first when needed.
func (v *Viewer) Run(ctx context.Context) error {
	if v.tree == nil {
		if err := v.Load(ctx); err != nil {
			return err
		}
	}

	v.queue.Start(ctx)
	defer v.queue.Close()

	go v.summary.start(ctx)
	defer v.summary.log()

	ticker := time.NewTicker(v.config.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			v.Update()
		}
	}
}

// Update runs one frame: finished downloads are applied, the engine selects
// the tiles of the current camera, the download queue is dispatched and
// unused tiles are evicted.
func (v *Viewer) Update() FrameStats {
	applied := v.queue.Drain(v.apply)

	v.cameraMutex.Lock()
	v.frameCamera = v.camera
	cameraChanged := v.cameraChanged
	v.cameraChanged = false
	v.cameraMutex.Unlock()

	if cameraChanged {
		v.cache.ReleaseCached()
	}

	var root *tiles.Tile
	if v.tree != nil {
		root = v.tree.Root()
	}

	stats := FrameStats{
		Stats:     v.engine.Update(root),
		SessionID: v.SessionID,
		Applied:   applied,
	}

	v.queue.Dispatch()
	stats.Evicted = v.cache.UnloadUnused()
	v.cache.MarkAllUnused()

	if v.tree != nil {
		stats.Tiles = v.tree.Len()
	}
	stats.Cached = v.cache.Len()
	stats.StronglyCached = v.cache.CachedCount()
	stats.Pending = v.queue.Pending()
	stats.Downloading = v.queue.Downloading()
	stats.SceneActive = v.Scene.ActiveCount()
	stats.SceneVisible = v.Scene.VisibleCount()

	v.statsMutex.Lock()
	v.stats = stats
	v.statsMutex.Unlock()

	v.frameMutex.RLock()
	for _, h := range v.frameHandlers {
		h(stats)
	}
	v.frameMutex.RUnlock()

	return stats
}

func (v *Viewer) TileInView(t *tiles.Tile) bool {
	return v.frameCamera.InView(t.Bounds)
}

func (v *Viewer) CalculateError(t *tiles.Tile) traverse.Measurement {
	return v.frameCamera.Measure(t)
}

// RequestTileContents adds the tile to the cache and enqueues its download.
// Nothing is requested when the cache is full.
func (v *Viewer) RequestTileContents(t *tiles.Tile) {
	if t.ContentURI == "" || t.LoadState() != tiles.Unloaded {
		return
	}
	if !v.cache.Has(t) && !v.cache.Add(t, v.dispose) {
		return
	}

	epoch, ok := t.BeginLoad()
	if !ok {
		return
	}

	v.queue.Enqueue(download.Job{
		Tile:  t,
		Epoch: epoch,
		URI:   t.ContentURI,
	})
	v.summary.inc(summaryRequested)
}

func (v *Viewer) SetTileActive(t *tiles.Tile, active bool) {
	v.Scene.SetActive(t, active)
}

func (v *Viewer) SetTileVisible(t *tiles.Tile, visible bool) {
	v.Scene.SetVisible(t, visible)
}

func (v *Viewer) apply(r download.Result) {
	t := r.Tile

	if r.Stale() {
		v.discard(r)
		return
	}

	if r.Err != nil {
		v.fail(r, errors.New("loading tile content failed").Wrap(r.Err))
		return
	}

	typ := tiles.DetectContentType(r.Data, r.URI)
	if typ == tiles.ContentTileset && !t.External {
		v.fail(r, errors.New("tileset content on a model tile").
			WithType(ErrTypeUnsupportedContent))
		return
	}

	switch typ {
	case tiles.ContentUnknown:
		v.fail(r, errors.New("unsupported tile content").
			WithType(ErrTypeUnsupportedContent))

	case tiles.ContentTileset:
		sub, err := tiles.ParseTileset(r.Data, r.URI)
		if err != nil {
			v.fail(r, err)
			return
		}

		if !t.Complete(r.Epoch, tiles.Content{Type: typ}) {
			v.discard(r)
			return
		}
		v.tree.Splice(t, sub)
		v.summary.inc(summarySpliced)
		instrumentApplied(typ)

	default:
		if !t.Complete(r.Epoch, tiles.Content{Type: typ, Data: r.Data}) {
			v.discard(r)
			return
		}
		v.summary.inc(summaryLoaded)
		instrumentApplied(typ)
	}
}

func (v *Viewer) fail(r download.Result, err error) {
	if !r.Tile.Fail(r.Epoch) {
		v.discard(r)
		return
	}

	instrumentFailure(err)
	logs.Warn(errors.New("tile failed").
		WithTag("session_uuid", v.SessionID).
		WithTag("tile_id", r.Tile.ID).
		WithTag("uri", r.URI).
		WithTag("epoch", r.Epoch).
		Wrap(err))
	v.summary.inc(summaryFailed)
}

func (v *Viewer) discard(r download.Result) {
	logs.WithTag("session_uuid", v.SessionID).
		WithTag("tile_id", r.Tile.ID).
		WithTag("uri", r.URI).
		WithTag("epoch", r.Epoch).
		Debug("discarding stale tile content")
	v.summary.inc(summaryStale)
	instrumentStale()
}

// dispose is the cache unload callback. Disposing an external tileset tile
// removes its spliced subtree from the tree.
func (v *Viewer) dispose(t *tiles.Tile) {
	if t.External && len(t.Children) != 0 {
		var spliced []*tiles.Tile
		for _, c := range t.Children {
			tiles.Walk(c, func(d *tiles.Tile) bool {
				spliced = append(spliced, d)
				return true
			})
		}

		v.tree.Prune(t)
		for _, d := range spliced {
			v.cache.Uncache(d)
			if !v.cache.Remove(d) {
				v.release(d)
			}
		}
	}

	v.release(t)
	v.summary.inc(summaryEvicted)
}

func (v *Viewer) release(t *tiles.Tile) {
	t.Dispose()
	v.Scene.Remove(t)
	v.engine.Forget(t)
}
