package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"cogentcore.org/core/math32"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/tilestream/cache"
	"github.com/aukilabs/tilestream/download"
	"github.com/aukilabs/tilestream/featureflag"
	tilestreamhttp "github.com/aukilabs/tilestream/http"
	"github.com/aukilabs/tilestream/smoketest"
	"github.com/aukilabs/tilestream/traverse"
	"github.com/aukilabs/tilestream/viewer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The tilestream version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "tilestream_info",
		Help:        "Tilestream information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	TilesetURL         string          `cli:""        env:"TILESTREAM_TILESET_URL"           help:"The url or file path of the root tileset."`
	Addr               string          `cli:""        env:"TILESTREAM_ADDR"                  help:"Listening address for the stats and frames endpoints."`
	AdminAddr          string          `cli:""        env:"TILESTREAM_ADMIN_ADDR"            help:"Admin listening address."`
	LogLevel           string          `cli:""        env:"TILESTREAM_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool            `cli:""        env:"TILESTREAM_LOG_INDENT"            help:"Indent logs."`
	FrameDuration      time.Duration   `cli:",hidden" env:"TILESTREAM_FRAME_DURATION"        help:"The duration of a viewer frame."`
	LogSummaryInterval time.Duration   `cli:",hidden" env:"TILESTREAM_LOG_SUMMARY_INTERVAL"  help:"The duration between each tile summary log."`
	ShutdownTimeout    time.Duration   `cli:",hidden" env:"TILESTREAM_SHUTDOWN_TIMEOUT"      help:"The time given to in-flight requests when stopping."`
	Traversal          traversalConfig `cli:",hidden" env:"-"                                help:"Traversal configuration."`
	Cache              cacheConfig     `cli:",hidden" env:"-"                                help:"Tile cache configuration."`
	Download           downloadConfig  `cli:",hidden" env:"-"                                help:"Download configuration."`
	Camera             cameraConfig    `cli:",hidden" env:"-"                                help:"Camera configuration."`
	Events             eventsConfig    `cli:",hidden" env:"-"                                help:"Event pusher configuration."`
	FeatureFlags       []string        `cli:",hidden" env:"TILESTREAM_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version            bool            `cli:""        env:"-"                                help:"Show version."`
	Help               bool            `cli:""        env:"-"                                help:"Show help."`
}

type traversalConfig struct {
	Policy                 string  `cli:",hidden" env:"TILESTREAM_TRAVERSAL_POLICY"                    help:"Traversal policy (legacy|scheduled)."`
	ErrorTarget            float64 `cli:",hidden" env:"TILESTREAM_TRAVERSAL_ERROR_TARGET"              help:"The screen space error target in pixels."`
	ErrorThreshold         float64 `cli:",hidden" env:"TILESTREAM_TRAVERSAL_ERROR_THRESHOLD"           help:"The error multiplier under which a tile is displayed while its children load. 0 is unbounded."`
	MaxDepth               int     `cli:",hidden" env:"TILESTREAM_TRAVERSAL_MAX_DEPTH"                 help:"The maximum traversal depth. 0 is unlimited."`
	LoadSiblings           bool    `cli:",hidden" env:"TILESTREAM_TRAVERSAL_LOAD_SIBLINGS"             help:"Load the siblings of used tiles."`
	StopAtEmptyTiles       bool    `cli:",hidden" env:"TILESTREAM_TRAVERSAL_STOP_AT_EMPTY_TILES"       help:"Measure the error of tiles without content."`
	CullWithChildrenBounds bool    `cli:",hidden" env:"TILESTREAM_TRAVERSAL_CULL_WITH_CHILDREN_BOUNDS" help:"Cull replaced tiles whose children are all out of view."`
	CacheDepth             int     `cli:",hidden" env:"TILESTREAM_TRAVERSAL_CACHE_DEPTH"               help:"The depth down to which tiles are pre-warmed."`
	MaxCacheChildren       int     `cli:",hidden" env:"TILESTREAM_TRAVERSAL_MAX_CACHE_CHILDREN"        help:"The maximum number of pre-warmed tiles."`
	LookaheadDepth         int     `cli:",hidden" env:"TILESTREAM_TRAVERSAL_LOOKAHEAD_DEPTH"           help:"The number of unloaded layers the scheduler looks ahead."`
	FoveatedConeSize       float64 `cli:",hidden" env:"TILESTREAM_TRAVERSAL_FOVEATED_CONE_SIZE"        help:"The fraction of the field of view treated as the fovea."`
}

type cacheConfig struct {
	MinSize       int     `cli:",hidden" env:"TILESTREAM_CACHE_MIN_SIZE"       help:"The number of tiles under which nothing is evicted."`
	MaxSize       int     `cli:",hidden" env:"TILESTREAM_CACHE_MAX_SIZE"       help:"The maximum number of cached tiles."`
	UnloadPercent float64 `cli:",hidden" env:"TILESTREAM_CACHE_UNLOAD_PERCENT" help:"The fraction of the cache evicted at most per frame."`
}

type downloadConfig struct {
	MaxJobs int           `cli:",hidden" env:"TILESTREAM_DOWNLOAD_MAX_JOBS" help:"The number of concurrent downloads."`
	Timeout time.Duration `cli:",hidden" env:"TILESTREAM_DOWNLOAD_TIMEOUT"  help:"The timeout of a tile download."`
}

type cameraConfig struct {
	Position string  `cli:",hidden" env:"TILESTREAM_CAMERA_POSITION" help:"The camera position (x,y,z)."`
	Target   string  `cli:",hidden" env:"TILESTREAM_CAMERA_TARGET"   help:"The point the camera looks at (x,y,z)."`
	FOV      float64 `cli:",hidden" env:"TILESTREAM_CAMERA_FOV"      help:"The vertical field of view in degrees."`
	Width    int     `cli:",hidden" env:"TILESTREAM_CAMERA_WIDTH"    help:"The viewport width in pixels."`
	Height   int     `cli:",hidden" env:"TILESTREAM_CAMERA_HEIGHT"   help:"The viewport height in pixels."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"TILESTREAM_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"TILESTREAM_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"TILESTREAM_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"TILESTREAM_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	traversal := traverse.DefaultConfig()

	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		FrameDuration:      viewer.DefaultFrameDuration,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    tilestreamhttp.DefaultShutdownTimeout,
		Traversal: traversalConfig{
			Policy:           traversal.Policy.String(),
			ErrorTarget:      traversal.ErrorTarget,
			LoadSiblings:     traversal.LoadSiblings,
			StopAtEmptyTiles: traversal.StopAtEmptyTiles,
			CacheDepth:       traversal.CacheDepth,
			MaxCacheChildren: traversal.MaxCacheChildren,
			LookaheadDepth:   traversal.LookaheadDepth,
			FoveatedConeSize: traversal.FoveatedConeSize,
		},
		Cache: cacheConfig{
			MinSize:       cache.DefaultMinSize,
			MaxSize:       cache.DefaultMaxSize,
			UnloadPercent: cache.DefaultUnloadPercent,
		},
		Download: downloadConfig{
			MaxJobs: download.DefaultMaxJobs,
			Timeout: time.Second * 30,
		},
		Camera: cameraConfig{
			Position: "0,0,0",
			Target:   "0,0,-1",
			FOV:      60,
			Width:    viewer.DefaultWidth,
			Height:   viewer.DefaultHeight,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Streams a 3D tileset from the point of view of a camera.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "tilestream",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	viewerConfig, err := newViewerConfig(conf)
	if err != nil {
		logs.Fatal(err)
	}

	camera, err := newCamera(conf.Camera)
	if err != nil {
		logs.Fatal(err)
	}

	fetcher := download.NewFetcher(&http.Client{
		Transport: transport,
		Timeout:   conf.Download.Timeout,
	})

	v := viewer.New(viewerConfig, fetcher)
	v.SetCamera(camera)

	var ready atomic.Bool
	readinessCheck := ready.Load

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		if err := v.Load(ctx); err != nil {
			logs.Error(err)
			return
		}
		ready.Store(true)

		if err := v.Run(ctx); err != nil {
			logs.Error(errors.New("running viewer failed").Wrap(err))
		}
	}()

	var service http.ServeMux
	service.Handle("/health", tilestreamhttp.HandleWithCORS(http.HandlerFunc(tilestreamhttp.HandleHealthCheck)))
	service.Handle("/ready", tilestreamhttp.HandleWithCORS(tilestreamhttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/version", tilestreamhttp.HandleWithCORS(tilestreamhttp.HandleVersion(version)))
	service.Handle("/stats", tilestreamhttp.HandleWithCORS(tilestreamhttp.HandleStats(v.Stats)))
	service.Handle("/frames", tilestreamhttp.HandleFrames(v))
	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Config:  viewerConfig,
		Fetcher: fetcher,
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", tilestreamhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", tilestreamhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("tileset_url", conf.TilesetURL).
		WithTag("policy", viewerConfig.Traversal.Policy.String()).
		WithTag("session_uuid", v.SessionID).
		Info("starting tilestream")

	tilestreamhttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			tilestreamhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)

	wg.Wait()
}

func newViewerConfig(conf config) (viewer.Config, error) {
	policy, ok := traverse.ParsePolicy(conf.Traversal.Policy)
	if !ok {
		return viewer.Config{}, errors.New("invalid traversal policy").
			WithTag("policy", conf.Traversal.Policy)
	}

	traversal := traverse.Config{
		Policy:                 policy,
		ErrorTarget:            conf.Traversal.ErrorTarget,
		ErrorThreshold:         conf.Traversal.ErrorThreshold,
		MaxDepth:               conf.Traversal.MaxDepth,
		LoadSiblings:           conf.Traversal.LoadSiblings,
		StopAtEmptyTiles:       conf.Traversal.StopAtEmptyTiles,
		CullWithChildrenBounds: conf.Traversal.CullWithChildrenBounds,
		CacheDepth:             conf.Traversal.CacheDepth,
		MaxCacheChildren:       conf.Traversal.MaxCacheChildren,
		LookaheadDepth:         conf.Traversal.LookaheadDepth,
		FoveatedConeSize:       conf.Traversal.FoveatedConeSize,
	}
	featureflag.New(conf.FeatureFlags).Apply(&traversal)

	return viewer.Config{
		TilesetURI:         conf.TilesetURL,
		Traversal:          traversal,
		CacheMinSize:       conf.Cache.MinSize,
		CacheMaxSize:       conf.Cache.MaxSize,
		CacheUnloadPercent: conf.Cache.UnloadPercent,
		MaxJobs:            conf.Download.MaxJobs,
		FrameDuration:      conf.FrameDuration,
		LogSummaryInterval: conf.LogSummaryInterval,
	}, nil
}

func newCamera(conf cameraConfig) (viewer.Camera, error) {
	position, err := parseVector(conf.Position)
	if err != nil {
		return viewer.Camera{}, errors.New("invalid camera position").Wrap(err)
	}

	target, err := parseVector(conf.Target)
	if err != nil {
		return viewer.Camera{}, errors.New("invalid camera target").Wrap(err)
	}

	if position == target {
		return viewer.Camera{}, errors.New("camera target is the camera position").
			WithTag("position", conf.Position)
	}

	return viewer.LookAt(position, target, conf.FOV, conf.Width, conf.Height), nil
}

func parseVector(s string) (math32.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math32.Vector3{}, errors.New("vector must have 3 components").
			WithTag("vector", s)
	}

	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math32.Vector3{}, errors.New("invalid vector component").
				WithTag("vector", s).
				Wrap(err)
		}
		v[i] = float32(f)
	}

	return math32.Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func validateConfig(conf config) error {
	if conf.TilesetURL == "" {
		return errors.New("tileset url is empty")
	}

	if _, ok := traverse.ParsePolicy(conf.Traversal.Policy); !ok {
		return errors.New("invalid traversal policy").
			WithTag("policy", conf.Traversal.Policy)
	}

	if conf.Traversal.ErrorTarget < 0 {
		return errors.New("negative error target").
			WithTag("error_target", conf.Traversal.ErrorTarget)
	}

	if conf.Cache.MinSize > conf.Cache.MaxSize {
		return errors.New("cache min size is greater than cache max size").
			WithTag("min_size", conf.Cache.MinSize).
			WithTag("max_size", conf.Cache.MaxSize)
	}

	if conf.Download.MaxJobs <= 0 {
		return errors.New("max jobs must be positive").
			WithTag("max_jobs", conf.Download.MaxJobs)
	}

	if conf.Camera.FOV <= 0 || conf.Camera.FOV >= 180 {
		return errors.New("camera fov must be between 0 and 180 degrees").
			WithTag("fov", conf.Camera.FOV)
	}

	if conf.Camera.Width <= 0 || conf.Camera.Height <= 0 {
		return errors.New("invalid camera resolution").
			WithTag("width", conf.Camera.Width).
			WithTag("height", conf.Camera.Height)
	}

	return nil
}
