// Package smoketest runs a headless viewer against a tileset until every tile
// needed by the default camera is streamed.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tilestream/download"
	"github.com/aukilabs/tilestream/viewer"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeNotSettled = "not_settled"

	DefaultTimeout   = time.Second * 30
	DefaultMaxFrames = 10000
)

type Options struct {
	// The viewer configuration of a run. The tileset uri is replaced by the
	// one of the request.
	Config viewer.Config

	Fetcher download.Fetcher
}

// Request is the body of a smoke test request.
type Request struct {
	TilesetURI string `json:"tileset_uri"`
	MaxFrames  int    `json:"max_frames"`

	// A duration string such as "10s".
	Timeout string `json:"timeout"`
}

// Result is the outcome of a smoke test run.
type Result struct {
	TilesetURI string            `json:"tileset_uri"`
	Settled    bool              `json:"settled"`
	Frames     int               `json:"frames"`
	Stats      viewer.FrameStats `json:"stats"`
	Duration   time.Duration     `json:"duration"`
	Error      string            `json:"error,omitempty"`
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.TilesetURI == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		timeout := DefaultTimeout
		if req.Timeout != "" {
			if timeout, err = time.ParseDuration(req.Timeout); err != nil || timeout <= 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		c := opts.Config
		c.TilesetURI = req.TilesetURI

		res, err := Run(ctx, c, opts.Fetcher, req.MaxFrames)
		if err != nil {
			logs.WithTag("tileset_uri", req.TilesetURI).Warn(err)
			res.Error = err.Error()
		}

		data, err := json.Marshal(res)
		if err != nil {
			logs.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// Run streams the tileset until no tile is requested or downloading, the
// maximum number of frames is reached or the context is canceled.
func Run(ctx context.Context, c viewer.Config, f download.Fetcher, maxFrames int) (Result, error) {
	start := time.Now()
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := Result{TilesetURI: c.TilesetURI}

	v := viewer.New(c, f)
	if err := v.Load(ctx); err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	var mutex sync.Mutex
	v.HandleFrame(func(s viewer.FrameStats) {
		mutex.Lock()
		defer mutex.Unlock()

		res.Frames++
		res.Stats = s

		if settled(s) {
			res.Settled = true
			cancel()
		}
		if res.Frames >= maxFrames {
			cancel()
		}
	})

	err := v.Run(ctx)

	mutex.Lock()
	defer mutex.Unlock()

	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	if !res.Settled {
		return res, errors.New("tileset did not settle").
			WithType(ErrTypeNotSettled).
			WithTag("tileset_uri", c.TilesetURI).
			WithTag("frames", res.Frames).
			WithTag("downloading", res.Stats.Downloading)
	}

	logs.WithTag("tileset_uri", c.TilesetURI).
		WithTag("session_uuid", v.SessionID).
		WithTag("frames", res.Frames).
		WithTag("visible", res.Stats.SceneVisible).
		WithTag("duration", res.Duration).
		Info("smoke test settled")
	return res, nil
}

func settled(s viewer.FrameStats) bool {
	return s.Frame > 1 && s.Requested == 0 && s.Downloading == 0
}
