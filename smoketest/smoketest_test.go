package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tilestream/download"
	"github.com/aukilabs/tilestream/traverse"
	"github.com/aukilabs/tilestream/viewer"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

const testTileset = `{
	"asset": {"version": "1.0"},
	"geometricError": 200,
	"root": {
		"boundingVolume": {"sphere": [0, 0, -50, 20]},
		"geometricError": 100,
		"content": {"uri": "root.b3dm"},
		"children": [
			{
				"boundingVolume": {"sphere": [-5, 0, -50, 5]},
				"geometricError": 0,
				"content": {"uri": "a.b3dm"}
			},
			{
				"boundingVolume": {"sphere": [5, 0, -50, 5]},
				"geometricError": 0,
				"content": {"uri": "b.b3dm"}
			}
		]
	}
}`

func testFetcher(block bool) download.Fetcher {
	return download.FetcherFunc(func(ctx context.Context, uri string) ([]byte, error) {
		switch {
		case uri == "data/tileset.json":
			return []byte(testTileset), nil

		case block:
			<-ctx.Done()
			return nil, ctx.Err()

		case strings.HasSuffix(uri, ".b3dm"):
			return []byte("b3dm"), nil

		default:
			return nil, errors.New("not found").WithType(download.ErrTypeNotFound)
		}
	})
}

func testConfig() viewer.Config {
	return viewer.Config{
		TilesetURI:    "data/tileset.json",
		Traversal:     traverse.DefaultConfig(),
		MaxJobs:       4,
		FrameDuration: time.Millisecond,
	}
}

func TestRun(t *testing.T) {
	t.Run("settles", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
		defer cancel()

		res, err := Run(ctx, testConfig(), testFetcher(false), 0)
		require.NoError(t, err)
		require.True(t, res.Settled)
		require.Equal(t, 3, res.Stats.Tiles)
		require.Equal(t, 2, res.Stats.SceneVisible)
	})

	t.Run("does not settle", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*50)
		defer cancel()

		res, err := Run(ctx, testConfig(), testFetcher(true), 0)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeNotSettled))
		require.False(t, res.Settled)
	})

	t.Run("frame limit", func(t *testing.T) {
		res, err := Run(context.Background(), testConfig(), testFetcher(true), 3)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeNotSettled))
		require.GreaterOrEqual(t, res.Frames, 3)
	})

	t.Run("missing tileset", func(t *testing.T) {
		c := testConfig()
		c.TilesetURI = "data/missing.json"

		_, err := Run(context.Background(), c, testFetcher(false), 0)
		require.Error(t, err)
		require.True(t, errors.IsType(err, viewer.ErrTypeLoadTileset))
	})
}

func TestHandleSmokeTest(t *testing.T) {
	h := HandleSmokeTest(context.Background(), Options{
		Config:  testConfig(),
		Fetcher: testFetcher(false),
	})

	t.Run("bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString("{")))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{"tileset_uri": "data/tileset.json", "timeout": "soon"}`)))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{"tileset_uri": "data/tileset.json", "timeout": "2s"}`)))
		require.Equal(t, http.StatusOK, w.Code)

		var res Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.True(t, res.Settled)
		require.Empty(t, res.Error)
		require.Equal(t, "data/tileset.json", res.TilesetURI)
	})
}
