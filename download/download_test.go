package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tilestream/tiles"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, data []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestDecompress(t *testing.T) {
	payload := []byte("b3dm payload")

	out, err := Decompress(gzipped(t, payload))
	require.NoError(t, err)
	require.Equal(t, payload, out)

	out, err = Decompress(zstded(t, payload))
	require.NoError(t, err)
	require.Equal(t, payload, out)

	out, err = Decompress(payload)
	require.NoError(t, err)
	require.Equal(t, payload, out)

	_, err = Decompress([]byte{0x1f, 0x8b, 0x00})
	require.Error(t, err)
}

func TestHTTPFetcher(t *testing.T) {
	compressed := gzipped(t, []byte("pnts"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tile.b3dm":
			w.Write([]byte("b3dm"))
		case "/tile.gz":
			w.Write(compressed)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := HTTPFetcher{Client: server.Client()}
	ctx := context.Background()

	data, err := f.Fetch(ctx, server.URL+"/tile.b3dm")
	require.NoError(t, err)
	require.Equal(t, []byte("b3dm"), data)

	data, err = f.Fetch(ctx, server.URL+"/tile.gz")
	require.NoError(t, err)
	require.Equal(t, []byte("pnts"), data)

	_, err = f.Fetch(ctx, server.URL+"/missing")
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeNotFound))

	_, err = f.Fetch(ctx, server.URL+"/broken")
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeTransport))
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "tile.b3dm")
	require.NoError(t, os.WriteFile(name, []byte("b3dm"), 0o600))

	f := NewFetcher(nil)

	data, err := f.Fetch(context.Background(), name)
	require.NoError(t, err)
	require.Equal(t, []byte("b3dm"), data)

	data, err = f.Fetch(context.Background(), "file://"+name)
	require.NoError(t, err)
	require.Equal(t, []byte("b3dm"), data)

	_, err = f.Fetch(context.Background(), filepath.Join(dir, "missing.b3dm"))
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeNotFound))
}

func newJob(t *testing.T, uri string) Job {
	tile := &tiles.Tile{}
	epoch, ok := tile.BeginLoad()
	require.True(t, ok)
	return Job{Tile: tile, Epoch: epoch, URI: uri}
}

func TestQueueDispatchOrder(t *testing.T) {
	q := NewQueue(nil, 1)
	q.Less = func(a, b Job) bool {
		return a.URI < b.URI
	}

	q.Enqueue(newJob(t, "c"))
	q.Enqueue(newJob(t, "a"))
	q.Enqueue(newJob(t, "b"))
	require.Equal(t, 3, q.Downloading())

	q.Dispatch()
	require.Equal(t, 3, q.Downloading())
	require.Equal(t, 2, q.Pending())
	require.Equal(t, "a", (<-q.jobs).URI)

	// The only worker slot is busy until its result is drained.
	q.Dispatch()
	require.Len(t, q.jobs, 0)
	require.Equal(t, 2, q.Pending())
}

func TestQueueDropsStaleJobs(t *testing.T) {
	q := NewQueue(nil, 2)

	j := newJob(t, "a")
	q.Enqueue(j)
	q.Enqueue(newJob(t, "b"))
	j.Tile.Dispose()

	q.Dispatch()
	require.Equal(t, 1, q.Downloading())
	require.Equal(t, "b", (<-q.jobs).URI)

	r := q.fetch(context.Background(), j)
	require.True(t, r.Skipped)
}

func TestQueueRun(t *testing.T) {
	q := NewQueue(FetcherFunc(func(ctx context.Context, uri string) ([]byte, error) {
		if uri == "broken" {
			return nil, errors.New("broken").WithType(ErrTypeTransport)
		}
		return []byte(uri), nil
	}), 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Close()

	for _, uri := range []string{"a", "b", "c", "broken"} {
		q.Enqueue(newJob(t, uri))
	}

	results := make(map[string]Result)
	require.Eventually(t, func() bool {
		q.Dispatch()
		q.Drain(func(r Result) {
			results[r.URI] = r
		})
		return len(results) == 4
	}, time.Second, time.Millisecond*5)

	require.Zero(t, q.Downloading())
	require.Equal(t, []byte("a"), results["a"].Data)
	require.NoError(t, results["c"].Err)
	require.True(t, errors.IsType(results["broken"].Err, ErrTypeTransport))
}
