// Package download fetches tile contents on a bounded pool of workers.
package download

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeTransport = "transport"
	ErrTypeNotFound  = "not_found"
)

// Fetcher fetches the payload identified by a URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// FetcherFunc is a function that implements the Fetcher interface.
type FetcherFunc func(ctx context.Context, uri string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f(ctx, uri)
}

// NewFetcher returns a fetcher that reads http and https URIs with the given
// client and any other URI from the file system.
func NewFetcher(client *http.Client) Fetcher {
	httpFetcher := HTTPFetcher{Client: client}
	var fileFetcher FileFetcher

	return FetcherFunc(func(ctx context.Context, uri string) ([]byte, error) {
		if isHTTP(uri) {
			return httpFetcher.Fetch(ctx, uri)
		}
		return fileFetcher.Fetch(ctx, uri)
	})
}

// HTTPFetcher fetches payloads over HTTP. Compressed payloads are
// decompressed.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.New("creating request failed").
			WithType(ErrTypeTransport).
			WithTag("uri", uri).
			Wrap(err)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.New("fetching content failed").
			WithType(ErrTypeTransport).
			WithTag("uri", uri).
			Wrap(err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, errors.New("content not found").
			WithType(ErrTypeNotFound).
			WithTag("uri", uri).
			WithTag("status", res.StatusCode)

	case res.StatusCode >= http.StatusBadRequest:
		return nil, errors.New("fetching content failed").
			WithType(ErrTypeTransport).
			WithTag("uri", uri).
			WithTag("status", res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.New("reading content failed").
			WithType(ErrTypeTransport).
			WithTag("uri", uri).
			Wrap(err)
	}

	return Decompress(data)
}

// FileFetcher reads payloads from the file system. Compressed payloads are
// decompressed.
type FileFetcher struct{}

func (f FileFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.New("content not found").
			WithType(ErrTypeNotFound).
			WithTag("uri", uri).
			Wrap(err)
	}
	if err != nil {
		return nil, errors.New("reading content failed").
			WithType(ErrTypeTransport).
			WithTag("uri", uri).
			Wrap(err)
	}

	return Decompress(data)
}

func isHTTP(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}
