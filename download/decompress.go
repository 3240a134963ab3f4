package download

import (
	"bytes"
	"io"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// Decompress returns the payload decompressed when it starts with a gzip or
// a zstd header, or unchanged otherwise.
func Decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.New("reading gzip header failed").
				WithType(ErrTypeTransport).
				Wrap(err)
		}
		defer r.Close()

		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.New("decompressing gzip content failed").
				WithType(ErrTypeTransport).
				Wrap(err)
		}
		return out, nil

	case bytes.HasPrefix(data, zstdMagic):
		zstdOnce.Do(func() {
			zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		})
		if zstdErr != nil {
			return nil, errors.New("creating zstd decoder failed").Wrap(zstdErr)
		}

		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.New("decompressing zstd content failed").
				WithType(ErrTypeTransport).
				Wrap(err)
		}
		return out, nil

	default:
		return data, nil
	}
}
