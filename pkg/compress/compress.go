//nolint:revive // exported
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

type CompressType = int8

const (
	CompressTypeNone CompressType = 0
	CompressTypeGzip CompressType = 1
	CompressTypeZstd CompressType = 2
)

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}

	zstdEncoderOnce sync.Once
	zstdEncoder     *zstd.Encoder
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
)

func getZstdEncoder() *zstd.Encoder {
	zstdEncoderOnce.Do(func() {
		zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	return zstdEncoder
}

func getZstdDecoder() *zstd.Decoder {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdDecoder
}

func Compress(data []byte, compressType CompressType) ([]byte, error) {
	switch compressType {
	case CompressTypeNone:
		return data, nil
	case CompressTypeGzip:
		var buf bytes.Buffer
		z := gzipWriterPool.Get().(*gzip.Writer)
		defer gzipWriterPool.Put(z)
		z.Reset(&buf)
		if _, err := z.Write(data); err != nil {
			return nil, err
		}
		if err := z.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressTypeZstd:
		return getZstdEncoder().EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("unknown compress type: %d", compressType)
}

func Decompress(data []byte, compressType CompressType) ([]byte, error) {
	switch compressType {
	case CompressTypeNone:
		return data, nil
	case CompressTypeGzip:
		z, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		return io.ReadAll(z)
	case CompressTypeZstd:
		return getZstdDecoder().DecodeAll(data, nil)
	}
	return nil, fmt.Errorf("unknown compress type: %d", compressType)
}
