package block

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// CompressAlgo selects the compression applied to a published container.
type CompressAlgo int

const (
	CompressGzip CompressAlgo = iota
	CompressZlib
	CompressZstd
)

// ErrUnknownFormat is returned by Decompress for data with no recognized magic.
var ErrUnknownFormat = errors.New("unrecognized compression format")

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compress compresses a container for publishing.
func Compress(data []byte, algo CompressAlgo) ([]byte, error) {
	var buf bytes.Buffer
	var zw io.WriteCloser
	var err error
	switch algo {
	case CompressGzip:
		zw, err = gzip.NewWriterLevel(&buf, gzip.BestCompression)
	case CompressZlib:
		zw, err = zlib.NewWriterLevel(&buf, zlib.BestCompression)
	case CompressZstd:
		zw, err = zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("unknown compression algo %d", algo)
	}
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a downloaded container. The format is detected from
// the leading magic bytes: gzip, zlib and zstd streams are accepted.
func Decompress(data []byte) ([]byte, error) {
	var r io.Reader
	switch {
	case bytes.HasPrefix(data, magicGzip):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case bytes.HasPrefix(data, magicZstd):
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case isZlib(data):
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	default:
		return nil, ErrUnknownFormat
	}
	return io.ReadAll(r)
}

// isZlib checks the RFC 1950 header: deflate method and a valid check value.
func isZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
