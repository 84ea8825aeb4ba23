// Package compression shrinks exported telemetry snapshots for transfer to
// the consumer. Plain JSON stays the canonical snapshot form; compression
// is negotiated per request.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec compresses and decompresses snapshot payloads.
type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Encoding() string
}

// Gzip is a gzip Codec.
type Gzip struct{}

func (Gzip) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (Gzip) Encoding() string { return "gzip" }

// Zstd is a zstd Codec.
type Zstd struct{}

func (Zstd) Compress(data []byte) ([]byte, error) {
	w, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	out := w.EncodeAll(data, nil)
	w.Close()
	return out, nil
}

func (Zstd) Decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.DecodeAll(data, nil)
}

func (Zstd) Encoding() string { return "zstd" }

// ForEncoding returns the codec for an HTTP content coding name.
func ForEncoding(name string) (Codec, error) {
	switch name {
	case "gzip":
		return Gzip{}, nil
	case "zstd":
		return Zstd{}, nil
	default:
		return nil, fmt.Errorf("unsupported content coding %q", name)
	}
}
