// Package codec implements the pluggable compression layer used to
// compress and decompress shard payloads. The codec in effect for a
// shard is chosen at shard-creation time and recorded in the shard's
// header and sidecar metadata so a reopened shard can be decompressed
// without being told the codec out of band.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/nyarudb/nyarudb2/pkg/metrics"
)

// Kind identifies a codec variant. It is stored as a single byte in
// the shard payload header (see pkg/shard).
type Kind byte

const (
	// None is the identity codec: compress/decompress are no-ops.
	None Kind = 0
	// General is a general-purpose byte-stream compressor (zstd).
	General Kind = 1
)

// String implements fmt.Stringer for log and error messages.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case General:
		return "general"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// Failure wraps a codec error raised during compression or
// decompression, or while resolving an unknown Kind.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("codec: %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Codec compresses and decompresses opaque byte buffers.
type Codec interface {
	Kind() Kind
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ByKind returns the Codec implementation for a Kind. It is the
// inverse of the byte written into a shard's header.
func ByKind(k Kind) (Codec, error) {
	switch k {
	case None:
		return noneCodec{}, nil
	case General:
		return generalCodec{}, nil
	default:
		return nil, &Failure{Op: "lookup", Err: fmt.Errorf("unknown codec kind %d", byte(k))}
	}
}

type noneCodec struct{}

func (noneCodec) Kind() Kind { return None }

func (noneCodec) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCodec) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// generalCodec is a zstd-backed general-purpose compressor, the same
// family of dependency the broader NyaruDB2 example pack reaches for
// (github.com/klauspost/compress) when a shard-sized byte stream needs
// fast general compression rather than a domain-specific codec.
type generalCodec struct{}

func (generalCodec) Kind() Kind { return General }

func (generalCodec) Compress(data []byte) ([]byte, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.CodecCompressDuration, General.String())

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, &Failure{Op: "compress", Err: err}
	}
	defer enc.Close()

	var buf bytes.Buffer
	w := enc
	// Reset onto the destination buffer to avoid holding an internal
	// goroutine pool per call.
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, &Failure{Op: "compress", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &Failure{Op: "compress", Err: err}
	}
	return buf.Bytes(), nil
}

func (generalCodec) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &Failure{Op: "decompress", Err: err}
	}
	defer dec.Close()

	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, &Failure{Op: "decompress", Err: fmt.Errorf("malformed input: %w", err)}
	}
	return out, nil
}
