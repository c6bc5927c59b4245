// internal/safe/compression.go
package safe

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoding tags written as the first byte of every stored object.
const (
	encodingRaw  byte = 0
	encodingZstd byte = 1
)

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// zstd level; mapped with zstd.EncoderLevelFromZstd
	Level int
}

// DefaultCompressionOptions provides sensible defaults
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 1024,
		Level:   3,
	}
}

// compressionManager encodes object payloads, pooling zstd coders.
type compressionManager struct {
	opts CompressionOptions

	encoders sync.Pool
	decoders sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Fail early on options zstd rejects.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test encoder: %w", err)
	}
	enc.Close()

	cm := &compressionManager{
		opts: opts,
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil,
					zstd.WithEncoderLevel(level),
					zstd.WithEncoderConcurrency(1),
				)
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
	}
	return cm, nil
}

// encode returns the stored form of content: a one byte encoding tag
// followed by the payload. Content is stored raw when it is small or does
// not shrink.
func (cm *compressionManager) encode(content []byte) []byte {
	if len(content) >= cm.opts.MinSize {
		enc := cm.encoders.Get().(*zstd.Encoder)
		defer cm.encoders.Put(enc)

		out := enc.EncodeAll(content, []byte{encodingZstd})
		if len(out) < len(content)+1 {
			return out
		}
	}

	out := make([]byte, 0, len(content)+1)
	out = append(out, encodingRaw)
	return append(out, content...)
}

func (cm *compressionManager) decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("empty object record")
	}

	switch stored[0] {
	case encodingRaw:
		return append([]byte{}, stored[1:]...), nil
	case encodingZstd:
		dec := cm.decoders.Get().(*zstd.Decoder)
		defer cm.decoders.Put(dec)

		out, err := dec.DecodeAll(stored[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing object: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown object encoding %d", stored[0])
	}
}
