package block

import (
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/bobboyms/stonedb/pkg/errors"
)

// Compression selects the algorithm a Codec applies to a block's payload
// before it is written to disk (a stonedb addition beyond the base §3
// layout, gated by FlagCompressed).
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionSnappy
)

var (
	sharedEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	sharedDecoder, _ = zstd.NewReader(nil)
)

func compress(algo Compression, data []byte) ([]byte, error) {
	switch algo {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return sharedEncoder.EncodeAll(data, make([]byte, 0, len(data))), nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, errors.New(errors.InvalidArgument, "block: unknown compression algorithm %d", algo)
	}
}

func decompress(algo Compression, data []byte) ([]byte, error) {
	switch algo {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := sharedDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(errors.CompressionError, err, "block: zstd decode failed")
		}
		return out, nil
	case CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, errors.Wrap(errors.CompressionError, err, "block: snappy decode failed")
		}
		return out, nil
	default:
		return nil, errors.New(errors.InvalidArgument, "block: unknown compression algorithm %d", algo)
	}
}
