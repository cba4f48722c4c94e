// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects how a checkpoint payload is compressed on disk.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
)

// ParseCodec maps a configuration name to a Codec. The empty string
// selects zstd.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "zstd":
		return CodecZstd, nil
	case "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	}
	return 0, fmt.Errorf("unknown checkpoint codec %q", name)
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// Header layout: magic[4] version[1] codec[1] rawSize[4, little endian].
var magic = []byte("MCKP")

const (
	formatVersion = 1
	headerSize    = 10

	// maxLZ4Ratio bounds how far an LZ4 block can expand on decode.
	maxLZ4Ratio = 255
)

// ErrBadFormat reports a file that is not a checkpoint or is truncated.
var ErrBadFormat = errors.New("not a checkpoint file")

// rawSizeField returns n as the header's 32-bit size field.
func rawSizeField(n int) (uint32, error) {
	if uint64(n) > math.MaxUint32 {
		return 0, fmt.Errorf("checkpoint payload of %d bytes exceeds the %d byte frame limit", n, uint64(math.MaxUint32))
	}
	return uint32(n), nil
}

func encodeFrame(raw []byte, codec Codec) ([]byte, error) {
	rawSize, err := rawSizeField(len(raw))
	if err != nil {
		return nil, err
	}
	payload := raw
	switch codec {
	case CodecNone:
	case CodecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(raw, nil)
		_ = enc.Close()
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible; store as-is.
			codec = CodecNone
		} else {
			payload = buf[:n]
		}
	default:
		return nil, fmt.Errorf("unknown checkpoint codec %d", codec)
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out, magic)
	out[4] = formatVersion
	out[5] = byte(codec)
	binary.LittleEndian.PutUint32(out[6:], rawSize)
	return append(out, payload...), nil
}

func decodeFrame(data []byte) ([]byte, Codec, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic) {
		return nil, 0, ErrBadFormat
	}
	if data[4] != formatVersion {
		return nil, 0, fmt.Errorf("checkpoint format version %d not supported", data[4])
	}
	codec := Codec(data[5])
	size := int(binary.LittleEndian.Uint32(data[6:]))
	payload := data[headerSize:]

	var raw []byte
	switch codec {
	case CodecNone:
		raw = payload
	case CodecZstd:
		// The decoder refuses to produce more than the header declares;
		// the initial buffer is sized from the payload, not the header.
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(max(size, 1))))
		if err != nil {
			return nil, codec, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(payload, make([]byte, 0, min(size, 4*len(payload))))
		if err != nil {
			return nil, codec, fmt.Errorf("zstd decode: %w", err)
		}
	case CodecLZ4:
		if size > maxLZ4Ratio*len(payload) {
			return nil, codec, fmt.Errorf("%w: header claims %d bytes from a %d byte lz4 block", ErrBadFormat, size, len(payload))
		}
		raw = make([]byte, size)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, codec, fmt.Errorf("lz4 decode: %w", err)
		}
		raw = raw[:n]
	default:
		return nil, codec, fmt.Errorf("unknown checkpoint codec %d", codec)
	}
	if len(raw) != size {
		return nil, codec, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrBadFormat, len(raw), size)
	}
	return raw, codec, nil
}
