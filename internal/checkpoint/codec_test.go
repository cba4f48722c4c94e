// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withRawSize returns a copy of frame whose header declares size bytes.
func withRawSize(frame []byte, size uint32) []byte {
	out := bytes.Clone(frame)
	binary.LittleEndian.PutUint32(out[6:], size)
	return out
}

func TestDecodeFrameRejectsInflatedLZ4Size(t *testing.T) {
	raw := bytes.Repeat([]byte("mesh"), 256)
	frame, err := encodeFrame(raw, CodecLZ4)
	require.NoError(t, err)
	require.Equal(t, byte(CodecLZ4), frame[5])

	_, _, err = decodeFrame(withRawSize(frame, math.MaxUint32))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestDecodeFrameZstdSizeMismatch(t *testing.T) {
	raw := bytes.Repeat([]byte("mesh"), 256)
	frame, err := encodeFrame(raw, CodecZstd)
	require.NoError(t, err)

	got, _, err := decodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// Claiming fewer bytes caps the decoder below the real output.
	_, _, err = decodeFrame(withRawSize(frame, 16))
	assert.Error(t, err)

	// Claiming more bytes than the payload holds is caught after decoding.
	_, _, err = decodeFrame(withRawSize(frame, math.MaxUint32))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestDecodeFrameNoneSizeMismatch(t *testing.T) {
	frame, err := encodeFrame([]byte("weights"), CodecNone)
	require.NoError(t, err)
	_, _, err = decodeFrame(withRawSize(frame, 1<<20))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestRawSizeFieldLimit(t *testing.T) {
	n, err := rawSizeField(1024)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), n)

	if strconv.IntSize < 64 {
		t.Skip("int cannot exceed the frame limit on this platform")
	}
	limit := uint64(math.MaxUint32)
	n, err = rawSizeField(int(limit))
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), n)

	_, err = rawSizeField(int(limit) + 1)
	assert.ErrorContains(t, err, "exceeds")
}
