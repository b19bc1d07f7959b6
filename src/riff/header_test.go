package riff_test

import (
	"fmt"
	"image/color"
	"testing"

	"github.com/seventv/WebPProcessor/src/riff"
	"github.com/seventv/WebPProcessor/src/riff/rifftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opaqueRed = color.NRGBA{R: 0xff, A: 0xff}

func TestParseHeadersSimpleLossless(t *testing.T) {
	bs := rifftest.SolidVP8L(7, 3, color.NRGBA{G: 0x80, A: 0x40})
	data := rifftest.File(rifftest.Chunk(riff.TagVP8L, bs))

	hdr, err := riff.ParseHeaders(data, true)
	require.NoError(t, err)

	assert.True(t, hdr.IsLossless)
	assert.Equal(t, riff.HeaderSize+riff.ChunkHeaderSize, hdr.Offset)
	assert.Equal(t, len(bs), hdr.CompressedSize)
	assert.Equal(t, uint32(len(data)-riff.ChunkHeaderSize), hdr.RiffSize)
	assert.Nil(t, hdr.Alpha)
	assert.Equal(t, bs, hdr.Bitstream())

	feat, err := riff.GetFeatures(data)
	require.NoError(t, err)
	assert.Equal(t, riff.Features{Width: 7, Height: 3, HasAlpha: true, Format: riff.FormatLossless}, feat)
}

func TestParseHeadersSimpleLossy(t *testing.T) {
	data := rifftest.File(rifftest.Chunk(riff.TagVP8, rifftest.VP8Header(33, 17)))

	hdr, err := riff.ParseHeaders(data, true)
	require.NoError(t, err)
	assert.False(t, hdr.IsLossless)

	feat, err := riff.GetFeatures(data)
	require.NoError(t, err)
	assert.Equal(t, 33, feat.Width)
	assert.Equal(t, 17, feat.Height)
	assert.False(t, feat.HasAlpha)
	assert.Equal(t, riff.FormatLossy, feat.Format)
}

func TestParseHeadersExtendedAlpha(t *testing.T) {
	alph := rifftest.Chunk(riff.TagALPH, []byte{0, 1, 2, 3, 4})
	data := rifftest.File(
		rifftest.VP8X(riff.AlphaFlag, 2, 2),
		rifftest.Chunk(riff.TagICCP, []byte("icc")),
		alph,
		rifftest.Chunk(riff.TagVP8, rifftest.VP8Header(2, 2)),
	)

	hdr, err := riff.ParseHeaders(data, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, hdr.Alpha)

	feat, err := riff.GetFeatures(data)
	require.NoError(t, err)
	assert.True(t, feat.HasAlpha)
}

func TestParseHeadersRawChunks(t *testing.T) {
	// frame payloads handed out by the demuxer start at the ALPH chunk
	data := append(
		rifftest.Chunk(riff.TagALPH, []byte{0, 9, 9, 9}),
		rifftest.Chunk(riff.TagVP8, rifftest.VP8Header(2, 2))...,
	)

	hdr, err := riff.ParseHeaders(data, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 9, 9, 9}, hdr.Alpha)
	assert.Zero(t, hdr.RiffSize)
	assert.Equal(t, 12+riff.ChunkHeaderSize, hdr.Offset)
}

func TestParseHeadersRawBitstream(t *testing.T) {
	bs := rifftest.SolidVP8L(4, 4, opaqueRed)

	hdr, err := riff.ParseHeaders(bs, true)
	require.NoError(t, err)
	assert.True(t, hdr.IsLossless)
	assert.Zero(t, hdr.Offset)
	assert.Equal(t, len(bs), hdr.CompressedSize)
}

func TestParseHeadersAnimation(t *testing.T) {
	data := rifftest.File(
		rifftest.VP8X(riff.AnimationFlag, 10, 20),
		rifftest.ANIM(0, 0),
		rifftest.ANMF(rifftest.Frame{Width: 10, Height: 20}, rifftest.SolidFrame(10, 20, opaqueRed)),
	)

	_, err := riff.ParseHeaders(data, true)
	assert.ErrorIs(t, err, riff.ErrUnsupportedFeature)

	feat, err := riff.GetFeatures(data)
	require.NoError(t, err)
	assert.True(t, feat.HasAnimation)
	assert.Equal(t, 10, feat.Width)
	assert.Equal(t, 20, feat.Height)
	assert.Equal(t, riff.FormatUndefined, feat.Format)
}

func TestParseHeadersErrors(t *testing.T) {
	valid := rifftest.File(rifftest.SolidFrame(4, 4, opaqueRed))

	badForm := append([]byte(nil), valid...)
	copy(badForm[8:], "WEBQ")

	tests := []struct {
		name        string
		data        []byte
		haveAllData bool
		err         error
	}{
		{"short", valid[:11], true, riff.ErrNotEnoughData},
		{"truncated", valid[:len(valid)-2], true, riff.ErrNotEnoughData},
		{"bad form", badForm, true, riff.ErrBitstream},
		{
			"vp8x without riff",
			append(rifftest.VP8X(0, 4, 4), rifftest.SolidFrame(4, 4, opaqueRed)...),
			true,
			riff.ErrBitstream,
		},
		{
			"canvas mismatch",
			rifftest.File(rifftest.VP8X(0, 5, 4), rifftest.SolidFrame(4, 4, opaqueRed)),
			true,
			riff.ErrBitstream,
		},
		{
			"bad vp8x size",
			rifftest.File(rifftest.Chunk(riff.TagVP8X, make([]byte, 12)), rifftest.SolidFrame(4, 4, opaqueRed)),
			true,
			riff.ErrBitstream,
		},
		{
			"bad vp8 signature",
			rifftest.File(rifftest.Chunk(riff.TagVP8, make([]byte, 20))),
			true,
			riff.ErrBitstream,
		},
		{
			"partial optional chunks",
			rifftest.File(rifftest.VP8X(0, 4, 4), rifftest.Chunk(riff.TagEXIF, make([]byte, 40)))[:40],
			false,
			riff.ErrNotEnoughData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := riff.ParseHeaders(tt.data, tt.haveAllData)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGetFeaturesPartialExtended(t *testing.T) {
	data := rifftest.File(
		rifftest.VP8X(riff.AlphaFlag, 9, 9),
		rifftest.Chunk(riff.TagEXIF, make([]byte, 64)),
	)

	// the VP8X header alone answers the features of an incomplete file
	feat, err := riff.GetFeatures(data[:40])
	require.NoError(t, err)
	assert.Equal(t, 9, feat.Width)
	assert.True(t, feat.HasAlpha)
}

func TestStatus(t *testing.T) {
	assert.Nil(t, riff.StatusOK.Err())
	assert.Equal(t, riff.StatusNotEnoughData, riff.StatusOf(fmt.Errorf("wrapped: %w", riff.ErrNotEnoughData)))
	assert.Equal(t, riff.StatusInvalidParam, riff.StatusOf(riff.ErrInvalidParam))
	assert.Equal(t, riff.StatusBitstreamError, riff.StatusOf(fmt.Errorf("other")))
	assert.Equal(t, "ok", riff.StatusOK.String())
	assert.Equal(t, "out of memory", riff.StatusOutOfMemory.String())
}

func TestVP8LInfo(t *testing.T) {
	w, h, alpha, ok := riff.VP8LInfo(rifftest.SolidVP8L(300, 2, opaqueRed))
	require.True(t, ok)
	assert.Equal(t, 300, w)
	assert.Equal(t, 2, h)
	assert.False(t, alpha)

	bad := rifftest.SolidVP8L(1, 1, opaqueRed)
	bad[4] |= 0x20 // version 1
	_, _, _, ok = riff.VP8LInfo(bad)
	assert.False(t, ok)
}
