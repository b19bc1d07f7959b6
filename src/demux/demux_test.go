package demux_test

import (
	"image/color"
	"testing"

	"github.com/seventv/WebPProcessor/src/demux"
	"github.com/seventv/WebPProcessor/src/riff"
	"github.com/seventv/WebPProcessor/src/riff/rifftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0x80}
)

type animFixture struct {
	data   []byte
	frames [][]byte // image chunk of every frame
}

func newAnimFixture(flags riff.Flags) animFixture {
	f1 := rifftest.SolidFrame(4, 4, red)
	f2 := rifftest.SolidFrame(2, 2, green)
	f3 := rifftest.SolidFrame(3, 1, blue)

	data := rifftest.File(
		rifftest.VP8X(flags|riff.AnimationFlag, 4, 4),
		rifftest.Chunk(riff.TagICCP, []byte("profile")),
		rifftest.ANIM(0x11223344, 3),
		rifftest.ANMF(rifftest.Frame{Width: 4, Height: 4, Duration: 100}, f1),
		rifftest.ANMF(rifftest.Frame{X: 2, Y: 2, Width: 2, Height: 2, Duration: 50, DisposeBG: true}, f2),
		rifftest.ANMF(rifftest.Frame{X: 0, Y: 2, Width: 3, Height: 1, Duration: 70, NoBlend: true}, f3),
		rifftest.Chunk(riff.TagEXIF, []byte("exif")),
		rifftest.Chunk("ABCD", []byte{1}),
		rifftest.Chunk("ABCD", []byte{2, 2}),
	)

	return animFixture{data: data, frames: [][]byte{f1, f2, f3}}
}

func TestParseAnimated(t *testing.T) {
	fx := newAnimFixture(riff.AlphaFlag | riff.ICCPFlag)

	d, err := demux.Parse(fx.data)
	require.NoError(t, err)

	assert.Equal(t, demux.Done, d.State())
	assert.Equal(t, 3, d.FrameCount())
	assert.Equal(t, 4, d.CanvasWidth())
	assert.Equal(t, 4, d.CanvasHeight())
	assert.Equal(t, 3, d.LoopCount())
	assert.Equal(t, uint32(0x11223344), d.BackgroundColor())
	assert.Equal(t, uint32(riff.AlphaFlag|riff.ICCPFlag|riff.AnimationFlag), d.GetFeature(demux.FormatFlags))
	assert.Equal(t, uint32(3), d.GetFeature(demux.FrameCount))
	assert.Equal(t, uint32(4), d.GetFeature(demux.CanvasWidth))

	it, ok := d.GetFrame(1)
	require.True(t, ok)
	assert.Equal(t, 1, it.FrameNum)
	assert.Equal(t, 3, it.NumFrames)
	assert.Equal(t, 100, it.Duration)
	assert.Equal(t, demux.DisposeNone, it.Dispose)
	assert.Equal(t, demux.Blend, it.Blend)
	assert.True(t, it.Complete)
	assert.Equal(t, fx.frames[0], it.Payload)

	require.True(t, it.Next())
	assert.Equal(t, 2, it.X)
	assert.Equal(t, 2, it.Y)
	assert.Equal(t, 2, it.Width)
	assert.Equal(t, demux.DisposeBackground, it.Dispose)
	assert.Equal(t, fx.frames[1], it.Payload)

	require.True(t, it.Next())
	assert.Equal(t, demux.NoBlend, it.Blend)
	assert.True(t, it.HasAlpha)
	assert.Equal(t, fx.frames[2], it.Payload)

	assert.False(t, it.Next())
	assert.Equal(t, 3, it.FrameNum)
	it.Release()
	assert.False(t, it.Next())
}

func TestFrameNavigation(t *testing.T) {
	d, err := demux.Parse(newAnimFixture(0).data)
	require.NoError(t, err)

	last, ok := d.GetFrame(0)
	require.True(t, ok)
	third, ok := d.GetFrame(d.FrameCount())
	require.True(t, ok)
	assert.Equal(t, third, last)

	_, ok = d.GetFrame(4)
	assert.False(t, ok)
	_, ok = d.GetFrame(-1)
	assert.False(t, ok)

	it, ok := d.GetFrame(1)
	require.True(t, ok)
	assert.False(t, it.Prev())

	steps := 0
	for it.Next() {
		steps++
	}
	assert.Equal(t, d.FrameCount()-1, steps)

	for it.Prev() {
		steps--
	}
	assert.Zero(t, steps)
	assert.Equal(t, 1, it.FrameNum)
}

func TestChunks(t *testing.T) {
	t.Run("metadata flag set", func(t *testing.T) {
		d, err := demux.Parse(newAnimFixture(riff.ICCPFlag).data)
		require.NoError(t, err)

		it, ok := d.GetChunk(riff.TagICCP, 1)
		require.True(t, ok)
		assert.Equal(t, []byte("profile"), it.Payload)
		assert.Equal(t, 1, it.NumChunks)
		assert.Equal(t, riff.TagICCP, it.Tag())
		assert.False(t, it.Next())
		assert.False(t, it.Prev())

		// EXIF is present in the file but not flagged
		_, ok = d.GetChunk(riff.TagEXIF, 0)
		assert.False(t, ok)

		assert.Equal(t, []riff.FourCC{riff.TagICCP, "ABCD"}, d.ChunkTags())
	})

	t.Run("metadata flag missing", func(t *testing.T) {
		d, err := demux.Parse(newAnimFixture(0).data)
		require.NoError(t, err)

		_, ok := d.GetChunk(riff.TagICCP, 0)
		assert.False(t, ok)
	})

	t.Run("unknown chunks", func(t *testing.T) {
		d, err := demux.Parse(newAnimFixture(0).data)
		require.NoError(t, err)

		it, ok := d.GetChunk("ABCD", 0)
		require.True(t, ok)
		assert.Equal(t, 2, it.ChunkNum)
		assert.Equal(t, 2, it.NumChunks)
		assert.Equal(t, []byte{2, 2}, it.Payload)

		require.True(t, it.Prev())
		assert.Equal(t, []byte{1}, it.Payload)
		assert.False(t, it.Prev())
		require.True(t, it.Next())
		assert.False(t, it.Next())

		_, ok = d.GetChunk("ABCD", 3)
		assert.False(t, ok)
		_, ok = d.GetChunk("AB", 1)
		assert.False(t, ok)
		_, ok = d.GetChunk(riff.TagANIM, 1)
		assert.False(t, ok)
	})
}

func TestParseSimple(t *testing.T) {
	img := rifftest.SolidFrame(5, 6, blue)
	d, err := demux.Parse(rifftest.File(img))
	require.NoError(t, err)

	assert.Equal(t, demux.Done, d.State())
	assert.Equal(t, 5, d.CanvasWidth())
	assert.Equal(t, 6, d.CanvasHeight())
	assert.Equal(t, riff.AlphaFlag, d.Flags())
	assert.Equal(t, 1, d.LoopCount())
	assert.Equal(t, uint32(0xffffffff), d.BackgroundColor())

	it, ok := d.GetFrame(1)
	require.True(t, ok)
	assert.Equal(t, img, it.Payload)
	assert.True(t, it.HasAlpha)
}

func TestParseExtendedStill(t *testing.T) {
	alph := rifftest.Chunk(riff.TagALPH, []byte{0, 1, 2, 3, 4, 5})
	vp8 := rifftest.Chunk(riff.TagVP8, rifftest.VP8Header(2, 3))

	t.Run("alpha flag", func(t *testing.T) {
		d, err := demux.Parse(rifftest.File(rifftest.VP8X(riff.AlphaFlag, 2, 3), alph, vp8))
		require.NoError(t, err)

		it, ok := d.GetFrame(1)
		require.True(t, ok)
		assert.True(t, it.HasAlpha)
		assert.Equal(t, append(append([]byte(nil), alph...), vp8...), it.Payload)
	})

	t.Run("no alpha flag", func(t *testing.T) {
		d, err := demux.Parse(rifftest.File(rifftest.VP8X(0, 2, 3), alph, vp8))
		require.NoError(t, err)

		it, ok := d.GetFrame(1)
		require.True(t, ok)
		assert.False(t, it.HasAlpha)
		assert.Equal(t, vp8, it.Payload)
	})
}

func TestParseRawBitstream(t *testing.T) {
	// long enough to be told apart from a truncated RIFF header
	bs := rifftest.TwoColorVP8L(9, 4, red, green, func(x, y int) bool { return (x+y)%2 == 0 })
	require.GreaterOrEqual(t, len(bs), 20)

	d, err := demux.Parse(bs)
	require.NoError(t, err)
	assert.Equal(t, demux.Done, d.State())
	assert.Equal(t, 9, d.CanvasWidth())
	assert.Equal(t, 1, d.FrameCount())

	it, ok := d.GetFrame(0)
	require.True(t, ok)
	assert.Equal(t, bs, it.Payload)
}

func TestParseIdempotent(t *testing.T) {
	data := newAnimFixture(riff.ICCPFlag).data

	type summary struct {
		num, x, y, w, h, duration int
		dispose                   demux.DisposeMethod
		blend                     demux.BlendMethod
		payload                   []byte
	}
	summarize := func(d *demux.Demuxer) []summary {
		var out []summary
		it, ok := d.GetFrame(1)
		for ok {
			out = append(out, summary{
				it.FrameNum, it.X, it.Y, it.Width, it.Height, it.Duration,
				it.Dispose, it.Blend, it.Payload,
			})
			ok = it.Next()
		}
		return out
	}

	a, err := demux.Parse(data)
	require.NoError(t, err)
	b, err := demux.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, a.FrameCount(), b.FrameCount())
	assert.Equal(t, a.Flags(), b.Flags())
	assert.Equal(t, summarize(a), summarize(b))
}

func TestParsePartialMonotonic(t *testing.T) {
	files := map[string][]byte{
		"animated": newAnimFixture(riff.ICCPFlag | riff.EXIFFlag).data,
		"simple":   rifftest.File(rifftest.SolidFrame(30, 30, red)),
	}

	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			lastState, lastCount := demux.ParsingHeader, 0
			for n := 1; n <= len(data); n++ {
				d, state := demux.ParsePartial(data[:n])
				require.NotEqual(t, demux.ParseError, state, "prefix %d", n)
				require.GreaterOrEqual(t, state, lastState, "prefix %d", n)

				count := 0
				if d != nil {
					count = d.FrameCount()
					assert.Equal(t, state, d.State())
				}
				require.GreaterOrEqual(t, count, lastCount, "prefix %d", n)
				lastState, lastCount = state, count
			}
			assert.Equal(t, demux.Done, lastState)
		})
	}
}

func TestParsePartialIncompleteFrame(t *testing.T) {
	data := rifftest.File(rifftest.SolidFrame(30, 30, red))
	cut := data[:len(data)-3]

	d, state := demux.ParsePartial(cut)
	require.NotNil(t, d)
	assert.Equal(t, demux.ParsedHeader, state)
	assert.Equal(t, 30, d.CanvasWidth())

	it, ok := d.GetFrame(0)
	require.True(t, ok)
	assert.False(t, it.Complete)
	assert.Less(t, len(it.Payload), len(data)-riff.HeaderSize)

	_, err := demux.Parse(cut)
	assert.ErrorIs(t, err, demux.ErrIncomplete)
	assert.ErrorIs(t, err, riff.ErrNotEnoughData)
}

func TestParseErrors(t *testing.T) {
	frame := rifftest.SolidFrame(2, 2, red)
	anim := rifftest.ANIM(0, 0)
	anmf := rifftest.ANMF(rifftest.Frame{Width: 2, Height: 2}, frame)

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, demux.ErrEmptyInput},
		{"anmf before anim", rifftest.File(rifftest.VP8X(riff.AnimationFlag, 2, 2), anmf, anim), demux.ErrInvalidContainer},
		{"second vp8x", rifftest.File(rifftest.VP8X(0, 2, 2), rifftest.VP8X(0, 2, 2), frame), demux.ErrInvalidContainer},
		{"image inside animation", rifftest.File(rifftest.VP8X(riff.AnimationFlag, 2, 2), anim, frame), demux.ErrInvalidContainer},
		{
			"frame outside canvas",
			rifftest.File(
				rifftest.VP8X(riff.AnimationFlag, 3, 3),
				anim,
				rifftest.ANMF(rifftest.Frame{X: 2, Y: 0, Width: 2, Height: 2}, frame),
			),
			demux.ErrInvalidContainer,
		},
		{"still not covering canvas", rifftest.File(rifftest.VP8X(0, 3, 2), frame), demux.ErrInvalidContainer},
		{"reserved flags", rifftest.File(rifftest.VP8X(0x01, 2, 2), frame), demux.ErrInvalidContainer},
		{"alpha first", rifftest.File(rifftest.Chunk(riff.TagALPH, []byte{0}), frame), demux.ErrInvalidContainer},
		{"animation without frames", rifftest.File(rifftest.VP8X(riff.AnimationFlag, 2, 2), anim), demux.ErrInvalidContainer},
		{"garbage", []byte("this is not an image at all, sorry"), demux.ErrInvalidContainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := demux.Parse(tt.data)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, tt.err)

			if len(tt.data) > 0 {
				d, state := demux.ParsePartial(tt.data)
				assert.Nil(t, d)
				assert.Equal(t, demux.ParseError, state)
			}
		})
	}
}
