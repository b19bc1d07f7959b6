package anim_test

import (
	"image/color"
	"os"
	"testing"

	"github.com/seventv/WebPProcessor/src/anim"
	"github.com/seventv/WebPProcessor/src/decbuf"
	"github.com/seventv/WebPProcessor/src/riff"
	"github.com/seventv/WebPProcessor/src/riff/rifftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red       = color.NRGBA{R: 0xff, A: 0xff}
	green     = color.NRGBA{G: 0xff, A: 0xff}
	halfBlue  = color.NRGBA{B: 0xff, A: 0x80}
	halfGreen = color.NRGBA{G: 0xff, A: 0x80}
)

func animation(bgcolor uint32, frames ...[]byte) []byte {
	chunks := [][]byte{
		rifftest.VP8X(riff.AnimationFlag|riff.AlphaFlag, 4, 4),
		rifftest.ANIM(bgcolor, 0),
	}
	return rifftest.File(append(chunks, frames...)...)
}

func pixelAt(canvas []byte, x, y int) [4]byte {
	i := (y*4 + x) * 4
	return [4]byte{canvas[i], canvas[i+1], canvas[i+2], canvas[i+3]}
}

func rgba(c color.NRGBA) [4]byte {
	return [4]byte{c.R, c.G, c.B, c.A}
}

func inRect(x, y, rx, ry, rw, rh int) bool {
	return x >= rx && x < rx+rw && y >= ry && y < ry+rh
}

func opts(fn func(o *anim.Options)) *anim.Options {
	o := anim.DefaultOptions()
	fn(o)
	return o
}

func TestDisposeThenNoBlend(t *testing.T) {
	data := animation(0,
		rifftest.ANMF(rifftest.Frame{Width: 4, Height: 4, Duration: 40, DisposeBG: true}, rifftest.SolidFrame(4, 4, red)),
		rifftest.ANMF(rifftest.Frame{X: 2, Y: 2, Width: 2, Height: 2, Duration: 60, NoBlend: true}, rifftest.SolidFrame(2, 2, halfGreen)),
	)

	dec, err := anim.New(data, nil)
	require.NoError(t, err)
	defer dec.Delete()

	canvas, ts, err := dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, 40, ts)
	assert.Equal(t, rgba(red), pixelAt(canvas, 0, 0))

	canvas, ts, err = dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, 100, ts)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := [4]byte{}
			if inRect(x, y, 2, 2, 2, 2) {
				want = rgba(halfGreen)
			}
			assert.Equal(t, want, pixelAt(canvas, x, y), "pixel %d,%d", x, y)
		}
	}

	assert.False(t, dec.HasMoreFrames())
	_, _, err = dec.GetNext()
	assert.ErrorIs(t, err, anim.ErrNoMoreFrames)
}

func TestKeepWithoutDispose(t *testing.T) {
	data := animation(0,
		rifftest.ANMF(rifftest.Frame{Width: 4, Height: 4, Duration: 10}, rifftest.SolidFrame(4, 4, red)),
		rifftest.ANMF(rifftest.Frame{X: 2, Y: 0, Width: 2, Height: 2, Duration: 10}, rifftest.SolidFrame(2, 2, green)),
	)

	dec, err := anim.New(data, nil)
	require.NoError(t, err)

	_, _, err = dec.GetNext()
	require.NoError(t, err)
	canvas, _, err := dec.GetNext()
	require.NoError(t, err)

	assert.Equal(t, rgba(red), pixelAt(canvas, 0, 0))
	assert.Equal(t, rgba(red), pixelAt(canvas, 1, 3))
	assert.Equal(t, rgba(green), pixelAt(canvas, 2, 0))
	assert.Equal(t, rgba(green), pixelAt(canvas, 3, 1))
	assert.Equal(t, rgba(red), pixelAt(canvas, 3, 2))
}

func TestBlend(t *testing.T) {
	data := animation(0,
		rifftest.ANMF(rifftest.Frame{Width: 4, Height: 4, Duration: 10}, rifftest.SolidFrame(4, 4, red)),
		rifftest.ANMF(rifftest.Frame{Width: 2, Height: 2, Duration: 10}, rifftest.SolidFrame(2, 2, halfBlue)),
	)

	tests := []struct {
		mode decbuf.Mode
		want [4]byte
	}{
		{decbuf.ModeRGBA, [4]byte{126, 0, 127, 0xff}},
		{decbuf.ModeBGRA, [4]byte{127, 0, 126, 0xff}},
		{decbuf.ModePremulRGBA, [4]byte{127, 0, 128, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			dec, err := anim.New(data, opts(func(o *anim.Options) { o.ColorMode = tt.mode }))
			require.NoError(t, err)

			_, _, err = dec.GetNext()
			require.NoError(t, err)
			canvas, _, err := dec.GetNext()
			require.NoError(t, err)

			assert.Equal(t, tt.want, pixelAt(canvas, 1, 1))
			// outside the second frame
			assert.Equal(t, byte(0xff), pixelAt(canvas, 3, 3)[3])
		})
	}
}

func TestBlendOverTransparent(t *testing.T) {
	data := animation(0,
		rifftest.ANMF(rifftest.Frame{Width: 2, Height: 2, Duration: 10, DisposeBG: true}, rifftest.SolidFrame(2, 2, red)),
		rifftest.ANMF(rifftest.Frame{Width: 2, Height: 2, Duration: 10}, rifftest.SolidFrame(2, 2, color.NRGBA{})),
	)

	dec, err := anim.New(data, nil)
	require.NoError(t, err)

	_, _, err = dec.GetNext()
	require.NoError(t, err)
	canvas, _, err := dec.GetNext()
	require.NoError(t, err)

	// a fully transparent source leaves the disposed area untouched
	assert.Equal(t, [4]byte{}, pixelAt(canvas, 0, 0))
}

func TestBackgroundColor(t *testing.T) {
	// B, G, R, A from the low byte
	data := animation(0xff112233,
		rifftest.ANMF(rifftest.Frame{Width: 2, Height: 2, Duration: 10, DisposeBG: true}, rifftest.SolidFrame(2, 2, red)),
		rifftest.ANMF(rifftest.Frame{X: 2, Y: 2, Width: 2, Height: 2, Duration: 10}, rifftest.SolidFrame(2, 2, green)),
	)
	bg := [4]byte{0x11, 0x22, 0x33, 0xff}

	dec, err := anim.New(data, opts(func(o *anim.Options) { o.UseBackgroundColor = true }))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xff112233), dec.Info().BgColor)

	canvas, _, err := dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, rgba(red), pixelAt(canvas, 0, 0))
	assert.Equal(t, bg, pixelAt(canvas, 3, 3))

	canvas, _, err = dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, bg, pixelAt(canvas, 0, 0))
	assert.Equal(t, rgba(green), pixelAt(canvas, 3, 3))

	t.Run("bgrA", func(t *testing.T) {
		dec, err := anim.New(data, opts(func(o *anim.Options) {
			o.UseBackgroundColor = true
			o.ColorMode = decbuf.ModePremulBGRA
		}))
		require.NoError(t, err)
		canvas, _, err := dec.GetNext()
		require.NoError(t, err)
		assert.Equal(t, [4]byte{0x33, 0x22, 0x11, 0xff}, pixelAt(canvas, 3, 3))
	})
}

type pass struct {
	canvases   [][]byte
	timestamps []int
}

func drain(t *testing.T, dec *anim.Decoder) pass {
	var p pass
	for dec.HasMoreFrames() {
		canvas, ts, err := dec.GetNext()
		require.NoError(t, err)
		p.canvases = append(p.canvases, append([]byte(nil), canvas...))
		p.timestamps = append(p.timestamps, ts)
	}
	return p
}

func threeFrames() []byte {
	return animation(0x80808080,
		rifftest.ANMF(rifftest.Frame{Width: 4, Height: 4, Duration: 100}, rifftest.SolidFrame(4, 4, red)),
		rifftest.ANMF(rifftest.Frame{X: 2, Y: 2, Width: 2, Height: 2, Duration: 50, DisposeBG: true}, rifftest.SolidFrame(2, 2, green)),
		rifftest.ANMF(rifftest.Frame{X: 0, Y: 2, Width: 3, Height: 1, Duration: 70, NoBlend: true}, rifftest.SolidFrame(3, 1, halfBlue)),
	)
}

func TestResetRedrain(t *testing.T) {
	dec, err := anim.New(threeFrames(), nil)
	require.NoError(t, err)

	first := drain(t, dec)
	assert.Equal(t, []int{100, 150, 220}, first.timestamps)

	dec.Reset()
	assert.True(t, dec.HasMoreFrames())
	second := drain(t, dec)
	assert.Equal(t, first, second)

	// reset halfway through
	dec.Reset()
	_, _, err = dec.GetNext()
	require.NoError(t, err)
	dec.Reset()
	assert.Equal(t, first, drain(t, dec))
}

func TestThreadedMatchesSequential(t *testing.T) {
	data := threeFrames()

	seq, err := anim.New(data, nil)
	require.NoError(t, err)
	want := drain(t, seq)

	for _, mode := range []decbuf.Mode{decbuf.ModeRGBA, decbuf.ModePremulBGRA} {
		t.Run(mode.String(), func(t *testing.T) {
			plain, err := anim.New(data, opts(func(o *anim.Options) { o.ColorMode = mode }))
			require.NoError(t, err)
			threaded, err := anim.New(data, opts(func(o *anim.Options) {
				o.ColorMode = mode
				o.UseThreads = true
			}))
			require.NoError(t, err)
			defer threaded.Delete()

			got := drain(t, threaded)
			assert.Equal(t, drain(t, plain), got)
			if mode == decbuf.ModeRGBA {
				assert.Equal(t, want, got)
			}

			threaded.Reset()
			_, _, err = threaded.GetNext()
			require.NoError(t, err)
			threaded.Reset()
			assert.Equal(t, got, drain(t, threaded))
		})
	}
}

func TestStillImage(t *testing.T) {
	data := rifftest.File(rifftest.SolidFrame(3, 2, green))

	dec, err := anim.New(data, nil)
	require.NoError(t, err)
	assert.Equal(t, anim.Info{CanvasWidth: 3, CanvasHeight: 2, LoopCount: 1, BgColor: 0xffffffff, FrameCount: 1}, dec.Info())
	assert.Equal(t, 1, dec.Demuxer().FrameCount())

	canvas, ts, err := dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, 0, ts)
	assert.Len(t, canvas, 3*2*4)
	assert.Equal(t, rgba(green), [4]byte{canvas[20], canvas[21], canvas[22], canvas[23]})

	view := dec.Canvas()
	assert.False(t, view.IsOwned())
	assert.Equal(t, 3, view.Width)
}

func TestStillLossyAlpha(t *testing.T) {
	data, err := os.ReadFile("../pixel/testdata/yellow_rose.lossy-with-alpha.webp")
	require.NoError(t, err)
	ref, err := rifftest.Reference(data)
	require.NoError(t, err)

	dec, err := anim.New(data, nil)
	require.NoError(t, err)
	assert.Equal(t, anim.Info{CanvasWidth: 400, CanvasHeight: 301, LoopCount: 1, BgColor: 0xffffffff, FrameCount: 1}, dec.Info())

	canvas, ts, err := dec.GetNext()
	require.NoError(t, err)
	assert.Equal(t, 0, ts)
	require.Len(t, canvas, 400*301*4)
	assert.Equal(t, ref.Pix, canvas)
	assert.False(t, dec.HasMoreFrames())
}

func TestNewErrors(t *testing.T) {
	data := threeFrames()

	_, err := anim.New(data, &anim.Options{ColorMode: decbuf.ModeRGBA})
	assert.ErrorIs(t, err, riff.ErrInvalidParam)

	_, err = anim.New(data, opts(func(o *anim.Options) { o.ColorMode = decbuf.ModeRGB }))
	assert.ErrorIs(t, err, anim.ErrColorMode)

	_, err = anim.New([]byte("RIFF\x04\x00\x00\x00WEBQ"), nil)
	assert.Error(t, err)

	_, err = anim.New(data[:len(data)-3], nil)
	assert.Error(t, err)
}
