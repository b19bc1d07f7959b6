// Package anim renders the frames of an animated image onto a canvas, one
// frame per call, applying each frame's dispose and blend methods.
package anim

import (
	"fmt"

	"github.com/seventv/WebPProcessor/src/decbuf"
	"github.com/seventv/WebPProcessor/src/demux"
	"github.com/seventv/WebPProcessor/src/pixel"
	"github.com/seventv/WebPProcessor/src/riff"
	"github.com/sirupsen/logrus"
)

// ABIVersion is stamped into Options by DefaultOptions. Only the major
// byte has to match.
const ABIVersion = 0x0107

var (
	ErrVersion      = fmt.Errorf("anim options version mismatch: %w", riff.ErrInvalidParam)
	ErrColorMode    = fmt.Errorf("unsupported canvas color mode: %w", riff.ErrInvalidParam)
	ErrNoMoreFrames = fmt.Errorf("no more frames: %w", riff.ErrInvalidParam)
	ErrFrameSize    = fmt.Errorf("decoded frame size differs from its header: %w", riff.ErrBitstream)
)

type Options struct {
	// ColorMode is one of RGBA, BGRA, rgbA or bgrA.
	ColorMode decbuf.Mode
	// UseThreads decodes the next frame in the background while the
	// caller works on the current one.
	UseThreads bool
	// UseBackgroundColor clears the canvas and disposed frames to the
	// container's background color instead of transparent black.
	UseBackgroundColor bool

	version int
}

func DefaultOptions() *Options {
	return &Options{ColorMode: decbuf.ModeRGBA, version: ABIVersion}
}

// Info describes the whole animation.
type Info struct {
	CanvasWidth  int
	CanvasHeight int
	LoopCount    int
	BgColor      uint32
	FrameCount   int
}

type decoded struct {
	num int
	buf *decbuf.Buffer
	err error
}

// Decoder owns the canvas. Frames are composited strictly in order.
type Decoder struct {
	opts Options
	info Info
	dmux *demux.Demuxer
	dec  pixel.Decoder

	canvas  *decbuf.Buffer
	bg      [4]byte
	premult bool

	// number of frames already composited
	next      int
	timestamp int

	prevDispose demux.DisposeMethod
	prevRect    rect

	pending    chan decoded
	pendingNum int
}

type rect struct {
	x, y, w, h int
}

// New parses data and prepares a canvas for it. opts may be nil.
func New(data []byte, opts *Options) (*Decoder, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.version>>8 != ABIVersion>>8 {
		return nil, ErrVersion
	}
	switch opts.ColorMode {
	case decbuf.ModeRGBA, decbuf.ModeBGRA, decbuf.ModePremulRGBA, decbuf.ModePremulBGRA:
	default:
		return nil, fmt.Errorf("%s: %w", opts.ColorMode, ErrColorMode)
	}

	dmux, err := demux.Parse(data)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		opts:    *opts,
		dmux:    dmux,
		dec:     pixel.New(),
		premult: opts.ColorMode.IsPremultiplied(),
		info: Info{
			CanvasWidth:  dmux.CanvasWidth(),
			CanvasHeight: dmux.CanvasHeight(),
			LoopCount:    dmux.LoopCount(),
			BgColor:      dmux.BackgroundColor(),
			FrameCount:   dmux.FrameCount(),
		},
	}
	if opts.UseBackgroundColor {
		d.bg = canvasColor(d.info.BgColor, opts.ColorMode)
	}

	d.canvas = decbuf.NewBuffer(opts.ColorMode)
	if err := decbuf.Allocate(d.info.CanvasWidth, d.info.CanvasHeight, nil, d.canvas); err != nil {
		return nil, err
	}

	d.Reset()
	return d, nil
}

// canvasColor converts a container background color, stored B, G, R, A from
// the least significant byte, to a canvas pixel.
func canvasColor(c uint32, mode decbuf.Mode) [4]byte {
	b, g, r, a := byte(c), byte(c>>8), byte(c>>16), byte(c>>24)
	if mode.IsPremultiplied() {
		r = byte((uint32(r)*uint32(a) + 127) / 255)
		g = byte((uint32(g)*uint32(a) + 127) / 255)
		b = byte((uint32(b)*uint32(a) + 127) / 255)
	}
	if mode == decbuf.ModeBGRA || mode == decbuf.ModePremulBGRA {
		return [4]byte{b, g, r, a}
	}
	return [4]byte{r, g, b, a}
}

func (d *Decoder) Info() Info {
	return d.info
}

// Demuxer is owned by the Decoder and valid until Delete.
func (d *Decoder) Demuxer() *demux.Demuxer {
	return d.dmux
}

func (d *Decoder) HasMoreFrames() bool {
	return d.next < d.info.FrameCount
}

// Reset rewinds to the first frame with a cleared canvas.
func (d *Decoder) Reset() {
	d.drain()
	d.next = 0
	d.timestamp = 0
	d.prevDispose = demux.DisposeNone
	d.clear(rect{0, 0, d.canvas.Width, d.canvas.Height})
}

// Delete stops background work and releases the canvas. The Decoder must
// not be used afterwards.
func (d *Decoder) Delete() {
	d.drain()
	d.canvas.Free()
	d.dmux = nil
}

func (d *Decoder) drain() {
	if d.pending != nil {
		<-d.pending
		d.pending = nil
	}
}

func (d *Decoder) clear(r rect) {
	r = r.clip(d.canvas.Width, d.canvas.Height)
	for y := r.y; y < r.y+r.h; y++ {
		row := d.canvas.Row(y)[r.x*4 : (r.x+r.w)*4]
		for i := 0; i < len(row); i += 4 {
			copy(row[i:i+4], d.bg[:])
		}
	}
}

func (r rect) clip(w, h int) rect {
	x0, y0, x1, y1 := r.x, r.y, r.x+r.w, r.y+r.h
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > w {
		x1 = w
	}
	if y1 > h {
		y1 = h
	}
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return rect{x0, y0, x1 - x0, y1 - y0}
}

// decodeFrame decodes frame num into its own buffer. It never touches the
// canvas, so it may run alongside a composite.
func (d *Decoder) decodeFrame(num int) decoded {
	it, ok := d.dmux.GetFrame(num)
	if !ok {
		return decoded{num: num, err: fmt.Errorf("frame %d: %w", num, riff.ErrBitstream)}
	}

	buf := decbuf.NewBuffer(d.opts.ColorMode)
	if err := decbuf.Decode(d.dec, it.Payload, nil, buf); err != nil {
		return decoded{num: num, err: fmt.Errorf("frame %d: %w", num, err)}
	}
	if buf.Width != it.Width || buf.Height != it.Height {
		return decoded{num: num, err: fmt.Errorf("frame %d is %dx%d, header says %dx%d: %w",
			num, buf.Width, buf.Height, it.Width, it.Height, ErrFrameSize)}
	}
	return decoded{num: num, buf: buf}
}

func (d *Decoder) prefetch(num int) {
	ch := make(chan decoded, 1)
	go func() {
		ch <- d.decodeFrame(num)
	}()
	d.pending = ch
	d.pendingNum = num
}

func (d *Decoder) take(num int) decoded {
	if d.pending != nil && d.pendingNum == num {
		r := <-d.pending
		d.pending = nil
		return r
	}
	d.drain()
	return d.decodeFrame(num)
}

// GetNext composites the next frame and returns the canvas with the
// frame's end timestamp in milliseconds. The canvas is owned by the Decoder
// and is only valid until the next call to GetNext, Reset or Delete. After
// an error the canvas is undefined until Reset.
func (d *Decoder) GetNext() ([]byte, int, error) {
	if !d.HasMoreFrames() {
		return nil, 0, ErrNoMoreFrames
	}

	num := d.next + 1
	it, ok := d.dmux.GetFrame(num)
	if !ok {
		return nil, 0, fmt.Errorf("frame %d: %w", num, riff.ErrBitstream)
	}

	res := d.take(num)
	if res.err != nil {
		logrus.WithError(res.err).WithField("frame", num).Debug("anim: frame decode failed")
		return nil, 0, res.err
	}
	if d.opts.UseThreads && num < d.info.FrameCount {
		d.prefetch(num + 1)
	}

	if d.prevDispose == demux.DisposeBackground {
		d.clear(d.prevRect)
	}

	blend := it.Blend == demux.Blend && (num > 1 || d.opts.UseBackgroundColor)
	d.composite(res.buf, it.X, it.Y, blend)
	res.buf.Free()

	d.prevDispose = it.Dispose
	d.prevRect = rect{it.X, it.Y, it.Width, it.Height}
	d.timestamp += it.Duration
	d.next = num

	return d.canvas.Pix, d.timestamp, nil
}

func (d *Decoder) composite(src *decbuf.Buffer, x, y int, blend bool) {
	r := rect{x, y, src.Width, src.Height}.clip(d.canvas.Width, d.canvas.Height)
	for j := 0; j < r.h; j++ {
		srcRow := src.Row(r.y - y + j)[(r.x-x)*4 : (r.x-x+r.w)*4]
		dstRow := d.canvas.Row(r.y + j)[r.x*4 : (r.x+r.w)*4]
		if blend {
			blendRow(dstRow, srcRow, d.premult)
		} else {
			copy(dstRow, srcRow)
		}
	}
}

// Canvas returns a view of the canvas as a decbuf.Buffer, valid under the
// same rules as the slice returned by GetNext.
func (d *Decoder) Canvas() decbuf.Buffer {
	return decbuf.View(d.canvas)
}
