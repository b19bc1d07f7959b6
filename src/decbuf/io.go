package decbuf

import (
	"fmt"

	"github.com/seventv/WebPProcessor/src/pixel"
	"github.com/seventv/WebPProcessor/src/riff"
)

// emitter writes one cropped source row, or one rescaled row, at
// pre-rotation row y of the output.
type emitter func(y int, row []byte) error

// Params routes decoder rows into a Buffer allocated for the same options.
// It implements pixel.IO.
type Params struct {
	buf  *Buffer
	opts *Options

	win window
	lay *layout

	emitRows  emitter
	emitAlpha emitter

	rgbScaler   *Rescaler
	alphaScaler *Rescaler

	// set when scaling a source with alpha into a mode with alpha: colour
	// is weighted by alpha so transparent pixels do not bleed into their
	// neighbours
	weighted bool
	alphaRow []byte

	// lossy colour bands wait here until AlphaRows delivers their alpha
	deferred bool
	srcW     int
	stash    []byte
	stashY   int
	stashN   int
}

var _ pixel.IO = (*Params)(nil)

// NewParams returns the row sink for buf, which must already be allocated
// with Allocate and the same opts.
func NewParams(buf *Buffer, opts *Options) *Params {
	return &Params{buf: buf, opts: opts}
}

func (p *Params) Setup(h pixel.Header) error {
	if p.buf == nil || !p.buf.Mode.Valid() {
		return ErrNilBuffer
	}

	win, err := p.opts.window(h.Width, h.Height)
	if err != nil {
		return err
	}
	if w, h := win.outputSize(); w != p.buf.Width || h != p.buf.Height {
		return fmt.Errorf("buffer is %dx%d, decode produces %dx%d: %w",
			p.buf.Width, p.buf.Height, w, h, riff.ErrInvalidParam)
	}

	p.win = win
	p.lay = &layouts[p.buf.Mode]
	p.emitRows = p.putRows
	p.emitAlpha = p.putAlpha
	p.weighted, p.deferred = false, false
	p.srcW, p.stashN = h.Width, 0

	if win.scaled() {
		if p.rgbScaler, err = NewRescaler(win.width, win.height, win.scaledW, win.scaledH, 4); err != nil {
			return err
		}
		p.emitRows = p.scaleRows
		if h.HasAlpha && p.buf.Mode.HasAlpha() {
			if p.alphaScaler, err = NewRescaler(win.width, win.height, win.scaledW, win.scaledH, 1); err != nil {
				return err
			}
			p.emitAlpha = p.scaleAlpha
			p.weighted = true
			p.alphaRow = make([]byte, win.width)
			p.deferred = !h.IsLossless
		}
	}
	return nil
}

// pixelAt returns the output pixel for pre-rotation coordinates x, y.
func (p *Params) pixelAt(x, y int) []byte {
	w, h := p.win.scaledW, p.win.scaledH
	switch p.win.rotate {
	case 90:
		x, y = h-1-y, x
	case 180:
		x, y = w-1-x, h-1-y
	case 270:
		x, y = y, w-1-x
	}
	bpp := p.lay.bpp
	i := p.buf.Offset + y*p.buf.Stride + x*bpp
	return p.buf.Pix[i : i+bpp]
}

func (p *Params) putRows(y int, row []byte) error {
	for x := 0; x < p.win.scaledW; x++ {
		s := row[x*4 : x*4+4]
		p.lay.putRGBA(p.pixelAt(x, y), s[0], s[1], s[2], s[3])
	}
	return nil
}

func (p *Params) putAlpha(y int, row []byte) error {
	if p.lay.a < 0 {
		return nil
	}
	for x := 0; x < p.win.scaledW; x++ {
		p.lay.putAlpha(p.pixelAt(x, y), row[x])
	}
	return nil
}

// putColor stores a weighted colour row as opaque, the alpha plane follows
// through putAlpha.
func (p *Params) putColor(y int, row []byte) error {
	for x := 0; x < p.win.scaledW; x++ {
		s := row[x*4 : x*4+4]
		p.lay.putRGBA(p.pixelAt(x, y), s[0], s[1], s[2], 0xff)
	}
	return nil
}

func (p *Params) scaleRows(y int, row []byte) error {
	if !p.weighted {
		return p.rgbScaler.Import(row, p.putRows)
	}
	for x := range p.alphaRow {
		p.alphaRow[x] = row[x*4+3]
	}
	if err := p.rgbScaler.ImportWeighted(row, p.alphaRow, p.putColor); err != nil {
		return err
	}
	return p.scaleAlpha(y, p.alphaRow)
}

func (p *Params) scaleAlpha(_ int, row []byte) error {
	return p.alphaScaler.Import(row, p.putAlpha)
}

// visible returns the cropped part of source row y and its row index in the
// crop window, or false when the row is outside the window.
func (p *Params) visible(y int, row []byte, bpp int) ([]byte, int, bool) {
	if y < p.win.top || y >= p.win.top+p.win.height {
		return nil, 0, false
	}
	return row[p.win.left*bpp : (p.win.left+p.win.width)*bpp], y - p.win.top, true
}

func (p *Params) Rows(y int, pix []byte, stride int, n int) error {
	if p.deferred {
		w := p.srcW * 4
		if cap(p.stash) < n*w {
			p.stash = make([]byte, n*w)
		}
		p.stash = p.stash[:n*w]
		for j := 0; j < n; j++ {
			copy(p.stash[j*w:(j+1)*w], pix[j*stride:])
		}
		p.stashY, p.stashN = y, n
		return nil
	}
	for j := 0; j < n; j++ {
		row, wy, ok := p.visible(y+j, pix[j*stride:], 4)
		if !ok {
			continue
		}
		if err := p.emitRows(wy, row); err != nil {
			return err
		}
	}
	return nil
}

func (p *Params) AlphaRows(y int, alpha []byte, stride int, n int) error {
	if !p.buf.Mode.HasAlpha() {
		return nil
	}
	if p.deferred {
		return p.mergeAlpha(y, alpha, stride, n)
	}
	for j := 0; j < n; j++ {
		row, wy, ok := p.visible(y+j, alpha[j*stride:], 1)
		if !ok {
			continue
		}
		if err := p.emitAlpha(wy, row); err != nil {
			return err
		}
	}
	return nil
}

// mergeAlpha fills the alpha channel of the stashed colour band and feeds
// the completed rows to the rescalers.
func (p *Params) mergeAlpha(y int, alpha []byte, stride int, n int) error {
	if y != p.stashY || n > p.stashN {
		return fmt.Errorf("alpha rows %d+%d do not match colour rows %d+%d: %w",
			y, n, p.stashY, p.stashN, riff.ErrInvalidParam)
	}
	w := p.srcW * 4
	for j := 0; j < n; j++ {
		row := p.stash[j*w : (j+1)*w]
		a := alpha[j*stride:]
		for x := 0; x < p.srcW; x++ {
			row[x*4+3] = a[x]
		}
		crop, wy, ok := p.visible(y+j, row, 4)
		if !ok {
			continue
		}
		if err := p.scaleRows(wy, crop); err != nil {
			return err
		}
	}
	p.stashN = 0
	return nil
}

func (p *Params) Teardown() {
	p.rgbScaler = nil
	p.alphaScaler = nil
	p.stash = nil
	p.alphaRow = nil
}
