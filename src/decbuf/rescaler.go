package decbuf

import (
	"fmt"

	"github.com/seventv/WebPProcessor/src/riff"
)

// Rescaler resamples rows with an area-weighted box filter. Rows are fed one
// at a time and output rows are emitted as soon as every source row they
// cover has been seen.
//
// Positions are measured in units where a source pixel spans dstW units and
// a destination pixel spans srcW units, so both sides of a row cover exactly
// srcW*dstW units and overlaps are integers.
type Rescaler struct {
	srcW, srcH int
	dstW, dstH int
	channels   int

	// for destination x: contributing source pixels xIdx[xOff[x]:xOff[x+1]]
	// with weights xWeight
	xOff    []int
	xIdx    []int
	xWeight []uint64

	hrow []uint64
	acc  []uint64
	out  []byte

	// per destination x sums of the alpha weights, only used by
	// ImportWeighted
	whrow []uint64
	wacc  []uint64

	srcY int
	dstY int
}

func NewRescaler(srcW, srcH, dstW, dstH, channels int) (*Rescaler, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 || channels <= 0 {
		return nil, fmt.Errorf("rescale %dx%d to %dx%d: %w", srcW, srcH, dstW, dstH, riff.ErrInvalidParam)
	}

	r := &Rescaler{
		srcW: srcW, srcH: srcH,
		dstW: dstW, dstH: dstH,
		channels: channels,
		xOff:     make([]int, dstW+1),
		hrow:     make([]uint64, dstW*channels),
		acc:      make([]uint64, dstW*channels),
		out:      make([]byte, dstW*channels),
	}

	for x := 0; x < dstW; x++ {
		r.xOff[x] = len(r.xIdx)
		start, end := x*srcW, (x+1)*srcW
		for i := start / dstW; i < srcW && i*dstW < end; i++ {
			if w := overlap(start, end, i*dstW, (i+1)*dstW); w > 0 {
				r.xIdx = append(r.xIdx, i)
				r.xWeight = append(r.xWeight, uint64(w))
			}
		}
	}
	r.xOff[dstW] = len(r.xIdx)
	return r, nil
}

func overlap(a0, a1, b0, b1 int) int {
	if b0 > a0 {
		a0 = b0
	}
	if b1 < a1 {
		a1 = b1
	}
	return a1 - a0
}

// Done reports whether every output row has been emitted.
func (r *Rescaler) Done() bool {
	return r.dstY >= r.dstH
}

// Import consumes the next source row, which holds srcW pixels of channels
// bytes each, and calls emit for every output row it completes. The slice
// passed to emit is reused by the next call.
func (r *Rescaler) Import(row []byte, emit func(y int, out []byte) error) error {
	return r.importRow(row, nil, emit)
}

// ImportWeighted is Import with every pixel of row weighted by the matching
// byte of alpha, so fully transparent pixels contribute nothing to the
// colour of their neighbours. An output pixel that covers only transparent
// pixels comes out as zero. A Rescaler is fed through Import or
// ImportWeighted, never both.
func (r *Rescaler) ImportWeighted(row, alpha []byte, emit func(y int, out []byte) error) error {
	if len(alpha) < r.srcW {
		return fmt.Errorf("rescaler alpha row of %d bytes, expected %d: %w", len(alpha), r.srcW, riff.ErrInvalidParam)
	}
	if r.wacc == nil {
		r.whrow = make([]uint64, r.dstW)
		r.wacc = make([]uint64, r.dstW)
	}
	return r.importRow(row, alpha, emit)
}

func (r *Rescaler) importRow(row, alpha []byte, emit func(y int, out []byte) error) error {
	if r.srcY >= r.srcH {
		return fmt.Errorf("rescaler fed %d rows, expected %d: %w", r.srcY+1, r.srcH, riff.ErrInvalidParam)
	}
	if len(row) < r.srcW*r.channels {
		return fmt.Errorf("rescaler row of %d bytes, expected %d: %w", len(row), r.srcW*r.channels, riff.ErrInvalidParam)
	}

	ch := r.channels
	for x := 0; x < r.dstW; x++ {
		ks, ke := r.xOff[x], r.xOff[x+1]
		if alpha != nil {
			var ws uint64
			for k := ks; k < ke; k++ {
				ws += r.xWeight[k] * uint64(alpha[r.xIdx[k]])
			}
			r.whrow[x] = ws
		}
		for c := 0; c < ch; c++ {
			var sum uint64
			for k := ks; k < ke; k++ {
				w := r.xWeight[k]
				if alpha != nil {
					w *= uint64(alpha[r.xIdx[k]])
				}
				sum += w * uint64(row[r.xIdx[k]*ch+c])
			}
			r.hrow[x*ch+c] = sum
		}
	}

	rowStart, rowEnd := r.srcY*r.dstH, (r.srcY+1)*r.dstH
	r.srcY++

	div := uint64(r.srcW) * uint64(r.srcH)
	for r.dstY < r.dstH {
		start, end := r.dstY*r.srcH, (r.dstY+1)*r.srcH
		if w := overlap(start, end, rowStart, rowEnd); w > 0 {
			for i, v := range r.hrow {
				r.acc[i] += uint64(w) * v
			}
			if alpha != nil {
				for i, v := range r.whrow {
					r.wacc[i] += uint64(w) * v
				}
			}
		}
		if end > rowEnd {
			break
		}

		if alpha == nil {
			for i, v := range r.acc {
				r.out[i] = byte((v + div/2) / div)
				r.acc[i] = 0
			}
		} else {
			for i, v := range r.acc {
				d := r.wacc[i/ch]
				if d == 0 {
					r.out[i] = 0
				} else {
					r.out[i] = byte((v + d/2) / d)
				}
				r.acc[i] = 0
			}
			for i := range r.wacc {
				r.wacc[i] = 0
			}
		}
		y := r.dstY
		r.dstY++
		if err := emit(y, r.out); err != nil {
			return err
		}
	}
	return nil
}

// Rescale returns an owned copy of src resized to width x height. A zero
// width or height keeps the aspect ratio. Premultiplied buffers are averaged
// as stored; straight alpha buffers have their colour weighted by alpha.
func Rescale(src *Buffer, width, height int) (*Buffer, error) {
	if src == nil {
		return nil, ErrNilBuffer
	}
	if err := src.check(); err != nil {
		return nil, err
	}

	w, h, err := ScaledDimensions(src.Width, src.Height, width, height)
	if err != nil {
		return nil, err
	}

	dst := NewBuffer(src.Mode)
	dst.Width, dst.Height = w, h
	if err := dst.allocate(); err != nil {
		return nil, err
	}

	bpp := src.Mode.BytesPerPixel()
	r, err := NewRescaler(src.Width, src.Height, w, h, bpp)
	if err != nil {
		return nil, err
	}
	emit := func(y int, out []byte) error {
		copy(dst.Row(y), out)
		return nil
	}

	a := layouts[src.Mode].a
	if a < 0 || src.Mode.IsPremultiplied() {
		for y := 0; y < src.Height; y++ {
			if err := r.Import(src.Row(y), emit); err != nil {
				return nil, err
			}
		}
		return dst, nil
	}

	// the weighted colour pass leaves junk in the alpha channel, the alpha
	// plane pass then overwrites it
	ar, err := NewRescaler(src.Width, src.Height, w, h, 1)
	if err != nil {
		return nil, err
	}
	emitAlpha := func(y int, out []byte) error {
		row := dst.Row(y)
		for x, v := range out {
			row[x*bpp+a] = v
		}
		return nil
	}
	alpha := make([]byte, src.Width)
	for y := 0; y < src.Height; y++ {
		row := src.Row(y)
		for x := range alpha {
			alpha[x] = row[x*bpp+a]
		}
		if err := r.ImportWeighted(row, alpha, emit); err != nil {
			return nil, err
		}
		if err := ar.Import(alpha, emitAlpha); err != nil {
			return nil, err
		}
	}
	return dst, nil
}
