package pixel

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/seventv/WebPProcessor/src/riff"
	"golang.org/x/image/vp8l"
)

// Alpha plane compression methods.
const (
	AlphaNoCompression = 0
	AlphaLossless      = 1
)

// Alpha plane prediction filters.
const (
	FilterNone = iota
	FilterHorizontal
	FilterVertical
	FilterGradient
)

// DecodeAlpha decodes an ALPH chunk payload into a width*height plane.
func DecodeAlpha(chunk []byte, width, height int) ([]byte, error) {
	if len(chunk) < riff.AlphaHeaderSize || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: short alpha chunk", riff.ErrBitstream)
	}

	method := int(chunk[0] & 0x03)
	filter := int(chunk[0]>>2) & 0x03
	preprocessing := int(chunk[0]>>4) & 0x03
	reserved := chunk[0] >> 6
	if method > AlphaLossless || preprocessing > 1 || reserved != 0 {
		return nil, fmt.Errorf("%w: alpha header %#02x", riff.ErrBitstream, chunk[0])
	}

	data := chunk[riff.AlphaHeaderSize:]
	var plane []byte
	switch method {
	case AlphaNoCompression:
		if len(data) < width*height {
			return nil, fmt.Errorf("%w: alpha plane truncated", riff.ErrBitstream)
		}
		plane = make([]byte, width*height)
		copy(plane, data)
	case AlphaLossless:
		var err error
		if plane, err = decodeLosslessAlpha(data, width, height); err != nil {
			return nil, err
		}
	}

	unfilter(filter, plane, width, height)
	return plane, nil
}

// decodeLosslessAlpha decodes a headerless VP8L stream whose green channel
// carries the alpha values.
func decodeLosslessAlpha(data []byte, width, height int) ([]byte, error) {
	w, h := width-1, height-1
	if w > 0x3fff || h > 0x3fff {
		return nil, fmt.Errorf("%w: alpha plane too large", riff.ErrBitstream)
	}

	hdr := []byte{
		riff.VP8LMagicByte,
		uint8(w),
		uint8(w>>8) | uint8(h<<6),
		uint8(h >> 2),
		uint8(h >> 10),
	}
	m, err := vp8l.Decode(io.MultiReader(bytes.NewReader(hdr), bytes.NewReader(data)))
	if err != nil {
		return nil, wrapErr(err)
	}
	img, ok := m.(*image.NRGBA)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected image type %T", riff.ErrBitstream, m)
	}

	plane := make([]byte, width*height)
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			plane[y*width+x] = row[x*4+1]
		}
	}
	return plane, nil
}

func unfilter(filter int, plane []byte, width, height int) {
	if filter == FilterNone {
		return
	}

	var prev []byte
	for y := 0; y < height; y++ {
		row := plane[y*width : (y+1)*width]
		switch {
		case filter == FilterHorizontal || prev == nil:
			horizontalUnfilter(prev, row)
		case filter == FilterVertical:
			for i := range row {
				row[i] += prev[i]
			}
		case filter == FilterGradient:
			gradientUnfilter(prev, row)
		}
		prev = row
	}
}

func horizontalUnfilter(prev, row []byte) {
	var pred byte
	if prev != nil {
		pred = prev[0]
	}
	for i := range row {
		row[i] += pred
		pred = row[i]
	}
}

func gradientUnfilter(prev, row []byte) {
	top := prev[0]
	topLeft, left := top, top
	for i := range row {
		top = prev[i]
		left = row[i] + gradientPredictor(left, top, topLeft)
		topLeft = top
		row[i] = left
	}
}

func gradientPredictor(a, b, c byte) byte {
	g := int(a) + int(b) - int(c)
	if g < 0 {
		return 0
	}
	if g > 0xff {
		return 0xff
	}
	return byte(g)
}
