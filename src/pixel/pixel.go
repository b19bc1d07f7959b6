// Package pixel turns a single compressed image into rows of pixels.
//
// A Decoder pushes rows into an IO as they become available, so the
// receiving side can crop, scale or convert them without holding a second
// full copy of the image.
package pixel

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/seventv/WebPProcessor/src/riff"
	"golang.org/x/image/vp8"
	"golang.org/x/image/vp8l"
)

// BandHeight is the number of rows handed to IO per call.
const BandHeight = 16

// Header describes the image about to be emitted.
type Header struct {
	Width      int
	Height     int
	HasAlpha   bool
	IsLossless bool
}

// IO receives decoded rows. Rows carries non-premultiplied RGBA. When the
// image has a separate alpha plane, AlphaRows follows Rows for the same rows.
type IO interface {
	Setup(h Header) error
	Rows(y int, pix []byte, stride int, n int) error
	AlphaRows(y int, alpha []byte, stride int, n int) error
	Teardown()
}

type Decoder interface {
	Decode(data []byte, out IO) error
}

type decoder struct{}

// New returns a Decoder for VP8 and VP8L payloads, with or without an
// enclosing container or ALPH chunk.
func New() Decoder {
	return decoder{}
}

func wrapErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", riff.ErrNotEnoughData, err)
	}
	return fmt.Errorf("%w: %v", riff.ErrBitstream, err)
}

func (decoder) Decode(data []byte, out IO) error {
	hdr, err := riff.ParseHeaders(data, true)
	if err != nil {
		return err
	}

	if hdr.IsLossless {
		return decodeLossless(hdr.Bitstream(), out)
	}
	return decodeLossy(hdr.Bitstream(), hdr.Alpha, out)
}

func decodeLossless(bs []byte, out IO) error {
	_, _, hasAlpha, ok := riff.VP8LInfo(bs)
	if !ok {
		return riff.ErrBitstream
	}

	m, err := vp8l.Decode(bytes.NewReader(bs))
	if err != nil {
		return wrapErr(err)
	}
	img, ok := m.(*image.NRGBA)
	if !ok {
		return fmt.Errorf("%w: unexpected image type %T", riff.ErrBitstream, m)
	}

	b := img.Bounds()
	if err := out.Setup(Header{Width: b.Dx(), Height: b.Dy(), HasAlpha: hasAlpha, IsLossless: true}); err != nil {
		return err
	}
	defer out.Teardown()

	for y := 0; y < b.Dy(); y += BandHeight {
		n := min(BandHeight, b.Dy()-y)
		if err := out.Rows(y, img.Pix[y*img.Stride:], img.Stride, n); err != nil {
			return err
		}
	}
	return nil
}

func decodeLossy(bs []byte, alphaChunk []byte, out IO) error {
	d := vp8.NewDecoder()
	d.Init(bytes.NewReader(bs), len(bs))
	fh, err := d.DecodeFrameHeader()
	if err != nil {
		return wrapErr(err)
	}

	var alpha []byte
	if alphaChunk != nil {
		if alpha, err = DecodeAlpha(alphaChunk, fh.Width, fh.Height); err != nil {
			return err
		}
	}

	m, err := d.DecodeFrame()
	if err != nil {
		return wrapErr(err)
	}

	if err := out.Setup(Header{Width: fh.Width, Height: fh.Height, HasAlpha: alpha != nil}); err != nil {
		return err
	}
	defer out.Teardown()

	stride := fh.Width * 4
	band := make([]byte, stride*BandHeight)
	for y := 0; y < fh.Height; y += BandHeight {
		n := min(BandHeight, fh.Height-y)
		for j := 0; j < n; j++ {
			row := band[j*stride : (j+1)*stride]
			for x := 0; x < fh.Width; x++ {
				yi := m.YOffset(x, y+j)
				ci := m.COffset(x, y+j)
				r, g, b := color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
				row[x*4+0] = r
				row[x*4+1] = g
				row[x*4+2] = b
				row[x*4+3] = 0xff
			}
		}
		if err := out.Rows(y, band, stride, n); err != nil {
			return err
		}
		if alpha != nil {
			if err := out.AlphaRows(y, alpha[y*fh.Width:], fh.Width, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
