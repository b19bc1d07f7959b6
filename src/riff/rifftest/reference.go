package rifftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/webp"
)

// Reference decodes a still lossy file with x/image/webp into straight
// RGBA, converting YCbCr the same way the row decoder does.
func Reference(data []byte) (*image.NRGBA, error) {
	m, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var (
		ycc     *image.YCbCr
		alpha   []byte
		aStride int
	)
	switch m := m.(type) {
	case *image.NYCbCrA:
		ycc, alpha, aStride = &m.YCbCr, m.A, m.AStride
	case *image.YCbCr:
		ycc = m
	default:
		return nil, fmt.Errorf("not a lossy image: %T", m)
	}

	b := ycc.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			yi := ycc.YOffset(b.Min.X+x, b.Min.Y+y)
			ci := ycc.COffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := color.YCbCrToRGB(ycc.Y[yi], ycc.Cb[ci], ycc.Cr[ci])
			a := byte(0xff)
			if alpha != nil {
				a = alpha[y*aStride+x]
			}
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: a})
		}
	}
	return out, nil
}
