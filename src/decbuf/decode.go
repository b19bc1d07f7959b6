package decbuf

import (
	"fmt"
	"image"

	"github.com/seventv/WebPProcessor/src/pixel"
	"github.com/seventv/WebPProcessor/src/riff"
)

// AvoidSlowMemory reports whether decoding straight into buf would mean
// scattered writes or read-modify-write passes over slow memory.
func AvoidSlowMemory(buf *Buffer, hasAlpha bool, opts *Options) bool {
	if buf == nil || buf.Memory != MemoryExternalSlow {
		return false
	}
	if hasAlpha && buf.Mode.IsPremultiplied() {
		return true
	}
	return opts != nil && opts.Rotate != 0
}

// Decode decodes a still image from data into buf. Owned buffers are
// allocated here; external ones must be large enough for the output.
func Decode(dec pixel.Decoder, data []byte, opts *Options, buf *Buffer) error {
	if buf == nil {
		return ErrNilBuffer
	}

	feat, err := riff.GetFeatures(data)
	if err != nil {
		return err
	}
	if feat.HasAnimation {
		return fmt.Errorf("animated image: %w", riff.ErrUnsupportedFeature)
	}

	if !AvoidSlowMemory(buf, feat.HasAlpha, opts) {
		return decodeInto(dec, data, feat, opts, buf)
	}

	// decode unflipped into owned memory, then move it over in one pass
	var tmpOpts *Options
	if opts != nil {
		o := *opts
		o.Flip = false
		tmpOpts = &o
	}
	tmp := NewBuffer(buf.Mode)
	if err := decodeInto(dec, data, feat, tmpOpts, tmp); err != nil {
		return err
	}
	if err := Allocate(feat.Width, feat.Height, opts, buf); err != nil {
		return err
	}
	return CopyPixels(tmp, buf)
}

func decodeInto(dec pixel.Decoder, data []byte, feat riff.Features, opts *Options, buf *Buffer) error {
	if err := Allocate(feat.Width, feat.Height, opts, buf); err != nil {
		return err
	}
	if err := dec.Decode(data, NewParams(buf, opts)); err != nil {
		buf.Free()
		return err
	}
	return nil
}

// Image copies the buffer into an image.NRGBA, or an image.RGBA for
// premultiplied modes.
func (b *Buffer) Image() (image.Image, error) {
	if err := b.check(); err != nil {
		return nil, err
	}

	l := &layouts[b.Mode]
	rect := image.Rect(0, 0, b.Width, b.Height)

	var (
		out    image.Image
		pix    []byte
		stride int
	)
	if l.premul {
		m := image.NewRGBA(rect)
		out, pix, stride = m, m.Pix, m.Stride
	} else {
		m := image.NewNRGBA(rect)
		out, pix, stride = m, m.Pix, m.Stride
	}

	for y := 0; y < b.Height; y++ {
		src := b.Row(y)
		dst := pix[y*stride:]
		for x := 0; x < b.Width; x++ {
			s, d := src[x*l.bpp:], dst[x*4:]
			d[0], d[1], d[2], d[3] = s[l.r], s[l.g], s[l.b], 0xff
			if l.a >= 0 {
				d[3] = s[l.a]
			}
		}
	}
	return out, nil
}
