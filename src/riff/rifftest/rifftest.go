// Package rifftest assembles small container files for tests.
package rifftest

import (
	"encoding/binary"
	"image/color"

	"github.com/seventv/WebPProcessor/src/riff"
)

// Chunk encodes a single chunk record, padded to an even size.
func Chunk(tag riff.FourCC, payload []byte) []byte {
	out := make([]byte, 0, riff.ChunkHeaderSize+len(payload)+1)
	out = append(out, tag...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = append(out, payload...)
	if len(payload)&1 == 1 {
		out = append(out, 0)
	}
	return out
}

// File wraps chunks into a RIFF/WEBP container.
func File(chunks ...[]byte) []byte {
	body := []byte(riff.TagWEBP)
	for _, c := range chunks {
		body = append(body, c...)
	}

	out := []byte(riff.TagRIFF)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

func le24(b []byte, v int) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16))
}

// VP8X returns an extended header chunk.
func VP8X(flags riff.Flags, width, height int) []byte {
	p := []byte{byte(flags), 0, 0, 0}
	p = le24(p, width-1)
	p = le24(p, height-1)
	return Chunk(riff.TagVP8X, p)
}

// ANIM returns an animation parameters chunk. bgcolor is stored in B, G, R, A byte order.
func ANIM(bgcolor uint32, loopCount int) []byte {
	p := binary.LittleEndian.AppendUint32(nil, bgcolor)
	p = binary.LittleEndian.AppendUint16(p, uint16(loopCount))
	return Chunk(riff.TagANIM, p)
}

// Frame describes an ANMF chunk.
type Frame struct {
	X, Y          int
	Width, Height int
	Duration      int
	DisposeBG     bool
	NoBlend       bool
}

// ANMF returns an animation frame chunk wrapping the given sub chunks.
func ANMF(f Frame, sub ...[]byte) []byte {
	p := le24(nil, f.X/2)
	p = le24(p, f.Y/2)
	p = le24(p, f.Width-1)
	p = le24(p, f.Height-1)
	p = le24(p, f.Duration)

	var bits byte
	if f.DisposeBG {
		bits |= 1
	}
	if f.NoBlend {
		bits |= 2
	}
	p = append(p, bits)

	for _, c := range sub {
		p = append(p, c...)
	}
	return Chunk(riff.TagANMF, p)
}

// VP8Header returns a key frame header with a valid start code. It passes
// header validation but carries no decodable macroblock data.
func VP8Header(width, height int) []byte {
	// key frame, profile 0, shown, first partition of one byte
	bits := uint32(1<<4 | 1<<5)
	b := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), 0x9d, 0x01, 0x2a}
	b = binary.LittleEndian.AppendUint16(b, uint16(width))
	b = binary.LittleEndian.AppendUint16(b, uint16(height))
	return append(b, make([]byte, 10)...)
}

type bitWriter struct {
	buf []byte
	acc uint64
	n   uint
}

func (w *bitWriter) write(v uint32, n uint) {
	w.acc |= uint64(v) << w.n
	w.n += n
	for w.n >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.n -= 8
	}
}

func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.n = 0, 0
	}
	return w.buf
}

// TwoColorVP8L encodes a lossless bitstream where each pixel is c1 if
// pick(x, y) is true and c0 otherwise. Every channel uses a simple prefix
// code, so channels that agree between both colors take no bits at all.
func TwoColorVP8L(width, height int, c0, c1 color.NRGBA, pick func(x, y int) bool) []byte {
	w := &bitWriter{}
	w.write(riff.VP8LMagicByte, 8)
	w.write(uint32(width-1), 14)
	w.write(uint32(height-1), 14)
	if c0.A != 0xff || c1.A != 0xff {
		w.write(1, 1)
	} else {
		w.write(0, 1)
	}
	w.write(0, 3) // version
	w.write(0, 1) // no transforms
	w.write(0, 1) // no color cache
	w.write(0, 1) // no meta prefix codes

	// green, red, blue, alpha
	ch := func(c color.NRGBA) [4]uint8 { return [4]uint8{c.G, c.R, c.B, c.A} }
	a, b := ch(c0), ch(c1)
	var varies [4]bool
	for i := range a {
		w.write(1, 1) // simple code
		if a[i] == b[i] || pick == nil {
			w.write(0, 1)
			w.write(1, 1)
			w.write(uint32(a[i]), 8)
			continue
		}
		varies[i] = true
		w.write(1, 1)
		w.write(1, 1)
		w.write(uint32(a[i]), 8)
		w.write(uint32(b[i]), 8)
	}
	// distance code, single zero symbol
	w.write(1, 1)
	w.write(0, 1)
	w.write(0, 1)
	w.write(0, 1)

	if pick != nil {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var bit uint32
				if pick(x, y) {
					bit = 1
				}
				for i := range varies {
					if varies[i] {
						w.write(bit, 1)
					}
				}
			}
		}
	}

	return w.bytes()
}

// SolidVP8L encodes a single colored lossless bitstream.
func SolidVP8L(width, height int, c color.NRGBA) []byte {
	return TwoColorVP8L(width, height, c, c, nil)
}

// SolidFrame returns a VP8L chunk holding a solid colored image.
func SolidFrame(width, height int, c color.NRGBA) []byte {
	return Chunk(riff.TagVP8L, SolidVP8L(width, height, c))
}
