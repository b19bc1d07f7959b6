package decbuf

import "fmt"

// Mode is the output pixel layout.
type Mode int

const (
	ModeRGB Mode = iota
	ModeRGBA
	ModeBGR
	ModeBGRA
	ModeARGB
	ModePremulRGBA // rgbA
	ModePremulBGRA // bgrA
	ModePremulARGB // Argb
	modeLast
)

type layout struct {
	name    string
	bpp     int
	r, g, b int
	a       int // -1 without alpha
	premul  bool
}

var layouts = [modeLast]layout{
	ModeRGB:        {"RGB", 3, 0, 1, 2, -1, false},
	ModeRGBA:       {"RGBA", 4, 0, 1, 2, 3, false},
	ModeBGR:        {"BGR", 3, 2, 1, 0, -1, false},
	ModeBGRA:       {"BGRA", 4, 2, 1, 0, 3, false},
	ModeARGB:       {"ARGB", 4, 1, 2, 3, 0, false},
	ModePremulRGBA: {"rgbA", 4, 0, 1, 2, 3, true},
	ModePremulBGRA: {"bgrA", 4, 2, 1, 0, 3, true},
	ModePremulARGB: {"Argb", 4, 1, 2, 3, 0, true},
}

func (m Mode) Valid() bool {
	return m >= 0 && m < modeLast
}

// BytesPerPixel returns 0 for invalid modes.
func (m Mode) BytesPerPixel() int {
	if !m.Valid() {
		return 0
	}
	return layouts[m].bpp
}

func (m Mode) HasAlpha() bool {
	return m.Valid() && layouts[m].a >= 0
}

func (m Mode) IsPremultiplied() bool {
	return m.Valid() && layouts[m].premul
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return layouts[m].name
}

// ParseMode accepts the names returned by String.
func ParseMode(s string) (Mode, error) {
	for m := Mode(0); m < modeLast; m++ {
		if layouts[m].name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown color mode %q", s)
}

func premultiply(c, a byte) byte {
	return byte((uint32(c)*uint32(a) + 127) / 255)
}

// putRGBA stores one non-premultiplied RGBA pixel in mode m.
func (l *layout) putRGBA(dst []byte, r, g, b, a byte) {
	if l.premul && a != 0xff {
		r, g, b = premultiply(r, a), premultiply(g, a), premultiply(b, a)
	}
	dst[l.r] = r
	dst[l.g] = g
	dst[l.b] = b
	if l.a >= 0 {
		dst[l.a] = a
	}
}

// putAlpha overwrites the alpha of a pixel whose color was stored opaque.
func (l *layout) putAlpha(dst []byte, a byte) {
	if l.a < 0 {
		return
	}
	dst[l.a] = a
	if l.premul && a != 0xff {
		dst[l.r] = premultiply(dst[l.r], a)
		dst[l.g] = premultiply(dst[l.g], a)
		dst[l.b] = premultiply(dst[l.b], a)
	}
}
