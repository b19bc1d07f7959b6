// Package decbuf manages the memory pixels are decoded into, and the row
// pipeline that crops, scales, rotates and converts decoder output into it.
package decbuf

import (
	"fmt"

	"github.com/seventv/WebPProcessor/src/riff"
)

// Version is the layout version stamped into Buffer and Options by their
// constructors. Only the major byte has to match.
const Version = 0x0209

// MaxAllocSize bounds a single pixel allocation.
const MaxAllocSize = uint64(1) << 34

// Memory tells who owns a buffer's pixels.
type Memory int

const (
	MemoryOwned Memory = iota
	MemoryExternal
	// MemoryExternalSlow is caller memory that is expensive to write
	// piecemeal or to read back, such as mapped video memory.
	MemoryExternalSlow
)

var (
	ErrVersion   = fmt.Errorf("version mismatch: %w", riff.ErrInvalidParam)
	ErrNilBuffer = fmt.Errorf("nil buffer: %w", riff.ErrInvalidParam)
)

// Buffer is a decoded RGB(A) image. Row y starts at Pix[Offset+y*Stride];
// Stride is negative for vertically flipped buffers.
type Buffer struct {
	Mode   Mode
	Width  int
	Height int
	Pix    []byte
	Offset int
	Stride int
	Memory Memory

	version int
}

// NewBuffer returns an empty buffer that Allocate fills with owned memory.
func NewBuffer(mode Mode) *Buffer {
	return &Buffer{Mode: mode, version: Version}
}

// ExternalBuffer wraps caller memory. Allocate validates it instead of
// allocating.
func ExternalBuffer(mode Mode, pix []byte, stride int, slow bool) *Buffer {
	b := &Buffer{Mode: mode, Pix: pix, Stride: stride, Memory: MemoryExternal, version: Version}
	if slow {
		b.Memory = MemoryExternalSlow
	}
	return b
}

func checkVersion(v int) error {
	if v>>8 != Version>>8 {
		return ErrVersion
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Row returns the bytes of row y.
func (b *Buffer) Row(y int) []byte {
	start := b.Offset + y*b.Stride
	return b.Pix[start : start+b.Width*b.Mode.BytesPerPixel()]
}

// IsOwned reports if the buffer is responsible for its pixel memory.
func (b *Buffer) IsOwned() bool {
	return b.Memory == MemoryOwned && b.Pix != nil
}

func (b *Buffer) check() error {
	bpp := b.Mode.BytesPerPixel()
	if bpp == 0 || b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("buffer %dx%d %s: %w", b.Width, b.Height, b.Mode, riff.ErrInvalidParam)
	}

	rowSize := b.Width * bpp
	if abs(b.Stride) < rowSize {
		return fmt.Errorf("stride %d below row size %d: %w", b.Stride, rowSize, riff.ErrInvalidParam)
	}

	first, last := b.Offset, b.Offset+(b.Height-1)*b.Stride
	if last < first {
		first, last = last, first
	}
	if first < 0 || last+rowSize > len(b.Pix) {
		return fmt.Errorf("buffer of %d bytes too small for %dx%d: %w", len(b.Pix), b.Width, b.Height, riff.ErrInvalidParam)
	}
	return nil
}

// alloc makes owned pixel memory, reporting oversized or failed
// allocations as ErrOutOfMemory.
func alloc(size uint64) (pix []byte, err error) {
	if size > MaxAllocSize || size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("%d bytes: %w", size, riff.ErrOutOfMemory)
	}

	defer func() {
		if r := recover(); r != nil {
			pix, err = nil, fmt.Errorf("%d bytes: %v: %w", size, r, riff.ErrOutOfMemory)
		}
	}()
	return make([]byte, size), nil
}

func (b *Buffer) allocate() error {
	bpp := b.Mode.BytesPerPixel()
	if bpp == 0 || b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("buffer %dx%d %s: %w", b.Width, b.Height, b.Mode, riff.ErrInvalidParam)
	}

	if b.Memory == MemoryOwned && b.Pix == nil {
		stride := uint64(b.Width) * uint64(bpp)
		pix, err := alloc(stride * uint64(b.Height))
		if err != nil {
			return err
		}
		b.Pix = pix
		b.Offset = 0
		b.Stride = int(stride)
	}

	return b.check()
}

// Allocate sizes buf for a width x height image after the crop, scale and
// rotation in opts are applied. Owned buffers get fresh memory; external
// buffers are checked to be large enough. opts may be nil.
func Allocate(width, height int, opts *Options, buf *Buffer) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if err := checkVersion(buf.version); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image %dx%d: %w", width, height, riff.ErrInvalidParam)
	}

	w, h := width, height
	if opts != nil {
		var err error
		if w, h, err = opts.OutputSize(width, height); err != nil {
			return err
		}
	}

	buf.Width = w
	buf.Height = h
	if err := buf.allocate(); err != nil {
		return err
	}

	if opts != nil && opts.Flip {
		return FlipVertical(buf)
	}
	return nil
}

// FlipVertical makes row 0 the last row in memory. Flipping twice restores
// the original layout.
func FlipVertical(buf *Buffer) error {
	if buf == nil {
		return ErrNilBuffer
	}
	if buf.Height <= 0 {
		return fmt.Errorf("flip of empty buffer: %w", riff.ErrInvalidParam)
	}

	buf.Offset += (buf.Height - 1) * buf.Stride
	buf.Stride = -buf.Stride
	return nil
}

// Free releases owned memory. External memory is left to its owner.
func (b *Buffer) Free() {
	if b.Memory == MemoryOwned {
		b.Pix = nil
		b.Offset = 0
		b.Stride = 0
	}
}

// View returns a shallow copy that references src's pixels without owning
// them. It is valid as long as src is.
func View(src *Buffer) Buffer {
	v := *src
	if v.Memory == MemoryOwned {
		v.Memory = MemoryExternal
	}
	return v
}

// Grab moves src into dst. If src owned its memory, dst owns it now and
// src is left as a non-owning view.
func Grab(src, dst *Buffer) {
	if src == nil || dst == nil {
		return
	}
	*dst = *src
	if src.Memory == MemoryOwned {
		src.Memory = MemoryExternal
	}
}

// CopyPixels copies src into dst row by row. Both must have the same mode
// and size; strides may differ.
func CopyPixels(src, dst *Buffer) error {
	if src == nil || dst == nil {
		return ErrNilBuffer
	}
	if src.Mode != dst.Mode || src.Width != dst.Width || src.Height != dst.Height {
		return fmt.Errorf("copy %s %dx%d into %s %dx%d: %w",
			src.Mode, src.Width, src.Height, dst.Mode, dst.Width, dst.Height, riff.ErrInvalidParam)
	}
	if err := src.check(); err != nil {
		return err
	}
	if err := dst.check(); err != nil {
		return err
	}

	for y := 0; y < src.Height; y++ {
		copy(dst.Row(y), src.Row(y))
	}
	return nil
}

// Copy returns an owned deep copy of src.
func Copy(src *Buffer) (*Buffer, error) {
	if src == nil {
		return nil, ErrNilBuffer
	}

	dst := NewBuffer(src.Mode)
	dst.Width, dst.Height = src.Width, src.Height
	if err := dst.allocate(); err != nil {
		return nil, err
	}
	if err := CopyPixels(src, dst); err != nil {
		return nil, err
	}
	return dst, nil
}
