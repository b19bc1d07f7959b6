package decbuf

import (
	"fmt"

	"github.com/seventv/WebPProcessor/src/riff"
)

// Options adjusts what a decode writes into its Buffer. Cropping happens
// first, then scaling, then rotation; Flip only changes the memory layout.
type Options struct {
	UseCropping bool
	CropLeft    int
	CropTop     int
	CropWidth   int
	CropHeight  int

	// A zero ScaledWidth or ScaledHeight keeps the aspect ratio of the
	// cropped area.
	UseScaling   bool
	ScaledWidth  int
	ScaledHeight int

	// Rotate is clockwise, in degrees: 0, 90, 180 or 270.
	Rotate int
	Flip   bool

	version int
}

func DefaultOptions() *Options {
	return &Options{version: Version}
}

// window is the crop area and final size computed from Options.
type window struct {
	left, top     int
	width, height int
	// size after scaling, before rotation
	scaledW, scaledH int
	rotate           int
}

func (w window) scaled() bool {
	return w.scaledW != w.width || w.scaledH != w.height
}

// outputSize is the buffer size once the rotation is applied.
func (w window) outputSize() (int, int) {
	if w.rotate == 90 || w.rotate == 270 {
		return w.scaledH, w.scaledW
	}
	return w.scaledW, w.scaledH
}

func (o *Options) window(width, height int) (window, error) {
	win := window{width: width, height: height, scaledW: width, scaledH: height}
	if o == nil {
		return win, nil
	}
	if err := checkVersion(o.version); err != nil {
		return win, err
	}

	if o.UseCropping {
		if o.CropLeft < 0 || o.CropTop < 0 || o.CropWidth <= 0 || o.CropHeight <= 0 ||
			o.CropLeft+o.CropWidth > width || o.CropTop+o.CropHeight > height {
			return win, fmt.Errorf("crop %dx%d+%d+%d outside %dx%d: %w",
				o.CropWidth, o.CropHeight, o.CropLeft, o.CropTop, width, height, riff.ErrInvalidParam)
		}
		win.left, win.top = o.CropLeft, o.CropTop
		win.width, win.height = o.CropWidth, o.CropHeight
	}
	win.scaledW, win.scaledH = win.width, win.height

	if o.UseScaling {
		w, h, err := ScaledDimensions(win.width, win.height, o.ScaledWidth, o.ScaledHeight)
		if err != nil {
			return win, err
		}
		win.scaledW, win.scaledH = w, h
	}

	switch o.Rotate {
	case 0, 90, 180, 270:
		win.rotate = o.Rotate
	default:
		return win, fmt.Errorf("rotation %d: %w", o.Rotate, riff.ErrInvalidParam)
	}
	return win, nil
}

// OutputSize returns the buffer dimensions a width x height image decodes
// to under o.
func (o *Options) OutputSize(width, height int) (int, int, error) {
	win, err := o.window(width, height)
	if err != nil {
		return 0, 0, err
	}
	w, h := win.outputSize()
	return w, h, nil
}

// ScaledDimensions fills in a zero dstWidth or dstHeight from the source
// aspect ratio, rounding up.
func ScaledDimensions(srcWidth, srcHeight, dstWidth, dstHeight int) (int, int, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0, fmt.Errorf("source %dx%d: %w", srcWidth, srcHeight, riff.ErrInvalidParam)
	}

	w, h := uint64(dstWidth), uint64(dstHeight)
	if dstWidth < 0 || dstHeight < 0 {
		w, h = 0, 0
	} else if dstWidth == 0 && dstHeight > 0 {
		w = (uint64(srcWidth)*h + uint64(srcHeight) - 1) / uint64(srcHeight)
	} else if dstHeight == 0 && dstWidth > 0 {
		h = (uint64(srcHeight)*w + uint64(srcWidth) - 1) / uint64(srcWidth)
	}

	if w == 0 || h == 0 || w > riff.MaxCanvasSize || h > riff.MaxCanvasSize {
		return 0, 0, fmt.Errorf("scaled size %dx%d: %w", dstWidth, dstHeight, riff.ErrInvalidParam)
	}
	return int(w), int(h), nil
}
