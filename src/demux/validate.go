package demux

import "github.com/seventv/WebPProcessor/src/riff"

func (d *Demuxer) isValidSimpleFormat() bool {
	if d.state == ParsingHeader {
		return true
	}
	if d.canvasWidth <= 0 || d.canvasHeight <= 0 {
		return false
	}
	if len(d.frames) == 0 {
		return d.state != Done
	}

	f := d.frames[0]
	return f.width > 0 && f.height > 0
}

func (d *Demuxer) isValidExtendedFormat() bool {
	isAnimation := d.flags&riff.AnimationFlag != 0

	if d.state == ParsingHeader {
		return true
	}
	if d.canvasWidth <= 0 || d.canvasHeight <= 0 || d.loopCount < 0 {
		return false
	}
	if d.state == Done && len(d.frames) == 0 {
		return false
	}
	if d.flags&^riff.AllValidFlags != 0 {
		return false
	}

	for i, f := range d.frames {
		if !isAnimation && f.frameNum > 1 {
			return false
		}

		if f.complete {
			if f.alpha.size == 0 && f.img.size == 0 {
				return false
			}
			if f.alpha.size > 0 && f.alpha.offset > f.img.offset {
				return false
			}
			if f.width <= 0 || f.height <= 0 {
				return false
			}
		} else {
			// a finished file has no partial frames, and nothing follows one
			if d.state == Done {
				return false
			}
			if f.alpha.size > 0 && f.img.size > 0 && f.alpha.offset > f.img.offset {
				return false
			}
			if i != len(d.frames)-1 {
				return false
			}
		}

		if f.width > 0 && f.height > 0 && !f.inBounds(!isAnimation, d.canvasWidth, d.canvasHeight) {
			return false
		}
	}

	return true
}

// inBounds checks the frame against the canvas. Still images must cover it
// exactly.
func (f *frame) inBounds(exact bool, canvasWidth, canvasHeight int) bool {
	if exact {
		return f.x == 0 && f.y == 0 && f.width == canvasWidth && f.height == canvasHeight
	}
	return f.x >= 0 && f.y >= 0 && f.x+f.width <= canvasWidth && f.y+f.height <= canvasHeight
}
