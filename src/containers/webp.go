package containers

import (
	"github.com/seventv/WebPProcessor/src/demux"
	"github.com/seventv/WebPProcessor/src/image"
	"github.com/seventv/WebPProcessor/src/riff"
)

var flagNames = []struct {
	flag riff.Flags
	name string
}{
	{riff.AnimationFlag, "animation"},
	{riff.AlphaFlag, "alpha"},
	{riff.ICCPFlag, "iccp"},
	{riff.EXIFFlag, "exif"},
	{riff.XMPFlag, "xmp"},
}

// Describe builds the manifest of a parsed file. Frame timestamps are the
// running sum of durations, as the animation decoder reports them.
func Describe(d *demux.Demuxer) image.Image {
	img := image.Image{
		Width:           d.CanvasWidth(),
		Height:          d.CanvasHeight(),
		Animated:        d.Flags()&riff.AnimationFlag != 0,
		HasAlpha:        d.Flags()&riff.AlphaFlag != 0,
		LoopCount:       d.LoopCount(),
		BackgroundColor: d.BackgroundColor(),
	}

	for _, f := range flagNames {
		if d.Flags()&f.flag != 0 {
			img.Flags = append(img.Flags, f.name)
		}
	}

	if it, ok := d.GetFrame(1); ok {
		for {
			frame := image.Frame{
				Index:    it.FrameNum,
				X:        it.X,
				Y:        it.Y,
				Width:    it.Width,
				Height:   it.Height,
				Duration: it.Duration,
				Dispose:  it.Dispose.String(),
				Blend:    it.Blend.String(),
				HasAlpha: it.HasAlpha,
				Size:     len(it.Payload),
			}
			if feat, err := riff.GetFeatures(it.Payload); err == nil {
				frame.Format = feat.Format.String()
			}

			img.Duration += it.Duration
			frame.Timestamp = img.Duration
			img.HasAlpha = img.HasAlpha || it.HasAlpha
			img.Frames = append(img.Frames, frame)

			if !it.Next() {
				break
			}
		}
		it.Release()
	}

	for _, tag := range d.ChunkTags() {
		for it, ok := d.GetChunk(tag, 1); ok; ok = it.Next() {
			img.Chunks = append(img.Chunks, image.Chunk{Tag: string(tag), Size: len(it.Payload)})
		}
	}

	return img
}
