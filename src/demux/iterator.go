package demux

import "github.com/seventv/WebPProcessor/src/riff"

// FrameIterator describes one frame of a Demuxer. It does not own Payload,
// and the parent Demuxer must stay alive while the iterator is used.
type FrameIterator struct {
	FrameNum  int
	NumFrames int
	X         int
	Y         int
	Width     int
	Height    int
	Duration  int
	Dispose   DisposeMethod
	Blend     BlendMethod
	HasAlpha  bool
	Complete  bool

	// Payload spans the frame's ALPH chunk (if any) through its image chunk.
	Payload []byte

	dmux *Demuxer
}

// GetFrame returns frame n, counting from 1. n == 0 returns the last frame.
func (d *Demuxer) GetFrame(n int) (*FrameIterator, bool) {
	it := &FrameIterator{dmux: d}
	if !it.set(n) {
		return nil, false
	}
	return it, true
}

func (it *FrameIterator) set(n int) bool {
	d := it.dmux
	if d == nil || n < 0 || n > len(d.frames) {
		return false
	}
	if n == 0 {
		n = len(d.frames)
	}

	f := d.frame(n)
	if f == nil {
		return false
	}

	it.FrameNum = f.frameNum
	it.NumFrames = len(d.frames)
	it.X = f.x
	it.Y = f.y
	it.Width = f.width
	it.Height = f.height
	it.Duration = f.duration
	it.Dispose = f.dispose
	it.Blend = f.blend
	it.HasAlpha = f.hasAlpha
	it.Complete = f.complete
	it.Payload = d.payload(f)
	return true
}

// Next moves to the following frame. It fails on the last one.
func (it *FrameIterator) Next() bool {
	return it.set(it.FrameNum + 1)
}

// Prev moves to the preceding frame. It fails on the first one.
func (it *FrameIterator) Prev() bool {
	if it.FrameNum <= 1 {
		return false
	}
	return it.set(it.FrameNum - 1)
}

// Release drops the iterator's reference to its Demuxer.
func (it *FrameIterator) Release() {
	*it = FrameIterator{}
}

// ChunkIterator walks the stored chunks sharing one tag.
type ChunkIterator struct {
	ChunkNum  int
	NumChunks int
	Payload   []byte

	tag  riff.FourCC
	dmux *Demuxer
}

// GetChunk returns the n-th chunk tagged tag, counting from 1. n == 0
// returns the last one. Only metadata and unknown chunks are stored.
func (d *Demuxer) GetChunk(tag riff.FourCC, n int) (*ChunkIterator, bool) {
	if !tag.Valid() {
		return nil, false
	}

	it := &ChunkIterator{tag: tag, dmux: d}
	if !it.set(n) {
		return nil, false
	}
	return it, true
}

// ChunkTags lists the distinct tags of the stored chunks in file order.
func (d *Demuxer) ChunkTags() []riff.FourCC {
	var tags []riff.FourCC
	seen := map[riff.FourCC]bool{}
	for _, c := range d.chunks {
		if !seen[c.tag] {
			seen[c.tag] = true
			tags = append(tags, c.tag)
		}
	}
	return tags
}

func (d *Demuxer) chunkCount(tag riff.FourCC) int {
	count := 0
	for _, c := range d.chunks {
		if c.tag == tag {
			count++
		}
	}
	return count
}

func (d *Demuxer) chunk(tag riff.FourCC, n int) *chunk {
	count := 0
	for i := range d.chunks {
		if d.chunks[i].tag == tag {
			count++
			if count == n {
				return &d.chunks[i]
			}
		}
	}
	return nil
}

func (it *ChunkIterator) set(n int) bool {
	d := it.dmux
	if d == nil || n < 0 {
		return false
	}

	count := d.chunkCount(it.tag)
	if count == 0 || n > count {
		return false
	}
	if n == 0 {
		n = count
	}

	c := d.chunk(it.tag, n)
	start := c.data.offset + riff.ChunkHeaderSize
	end := c.data.offset + c.data.size
	it.Payload = d.mem.buf[start:end:end]
	it.NumChunks = count
	it.ChunkNum = n
	return true
}

// Tag returns the fourcc the iterator walks.
func (it *ChunkIterator) Tag() riff.FourCC {
	return it.tag
}

func (it *ChunkIterator) Next() bool {
	return it.set(it.ChunkNum + 1)
}

func (it *ChunkIterator) Prev() bool {
	if it.ChunkNum <= 1 {
		return false
	}
	return it.set(it.ChunkNum - 1)
}

// Release drops the iterator's reference to its Demuxer.
func (it *ChunkIterator) Release() {
	*it = ChunkIterator{}
}
