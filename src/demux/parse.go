package demux

import (
	"github.com/seventv/WebPProcessor/src/riff"
)

type parseStatus int

const (
	parseOK parseStatus = iota
	parseNeedMoreData
	parseError
)

// memBuffer is a read cursor over the input. end never exceeds riffEnd.
type memBuffer struct {
	buf     []byte
	start   int
	end     int
	riffEnd int
}

func (m *memBuffer) dataSize() int {
	return m.end - m.start
}

// sizeIsInvalid reports if size bytes would run past the RIFF payload.
func (m *memBuffer) sizeIsInvalid(size uint64) bool {
	return size > uint64(m.riffEnd-m.start)
}

func (m *memBuffer) peek() []byte {
	return m.buf[m.start:m.end]
}

func (m *memBuffer) skip(n int) {
	m.start += n
}

func (m *memBuffer) rewind(n int) {
	m.start -= n
}

func (m *memBuffer) readByte() byte {
	b := m.buf[m.start]
	m.start++
	return b
}

func (m *memBuffer) readTag() riff.FourCC {
	t := riff.TagAt(m.buf[m.start:])
	m.start += riff.TagSize
	return t
}

func (m *memBuffer) readLE16() int {
	v := riff.LE16(m.buf[m.start:])
	m.start += 2
	return int(v)
}

func (m *memBuffer) readLE24() int {
	v := riff.LE24(m.buf[m.start:])
	m.start += 3
	return int(v)
}

func (m *memBuffer) readLE32() uint32 {
	v := riff.LE32(m.buf[m.start:])
	m.start += 4
	return v
}

func (m *memBuffer) readHeader() parseStatus {
	if m.dataSize() < riff.HeaderSize+riff.ChunkHeaderSize {
		return parseNeedMoreData
	}

	b := m.peek()
	if riff.TagAt(b) != riff.TagRIFF || riff.TagAt(b[riff.ChunkHeaderSize:]) != riff.TagWEBP {
		return parseError
	}

	size := riff.LE32(b[riff.TagSize:])
	if size < riff.ChunkHeaderSize || size > riff.MaxChunkPayload {
		return parseError
	}

	// nothing past the RIFF payload is ever read
	m.riffEnd = int(size) + riff.ChunkHeaderSize
	if len(m.buf) > m.riffEnd {
		m.buf = m.buf[:m.riffEnd]
		m.end = m.riffEnd
	}

	m.skip(riff.HeaderSize)
	return parseOK
}

// storeFrame records the ALPH and VP8/VP8L chunks of one frame. It stops at
// the first chunk that does not belong to the frame.
func (d *Demuxer) storeFrame(frameNum int, minSize uint64, f *frame) parseStatus {
	mem := &d.mem
	if mem.dataSize() < riff.ChunkHeaderSize || uint64(mem.dataSize()) < minSize {
		return parseNeedMoreData
	}

	alphaChunks, imageChunks := 0, 0
	status := parseOK
	for done := false; !done && status == parseOK; {
		chunkStart := mem.start
		tag := mem.readTag()
		payloadSize := mem.readLE32()
		if payloadSize > riff.MaxChunkPayload {
			return parseError
		}

		padded := riff.Padded(payloadSize)
		available := padded
		if available > uint64(mem.dataSize()) {
			available = uint64(mem.dataSize())
		}
		chunkSize := riff.ChunkHeaderSize + int(available)
		if mem.sizeIsInvalid(padded) {
			return parseError
		}
		if padded > uint64(mem.dataSize()) {
			status = parseNeedMoreData
		}

		switch tag {
		case riff.TagALPH:
			if alphaChunks > 0 {
				mem.rewind(riff.ChunkHeaderSize)
				done = true
				break
			}
			alphaChunks++
			f.alpha = span{chunkStart, chunkSize}
			f.hasAlpha = true
			f.frameNum = frameNum
			mem.skip(int(available))
		case riff.TagVP8L, riff.TagVP8:
			// VP8L carries its own alpha
			if tag == riff.TagVP8L && alphaChunks > 0 {
				return parseError
			}
			if imageChunks > 0 {
				mem.rewind(riff.ChunkHeaderSize)
				done = true
				break
			}

			feat, err := riff.GetFeatures(mem.buf[chunkStart : chunkStart+chunkSize])
			if err != nil {
				if status == parseNeedMoreData && riff.StatusOf(err) == riff.StatusNotEnoughData {
					return parseNeedMoreData
				}
				return parseError
			}

			imageChunks++
			f.img = span{chunkStart, chunkSize}
			f.width = feat.Width
			f.height = feat.Height
			f.hasAlpha = f.hasAlpha || feat.HasAlpha
			f.frameNum = frameNum
			f.complete = status == parseOK
			mem.skip(int(available))
		default:
			mem.rewind(riff.ChunkHeaderSize)
			done = true
		}

		if mem.start == mem.riffEnd {
			done = true
		} else if mem.dataSize() < riff.ChunkHeaderSize {
			status = parseNeedMoreData
		}
	}

	return status
}

// parseSingleImage handles the one image of a simple file, or of an extended
// file without animation. A partial image is accepted.
func (d *Demuxer) parseSingleImage() parseStatus {
	mem := &d.mem
	if len(d.frames) > 0 {
		return parseError
	}
	if mem.sizeIsInvalid(riff.ChunkHeaderSize) {
		return parseError
	}
	if mem.dataSize() < riff.ChunkHeaderSize {
		return parseNeedMoreData
	}

	f := &frame{}
	status := d.storeFrame(1, 0, f)
	if status == parseError {
		return status
	}

	if d.flags&riff.AlphaFlag == 0 && f.alpha.size > 0 {
		f.alpha = span{}
		f.hasAlpha = false
	}

	// simple files take their canvas from the image
	if !d.isExt && f.width > 0 && f.height > 0 {
		d.state = ParsedHeader
		d.canvasWidth = f.width
		d.canvasHeight = f.height
		if f.hasAlpha {
			d.flags |= riff.AlphaFlag
		}
	}

	if !d.addFrame(f) {
		return parseError
	}
	return status
}

func (d *Demuxer) parseVP8X() parseStatus {
	mem := &d.mem
	if mem.dataSize() < riff.ChunkHeaderSize {
		return parseNeedMoreData
	}

	d.isExt = true
	mem.skip(riff.TagSize)
	size := mem.readLE32()
	if size > riff.MaxChunkPayload || size < riff.VP8XChunkSize {
		return parseError
	}
	padded := riff.Padded(size)
	if mem.sizeIsInvalid(padded) {
		return parseError
	}
	if uint64(mem.dataSize()) < padded {
		return parseNeedMoreData
	}

	d.flags = riff.Flags(mem.readByte())
	mem.skip(3) // reserved
	d.canvasWidth = 1 + mem.readLE24()
	d.canvasHeight = 1 + mem.readLE24()
	if uint64(d.canvasWidth)*uint64(d.canvasHeight) >= riff.MaxImageArea {
		return parseError
	}
	mem.skip(int(padded) - riff.VP8XChunkSize)
	d.state = ParsedHeader

	if mem.sizeIsInvalid(riff.ChunkHeaderSize) {
		return parseError
	}
	if mem.dataSize() < riff.ChunkHeaderSize {
		return parseNeedMoreData
	}

	return d.parseVP8XChunks()
}

func (d *Demuxer) parseVP8XChunks() parseStatus {
	isAnimation := d.flags&riff.AnimationFlag != 0
	mem := &d.mem
	animChunks := 0
	status := parseOK

	for {
		store, skip := true, false
		chunkStart := mem.start
		tag := mem.readTag()
		size := mem.readLE32()
		if size > riff.MaxChunkPayload {
			return parseError
		}
		padded := riff.Padded(size)
		if mem.sizeIsInvalid(padded) {
			return parseError
		}

		switch tag {
		case riff.TagVP8X:
			return parseError
		case riff.TagALPH, riff.TagVP8, riff.TagVP8L:
			// animations keep every image inside an ANMF
			if animChunks > 0 || isAnimation {
				return parseError
			}
			mem.rewind(riff.ChunkHeaderSize)
			status = d.parseSingleImage()
		case riff.TagANIM:
			if padded < riff.AnimChunkSize {
				return parseError
			}
			if uint64(mem.dataSize()) < padded {
				status = parseNeedMoreData
			} else if animChunks == 0 {
				animChunks++
				d.bgcolor = mem.readLE32()
				d.loopCount = mem.readLE16()
				mem.skip(int(padded) - riff.AnimChunkSize)
			} else {
				store, skip = false, true
			}
		case riff.TagANMF:
			if animChunks == 0 {
				return parseError
			}
			status = d.parseAnimationFrame(padded)
		case riff.TagICCP:
			store, skip = d.flags&riff.ICCPFlag != 0, true
		case riff.TagEXIF:
			store, skip = d.flags&riff.EXIFFlag != 0, true
		case riff.TagXMP:
			store, skip = d.flags&riff.XMPFlag != 0, true
		default:
			skip = true
		}

		if skip {
			if padded <= uint64(mem.dataSize()) {
				if store {
					d.chunks = append(d.chunks, chunk{
						tag:  tag,
						data: span{chunkStart, riff.ChunkHeaderSize + int(size)},
					})
				}
				mem.skip(int(padded))
			} else {
				status = parseNeedMoreData
			}
		}

		if mem.start == mem.riffEnd {
			break
		} else if mem.dataSize() < riff.ChunkHeaderSize {
			status = parseNeedMoreData
		}
		if status != parseOK {
			break
		}
	}

	return status
}

func (d *Demuxer) parseAnimationFrame(frameChunkSize uint64) parseStatus {
	mem := &d.mem
	isAnimation := d.flags&riff.AnimationFlag != 0

	if mem.sizeIsInvalid(riff.AnmfChunkSize) || frameChunkSize < riff.AnmfChunkSize {
		return parseError
	}
	if mem.dataSize() < riff.AnmfChunkSize {
		return parseNeedMoreData
	}
	anmfPayloadSize := frameChunkSize - riff.AnmfChunkSize

	f := &frame{}
	f.x = 2 * mem.readLE24()
	f.y = 2 * mem.readLE24()
	f.width = 1 + mem.readLE24()
	f.height = 1 + mem.readLE24()
	f.duration = mem.readLE24()
	bits := mem.readByte()
	if bits&1 != 0 {
		f.dispose = DisposeBackground
	}
	if bits&2 != 0 {
		f.blend = NoBlend
	}
	if uint64(f.width)*uint64(f.height) >= riff.MaxImageArea {
		return parseError
	}

	// the frame is only kept once some of its image data has been seen
	start := mem.start
	status := d.storeFrame(len(d.frames)+1, anmfPayloadSize, f)
	if status != parseError && uint64(mem.start-start) > anmfPayloadSize {
		status = parseError
	}
	if status != parseError && isAnimation && f.frameNum > 0 {
		if !d.addFrame(f) {
			status = parseError
		}
	}

	return status
}
