// Package demux splits a WebP container into frames and metadata chunks
// without decoding any pixels.
//
// A Demuxer never changes once built. Streaming callers reparse a longer
// prefix of the file every time more bytes arrive.
package demux

import (
	"fmt"

	"github.com/seventv/WebPProcessor/src/riff"
)

// State is how far parsing got through the input.
type State int

const (
	ParseError State = iota - 1
	ParsingHeader
	ParsedHeader
	Done
)

func (s State) String() string {
	switch s {
	case ParseError:
		return "parse-error"
	case ParsingHeader:
		return "parsing-header"
	case ParsedHeader:
		return "parsed-header"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Feature selects a value reported by GetFeature.
type Feature int

const (
	FormatFlags Feature = iota
	CanvasWidth
	CanvasHeight
	LoopCount
	BackgroundColor
	FrameCount
)

type DisposeMethod int

const (
	DisposeNone DisposeMethod = iota
	DisposeBackground
)

func (d DisposeMethod) String() string {
	if d == DisposeBackground {
		return "background"
	}
	return "none"
}

type BlendMethod int

const (
	Blend BlendMethod = iota
	NoBlend
)

func (b BlendMethod) String() string {
	if b == NoBlend {
		return "no-blend"
	}
	return "blend"
}

var (
	ErrInvalidContainer = fmt.Errorf("invalid container: %w", riff.ErrBitstream)
	ErrIncomplete       = fmt.Errorf("incomplete container: %w", riff.ErrNotEnoughData)
	ErrEmptyInput       = fmt.Errorf("empty input: %w", riff.ErrInvalidParam)
)

type span struct {
	offset int
	size   int
}

type frame struct {
	x, y          int
	width, height int
	duration      int
	dispose       DisposeMethod
	blend         BlendMethod
	frameNum      int
	complete      bool
	hasAlpha      bool
	img           span
	alpha         span
}

type chunk struct {
	tag  riff.FourCC
	data span // header included
}

// Demuxer holds the parsed layout of a container. It references the caller's
// bytes and must not outlive them.
type Demuxer struct {
	mem memBuffer

	state        State
	isExt        bool
	flags        riff.Flags
	canvasWidth  int
	canvasHeight int
	loopCount    int
	bgcolor      uint32

	frames []*frame
	chunks []chunk
}

func newDemuxer(mem memBuffer) *Demuxer {
	return &Demuxer{
		mem:          mem,
		state:        ParsingHeader,
		loopCount:    1,
		bgcolor:      0xffffffff,
		canvasWidth:  -1,
		canvasHeight: -1,
	}
}

// Parse demuxes a complete file.
func Parse(data []byte) (*Demuxer, error) {
	d, _, err := demux(data, false)
	return d, err
}

// ParsePartial demuxes a possibly truncated file. The demuxer is nil when
// the header is not readable yet or the data is invalid.
func ParsePartial(data []byte) (*Demuxer, State) {
	d, state, _ := demux(data, true)
	return d, state
}

type masterParser struct {
	tag   riff.FourCC
	parse func(*Demuxer) parseStatus
	valid func(*Demuxer) bool
}

var masterChunks = []masterParser{
	{riff.TagVP8, (*Demuxer).parseSingleImage, (*Demuxer).isValidSimpleFormat},
	{riff.TagVP8L, (*Demuxer).parseSingleImage, (*Demuxer).isValidSimpleFormat},
	{riff.TagVP8X, (*Demuxer).parseVP8X, (*Demuxer).isValidExtendedFormat},
}

func demux(data []byte, allowPartial bool) (*Demuxer, State, error) {
	if len(data) == 0 {
		return nil, ParseError, ErrEmptyInput
	}

	mem := memBuffer{buf: data, end: len(data), riffEnd: len(data)}
	switch status := mem.readHeader(); status {
	case parseOK:
	case parseError:
		// not a RIFF container, try a bare VP8/VP8L bitstream
		d, status := newRawImageDemuxer(mem)
		if status == parseOK {
			return d, Done, nil
		}
		if status == parseNeedMoreData {
			return nil, ParsingHeader, ErrIncomplete
		}
		return nil, ParseError, ErrInvalidContainer
	default:
		return nil, ParsingHeader, ErrIncomplete
	}

	partial := len(mem.buf) < mem.riffEnd
	if !allowPartial && partial {
		return nil, ParseError, ErrIncomplete
	}

	d := newDemuxer(mem)
	tag := riff.TagAt(d.mem.peek())
	for _, p := range masterChunks {
		if p.tag != tag {
			continue
		}

		status := p.parse(d)
		if status == parseOK {
			d.state = Done
		}
		if status == parseNeedMoreData && !partial {
			status = parseError
		}
		if status != parseError && !p.valid(d) {
			status = parseError
		}
		if status == parseError {
			return nil, ParseError, ErrInvalidContainer
		}
		return d, d.state, nil
	}

	return nil, ParseError, fmt.Errorf("%w: unexpected first chunk %q", ErrInvalidContainer, string(tag))
}

func newRawImageDemuxer(mem memBuffer) (*Demuxer, parseStatus) {
	feat, err := riff.GetFeatures(mem.buf)
	if err != nil {
		if riff.StatusOf(err) == riff.StatusNotEnoughData {
			return nil, parseNeedMoreData
		}
		return nil, parseError
	}

	d := newDemuxer(mem)
	f := &frame{
		width:    feat.Width,
		height:   feat.Height,
		hasAlpha: feat.HasAlpha,
		frameNum: 1,
		complete: true,
		img:      span{0, len(mem.buf)},
	}
	d.addFrame(f)
	d.state = Done
	d.canvasWidth = f.width
	d.canvasHeight = f.height
	if f.hasAlpha {
		d.flags |= riff.AlphaFlag
	}
	return d, parseOK
}

// State reports how far parsing went.
func (d *Demuxer) State() State {
	return d.state
}

// Data returns the bytes the demuxer refers to, clamped to the RIFF size.
func (d *Demuxer) Data() []byte {
	return d.mem.buf
}

// GetFeature returns one of the container level values. Values are only
// meaningful once the state is past ParsingHeader.
func (d *Demuxer) GetFeature(f Feature) uint32 {
	switch f {
	case FormatFlags:
		return uint32(d.flags)
	case CanvasWidth:
		return uint32(d.canvasWidth)
	case CanvasHeight:
		return uint32(d.canvasHeight)
	case LoopCount:
		return uint32(d.loopCount)
	case BackgroundColor:
		return d.bgcolor
	case FrameCount:
		return uint32(len(d.frames))
	}
	return 0
}

func (d *Demuxer) Flags() riff.Flags {
	return d.flags
}

func (d *Demuxer) CanvasWidth() int {
	return d.canvasWidth
}

func (d *Demuxer) CanvasHeight() int {
	return d.canvasHeight
}

func (d *Demuxer) LoopCount() int {
	return d.loopCount
}

// BackgroundColor is stored in B, G, R, A byte order from the least significant byte.
func (d *Demuxer) BackgroundColor() uint32 {
	return d.bgcolor
}

func (d *Demuxer) FrameCount() int {
	return len(d.frames)
}

func (d *Demuxer) frame(n int) *frame {
	for _, f := range d.frames {
		if f.frameNum == n {
			return f
		}
	}
	return nil
}

func (d *Demuxer) addFrame(f *frame) bool {
	if n := len(d.frames); n > 0 && !d.frames[n-1].complete {
		return false
	}
	d.frames = append(d.frames, f)
	return true
}

// payload spans the alpha chunk, if any, through the end of the image chunk.
func (d *Demuxer) payload(f *frame) []byte {
	start, size := f.img.offset, f.img.size
	if f.alpha.size > 0 {
		inter := 0
		if f.img.offset > 0 {
			inter = f.img.offset - (f.alpha.offset + f.alpha.size)
		}
		start = f.alpha.offset
		size += f.alpha.size + inter
	}
	end := start + size
	return d.mem.buf[start:end:end]
}
