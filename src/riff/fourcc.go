package riff

import "encoding/binary"

// FourCC is a four character chunk tag.
type FourCC string

const (
	TagRIFF FourCC = "RIFF"
	TagWEBP FourCC = "WEBP"
	TagVP8X FourCC = "VP8X"
	TagVP8  FourCC = "VP8 "
	TagVP8L FourCC = "VP8L"
	TagALPH FourCC = "ALPH"
	TagANIM FourCC = "ANIM"
	TagANMF FourCC = "ANMF"
	TagICCP FourCC = "ICCP"
	TagEXIF FourCC = "EXIF"
	TagXMP  FourCC = "XMP "
)

const (
	TagSize         = 4
	ChunkHeaderSize = 8
	HeaderSize      = 12 // "RIFF" + size + "WEBP"
	VP8XChunkSize   = 10
	AnimChunkSize   = 6
	AnmfChunkSize   = 16
	VP8FrameHeader  = 10
	VP8LFrameHeader = 5
	VP8LMagicByte   = 0x2f
	AlphaHeaderSize = 1
	MaxChunkPayload = ^uint32(0) - ChunkHeaderSize - 1
	MaxImageArea    = uint64(1) << 32
	MaxCanvasSize   = 1 << 24
)

// Flags are the feature bits stored in the first byte of a VP8X payload.
type Flags uint32

const (
	AnimationFlag Flags = 0x02
	XMPFlag       Flags = 0x04
	EXIFFlag      Flags = 0x08
	AlphaFlag     Flags = 0x10
	ICCPFlag      Flags = 0x20

	AllValidFlags = AnimationFlag | XMPFlag | EXIFFlag | AlphaFlag | ICCPFlag
)

// Valid reports if f is a fourcc-sized tag.
func (f FourCC) Valid() bool {
	return len(f) == TagSize
}

// TagAt returns the tag stored at the start of b. b must hold at least TagSize bytes.
func TagAt(b []byte) FourCC {
	return FourCC(b[:TagSize])
}

func LE16(b []byte) uint32 {
	return uint32(binary.LittleEndian.Uint16(b))
}

func LE24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func LE32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// Padded rounds a chunk payload size up to the even on-disk size.
func Padded(size uint32) uint64 {
	return uint64(size) + uint64(size&1)
}
