package riff

// Format identifies the coding of the primary image payload.
type Format int

const (
	FormatUndefined Format = iota // undefined or mixed
	FormatLossy
	FormatLossless
)

func (f Format) String() string {
	switch f {
	case FormatLossy:
		return "lossy"
	case FormatLossless:
		return "lossless"
	}
	return "undefined"
}

// Features are the bitstream properties readable from the first bytes of a file.
type Features struct {
	Width        int
	Height       int
	HasAlpha     bool
	HasAnimation bool
	Format       Format
}

// HeaderInfo locates the compressed image payload inside a buffer.
type HeaderInfo struct {
	Data           []byte
	DataSize       int
	HaveAllData    bool
	Offset         int    // start of the VP8/VP8L bitstream inside Data
	CompressedSize int    // bitstream size as declared by its chunk
	RiffSize       uint32 // declared RIFF size, 0 when the data has no RIFF header
	Alpha          []byte // ALPH payload, nil when absent
	IsLossless     bool
}

// Bitstream returns the compressed image bytes, clamped to what is available.
func (h *HeaderInfo) Bitstream() []byte {
	end := h.Offset + h.CompressedSize
	if end > len(h.Data) {
		end = len(h.Data)
	}
	return h.Data[h.Offset:end]
}

// ParseHeaders walks the container headers of data up to the primary image
// payload. Animated files report ErrUnsupportedFeature: their frames have to be
// pulled out through the demuxer.
func ParseHeaders(data []byte, haveAllData bool) (HeaderInfo, error) {
	hdr := HeaderInfo{
		Data:        data,
		DataSize:    len(data),
		HaveAllData: haveAllData,
	}

	feat, st := parse(data, haveAllData, &hdr)
	if (st == StatusOK || st == StatusNotEnoughData) && feat.HasAnimation {
		st = StatusUnsupportedFeature
	}
	if st != StatusOK {
		return hdr, st.Err()
	}
	return hdr, nil
}

// GetFeatures reads the image features without requiring the full payload.
// An animated extended file is answered from its VP8X header alone.
func GetFeatures(data []byte) (Features, error) {
	feat, st := parse(data, false, nil)
	if st != StatusOK {
		return Features{}, st.Err()
	}
	return feat, nil
}

func parse(data []byte, haveAllData bool, hdr *HeaderInfo) (Features, Status) {
	var (
		feat         Features
		riffSize     uint32
		alpha        []byte
		foundVP8X    bool
		canvasWidth  int
		canvasHeight int
	)

	if len(data) < HeaderSize {
		return feat, StatusNotEnoughData
	}

	buf := data
	rest, riffSize, st := parseRIFF(buf, haveAllData)
	if st != StatusOK {
		return feat, st
	}
	buf = rest
	foundRIFF := riffSize > 0

	rest, flags, canvasWidth, canvasHeight, foundVP8X, st := parseVP8X(buf)
	if st != StatusOK {
		return feat, st
	}
	buf = rest
	if !foundRIFF && foundVP8X {
		return feat, StatusBitstreamError
	}
	feat.HasAlpha = flags&AlphaFlag != 0
	feat.HasAnimation = flags&AnimationFlag != 0
	imageWidth, imageHeight := canvasWidth, canvasHeight

	finish := func(st Status) (Features, Status) {
		if st == StatusOK || (st == StatusNotEnoughData && foundVP8X && hdr == nil) {
			feat.HasAlpha = feat.HasAlpha || alpha != nil
			feat.Width = imageWidth
			feat.Height = imageHeight
			return feat, StatusOK
		}
		return feat, st
	}

	if foundVP8X && feat.HasAnimation && hdr == nil {
		return finish(StatusOK)
	}

	if len(buf) < TagSize {
		return finish(StatusNotEnoughData)
	}

	if (foundRIFF && foundVP8X) || (!foundRIFF && !foundVP8X && TagAt(buf) == TagALPH) {
		rest, alpha, st = parseOptionalChunks(buf, riffSize)
		if st != StatusOK {
			return finish(st)
		}
		buf = rest
	}

	rest, compressedSize, lossless, st := parseVP8Header(buf, haveAllData, riffSize)
	if st != StatusOK {
		return finish(st)
	}
	buf = rest
	if compressedSize > uint64(MaxChunkPayload) {
		return feat, StatusBitstreamError
	}

	if !feat.HasAnimation {
		if lossless {
			feat.Format = FormatLossless
		} else {
			feat.Format = FormatLossy
		}
	}

	if !lossless {
		if len(buf) < VP8FrameHeader {
			return finish(StatusNotEnoughData)
		}
		w, h, ok := VP8Info(buf, uint32(compressedSize))
		if !ok {
			return feat, StatusBitstreamError
		}
		imageWidth, imageHeight = w, h
	} else {
		if len(buf) < VP8LFrameHeader {
			return finish(StatusNotEnoughData)
		}
		w, h, hasAlpha, ok := VP8LInfo(buf)
		if !ok {
			return feat, StatusBitstreamError
		}
		imageWidth, imageHeight = w, h
		feat.HasAlpha = feat.HasAlpha || hasAlpha
	}

	if foundVP8X && (canvasWidth != imageWidth || canvasHeight != imageHeight) {
		return feat, StatusBitstreamError
	}

	if hdr != nil {
		hdr.Offset = len(data) - len(buf)
		hdr.CompressedSize = int(compressedSize)
		hdr.RiffSize = riffSize
		hdr.Alpha = alpha
		hdr.IsLossless = lossless
	}

	return finish(StatusOK)
}

// parseRIFF skips the RIFF header if present. The header is optional so raw
// chunk sequences can be handed in directly.
func parseRIFF(data []byte, haveAllData bool) ([]byte, uint32, Status) {
	if len(data) < HeaderSize || TagAt(data) != TagRIFF {
		return data, 0, StatusOK
	}
	if TagAt(data[8:]) != TagWEBP {
		return data, 0, StatusBitstreamError
	}

	size := LE32(data[TagSize:])
	// at least "WEBP" plus one chunk header
	if size < TagSize+ChunkHeaderSize || size > MaxChunkPayload {
		return data, 0, StatusBitstreamError
	}
	if haveAllData && uint64(size) > uint64(len(data)-ChunkHeaderSize) {
		return data, 0, StatusNotEnoughData
	}

	return data[HeaderSize:], size, StatusOK
}

func parseVP8X(data []byte) (rest []byte, flags Flags, width, height int, found bool, st Status) {
	if len(data) < ChunkHeaderSize {
		return data, 0, 0, 0, false, StatusNotEnoughData
	}
	if TagAt(data) != TagVP8X {
		return data, 0, 0, 0, false, StatusOK
	}

	if LE32(data[TagSize:]) != VP8XChunkSize {
		return data, 0, 0, 0, false, StatusBitstreamError
	}
	if len(data) < ChunkHeaderSize+VP8XChunkSize {
		return data, 0, 0, 0, false, StatusNotEnoughData
	}

	flags = Flags(LE32(data[8:]))
	width = 1 + int(LE24(data[12:]))
	height = 1 + int(LE24(data[15:]))
	if uint64(width)*uint64(height) >= MaxImageArea {
		return data, 0, 0, 0, false, StatusBitstreamError
	}

	return data[ChunkHeaderSize+VP8XChunkSize:], flags, width, height, true, StatusOK
}

// parseOptionalChunks skips everything up to the first VP8/VP8L chunk and
// records the ALPH payload on the way.
func parseOptionalChunks(data []byte, riffSize uint32) ([]byte, []byte, Status) {
	var alpha []byte
	total := uint64(TagSize + ChunkHeaderSize + VP8XChunkSize)

	buf := data
	for {
		if len(buf) < ChunkHeaderSize {
			return buf, alpha, StatusNotEnoughData
		}

		size := LE32(buf[TagSize:])
		if size > MaxChunkPayload {
			return buf, alpha, StatusBitstreamError
		}

		disk := uint64(ChunkHeaderSize) + Padded(size)
		total += disk
		if riffSize > 0 && total > uint64(riffSize) {
			return buf, alpha, StatusBitstreamError
		}

		// incomplete VP8/VP8L chunks are fine here
		tag := TagAt(buf)
		if tag == TagVP8 || tag == TagVP8L {
			return buf, alpha, StatusOK
		}
		if uint64(len(buf)) < disk {
			return buf, alpha, StatusNotEnoughData
		}

		if tag == TagALPH {
			alpha = buf[ChunkHeaderSize : ChunkHeaderSize+int(size)]
		}
		buf = buf[disk:]
	}
}

func parseVP8Header(data []byte, haveAllData bool, riffSize uint32) ([]byte, uint64, bool, Status) {
	const minimalSize = TagSize + ChunkHeaderSize

	if len(data) < ChunkHeaderSize {
		return data, 0, false, StatusNotEnoughData
	}

	tag := TagAt(data)
	if tag != TagVP8 && tag != TagVP8L {
		// raw bitstream without a chunk header
		return data, uint64(len(data)), VP8LCheckSignature(data), StatusOK
	}

	size := LE32(data[TagSize:])
	if riffSize >= minimalSize && size > riffSize-minimalSize {
		return data, 0, false, StatusBitstreamError
	}
	if haveAllData && uint64(size) > uint64(len(data)-ChunkHeaderSize) {
		return data, 0, false, StatusNotEnoughData
	}

	return data[ChunkHeaderSize:], uint64(size), tag == TagVP8L, StatusOK
}
