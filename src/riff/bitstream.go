package riff

// VP8CheckSignature reports if data starts with the VP8 key frame start code.
func VP8CheckSignature(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x9d && data[1] == 0x01 && data[2] == 0x2a
}

// VP8Info validates a VP8 frame header and returns the frame dimensions.
// chunkSize bounds the first partition length.
func VP8Info(data []byte, chunkSize uint32) (width, height int, ok bool) {
	if len(data) < VP8FrameHeader || !VP8CheckSignature(data[3:]) {
		return 0, 0, false
	}

	bits := LE24(data)
	keyFrame := bits&1 == 0
	profile := (bits >> 1) & 7
	shown := (bits>>4)&1 == 1
	partitionLength := bits >> 5

	if !keyFrame || profile > 3 || !shown || partitionLength >= chunkSize {
		return 0, 0, false
	}

	width = int(LE16(data[6:]) & 0x3fff)
	height = int(LE16(data[8:]) & 0x3fff)
	if width == 0 || height == 0 {
		return 0, 0, false
	}

	return width, height, true
}

// VP8LCheckSignature reports if data looks like a VP8L bitstream header.
func VP8LCheckSignature(data []byte) bool {
	return len(data) >= VP8LFrameHeader && data[0] == VP8LMagicByte && data[4]>>5 == 0
}

// VP8LInfo reads the dimensions and alpha hint of a VP8L header.
func VP8LInfo(data []byte) (width, height int, hasAlpha bool, ok bool) {
	if !VP8LCheckSignature(data) {
		return 0, 0, false, false
	}

	bits := LE32(data[1:])
	width = int(bits&0x3fff) + 1
	height = int((bits>>14)&0x3fff) + 1
	hasAlpha = (bits>>28)&1 == 1
	if bits>>29 != 0 {
		return 0, 0, false, false
	}

	return width, height, hasAlpha, true
}
