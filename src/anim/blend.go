package anim

// Pixels here are 4 bytes with alpha at index 3, which holds for every
// color mode the decoder accepts.

// blendNonPremult composites src over dst in place, for straight alpha.
func blendNonPremult(dst, src []byte) {
	srcA := uint32(src[3])
	if srcA == 0 {
		return
	}

	dstA := uint32(dst[3])
	dstFactorA := (dstA * (256 - srcA)) >> 8
	blendA := srcA + dstFactorA
	scale := (uint32(1) << 24) / blendA

	for c := 0; c < 3; c++ {
		v := uint32(src[c])*srcA + uint32(dst[c])*dstFactorA
		dst[c] = byte((v * scale) >> 24)
	}
	dst[3] = byte(blendA)
}

// blendPremult composites src over dst in place, for premultiplied alpha.
func blendPremult(dst, src []byte) {
	scale := 256 - uint32(src[3])
	for c := 0; c < 4; c++ {
		dst[c] = src[c] + byte((uint32(dst[c])*scale)>>8)
	}
}

func blendRow(dst, src []byte, premult bool) {
	for i := 0; i+4 <= len(src); i += 4 {
		s, d := src[i:i+4], dst[i:i+4]
		if s[3] == 0xff {
			copy(d, s)
			continue
		}
		if premult {
			blendPremult(d, s)
		} else {
			blendNonPremult(d, s)
		}
	}
}
