package containers

import (
	"bytes"

	"github.com/seventv/WebPProcessor/src/image"
)

// Magic numbers from https://www.garykessler.net/library/file_sigs.html

type signature struct {
	typ  image.ImageType
	test func(data []byte) bool
}

// signatures are tried in order; avif comes last because its test is the
// loosest.
var signatures = []signature{
	{image.AVI, isAVI},
	{image.FLV, prefix("FLV\x01")},
	{image.GIF, isGIF},
	{image.JPEG, isJPEG},
	{image.MP4, isMP4},
	{image.PNG, isPNG},
	{image.TIFF, isTIFF},
	{image.WEBM, prefix("\x1a\x45\xdf\xa3")},
	{image.WEBP, isWEBP},
	{image.MOV, isMOV},
	{image.AVIF, prefix("\x00\x00\x00\x28ftypavis")},
}

func prefix(magic string) func([]byte) bool {
	return func(data []byte) bool {
		return bytes.HasPrefix(data, []byte(magic))
	}
}

func riffForm(data []byte, form string) bool {
	return len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte(form))
}

func isAVI(data []byte) bool {
	return riffForm(data, "AVI ") && len(data) >= 16 && bytes.Equal(data[12:16], []byte("LIST"))
}

func isWEBP(data []byte) bool {
	return riffForm(data, "WEBP")
}

func isGIF(data []byte) bool {
	return len(data) >= 6 &&
		(bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))) &&
		bytes.HasSuffix(data, []byte{0x00, ';'})
}

func isJPEG(data []byte) bool {
	return len(data) >= 4 &&
		bytes.HasPrefix(data, []byte{0xff, 0xd8}) &&
		bytes.HasSuffix(data, []byte{0xff, 0xd9})
}

func isPNG(data []byte) bool {
	return len(data) >= 16 &&
		bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) &&
		bytes.HasSuffix(data, []byte("IEND\xaeB`\x82"))
}

func isTIFF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("I I")) || bytes.HasPrefix(data, []byte("II*\x00"))
}

func ftypBrand(data []byte, brands ...string) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	for _, b := range brands {
		if bytes.Equal(data[8:12], []byte(b)) {
			return true
		}
	}
	return false
}

func isMP4(data []byte) bool {
	return ftypBrand(data, "MSNV", "isom", "mp42")
}

func isMOV(data []byte) bool {
	return ftypBrand(data, "qt  ")
}
