package containers

import (
	"bytes"
	"fmt"

	"github.com/fumiama/imgsz"
	"github.com/seventv/WebPProcessor/src/image"
	"github.com/seventv/WebPProcessor/src/riff"
)

var (
	ErrUnknownFormat = fmt.Errorf("unknown image format")
	ErrNotWebP       = fmt.Errorf("input is not a webp file")
	ErrNoSize        = fmt.Errorf("cannot read image size")
)

func ToType(data []byte) (image.ImageType, error) {
	for _, s := range signatures {
		if s.test(data) {
			return s.typ, nil
		}
	}

	return "", ErrUnknownFormat
}

// Info is what can be learned about an input without decoding it.
type Info struct {
	Type   image.ImageType `json:"type"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
}

// Probe identifies data and reads its dimensions from the header. WebP
// headers are read here; jpeg, png and gif go through imgsz. Other formats
// only report their type.
func Probe(data []byte) (Info, error) {
	typ, err := ToType(data)
	if err != nil {
		return Info{}, err
	}

	info := Info{Type: typ}
	switch typ {
	case image.WEBP:
		feat, err := riff.GetFeatures(data)
		if err != nil {
			return info, err
		}
		info.Width, info.Height = feat.Width, feat.Height
	case image.JPEG, image.PNG, image.GIF:
		sz, _, err := imgsz.DecodeSize(bytes.NewReader(data))
		if err != nil {
			return info, fmt.Errorf("%w: %s: %v", ErrNoSize, typ, err)
		}
		info.Width, info.Height = sz.Width, sz.Height
	}

	return info, nil
}
