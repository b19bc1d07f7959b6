// Package image holds the description of an inspected file that ends up in
// the job manifest.
package image

// Image is the manifest of a WebP file.
type Image struct {
	Dir string `json:"-"`

	Width           int      `json:"width"`
	Height          int      `json:"height"`
	Animated        bool     `json:"animated"`
	HasAlpha        bool     `json:"has_alpha"`
	LoopCount       int      `json:"loop_count"`
	BackgroundColor uint32   `json:"background_color"`
	Flags           []string `json:"flags,omitempty"`
	Frames          []Frame  `json:"frames"`
	Chunks          []Chunk  `json:"chunks,omitempty"`
	// Duration is the sum of all frame durations, in milliseconds.
	Duration int `json:"duration"`

	// Probe is filled by the streaming header probe.
	Probe Probe `json:"probe"`
}

type Frame struct {
	Index     int    `json:"index"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  int    `json:"duration"`
	Timestamp int    `json:"timestamp"`
	Dispose   string `json:"dispose"`
	Blend     string `json:"blend"`
	Format    string `json:"format"`
	HasAlpha  bool   `json:"has_alpha"`
	Size      int    `json:"size"`
}

// Chunk is an unknown or metadata chunk kept by the demuxer.
type Chunk struct {
	Tag  string `json:"tag"`
	Size int    `json:"size"`
}

type Probe struct {
	// HeaderBytes is the shortest prefix that parsed past the header.
	HeaderBytes int    `json:"header_bytes"`
	Steps       int    `json:"steps"`
	State       string `json:"state"`
}

func (i Image) Delays() []int {
	delays := make([]int, len(i.Frames))
	for n, f := range i.Frames {
		delays[n] = f.Duration
	}
	return delays
}

type ImageType string

const (
	AVI  ImageType = "avi"
	AVIF ImageType = "avif"
	FLV  ImageType = "flv"
	GIF  ImageType = "gif"
	JPEG ImageType = "jpeg"
	MP4  ImageType = "mp4"
	PNG  ImageType = "png"
	TIFF ImageType = "tiff"
	WEBM ImageType = "webm"
	WEBP ImageType = "webp"
	MOV  ImageType = "mov"
)
