package containers

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	nPng "image/png"

	"github.com/fumiama/imgsz"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/WebPProcessor/src/anim"
	"github.com/seventv/WebPProcessor/src/configure"
	"github.com/seventv/WebPProcessor/src/decbuf"
	"github.com/seventv/WebPProcessor/src/demux"
	"github.com/seventv/WebPProcessor/src/image"
	"github.com/seventv/WebPProcessor/src/job"
	"github.com/seventv/WebPProcessor/src/riff"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrTruncated      = fmt.Errorf("file ends before the last frame: %w", riff.ErrNotEnoughData)
	ErrStateRegressed = fmt.Errorf("demux state went backwards")
)

const (
	defaultProbeChunk = 4096
	ManifestName      = "manifest.json"
)

var metadataFiles = []struct {
	tag  riff.FourCC
	name string
}{
	{riff.TagICCP, "profile.icc"},
	{riff.TagEXIF, "metadata.exif"},
	{riff.TagXMP, "metadata.xmp"},
}

var contentTypes = map[string]string{
	".icc":  "application/vnd.iccprofile",
	".exif": "application/octet-stream",
	".xmp":  "application/rdf+xml",
}

// ProcessStage1 replays data as a stream, growing the parsed prefix by the
// configured chunk size each step. onHeader is called once, with the
// shortest prefix that parsed past the header.
func ProcessStage1(ctx context.Context, config *configure.Config, data []byte, onHeader func(image.Probe)) (image.Probe, error) {
	step := config.Probe.ChunkSize
	if step <= 0 {
		step = defaultProbeChunk
	}

	probe := image.Probe{State: demux.ParsingHeader.String()}
	prevState := demux.ParsingHeader
	prevFrames := 0

	for n := 0; n < len(data); {
		if err := ctx.Err(); err != nil {
			return probe, err
		}

		n += step
		if n > len(data) {
			n = len(data)
		}

		dmux, state := demux.ParsePartial(data[:n])
		probe.Steps++
		if state == demux.ParseError {
			probe.State = state.String()
			return probe, fmt.Errorf("at %d bytes: %w", n, demux.ErrInvalidContainer)
		}

		frames := 0
		if dmux != nil {
			frames = dmux.FrameCount()
		}
		if state < prevState || frames < prevFrames {
			return probe, fmt.Errorf("%w: %s after %s at %d bytes", ErrStateRegressed, state, prevState, n)
		}
		prevState, prevFrames = state, frames
		probe.State = state.String()

		if state >= demux.ParsedHeader && probe.HeaderBytes == 0 {
			probe.HeaderBytes = n
			if onHeader != nil {
				onHeader(probe)
			}
		}
	}

	if prevState != demux.Done {
		return probe, ErrTruncated
	}
	return probe, nil
}

func decoderOptions(config *configure.Config) (*anim.Options, error) {
	opts := anim.DefaultOptions()
	if config.Decoder.ColorMode != "" {
		mode, err := decbuf.ParseMode(config.Decoder.ColorMode)
		if err != nil {
			return nil, err
		}
		opts.ColorMode = mode
	}
	opts.UseThreads = config.Decoder.UseThreads
	opts.UseBackgroundColor = config.Decoder.DisposeToBackground
	return opts, nil
}

// ProcessStage2 renders every frame of data into dir. Depending on settings
// it writes each composited frame, thumbnails of the first frame and the
// metadata chunks.
func ProcessStage2(ctx context.Context, config *configure.Config, dir string, data []byte, sizes map[string]job.ImageSize, settings uint64) (image.Image, error) {
	opts, err := decoderOptions(config)
	if err != nil {
		return image.Image{}, err
	}

	dec, err := anim.New(data, opts)
	if err != nil {
		return image.Image{}, err
	}
	defer dec.Delete()

	img := Describe(dec.Demuxer())
	img.Dir = dir

	if settings&job.EnableOutputMetadata != 0 {
		for _, m := range metadataFiles {
			it, ok := dec.Demuxer().GetChunk(m.tag, 1)
			if !ok {
				continue
			}
			if err := os.WriteFile(path.Join(dir, m.name), it.Payload, 0600); err != nil {
				return img, err
			}
		}
	}

	for i := 0; dec.HasMoreFrames(); i++ {
		if err := ctx.Err(); err != nil {
			return img, err
		}

		_, ts, err := dec.GetNext()
		if err != nil {
			return img, fmt.Errorf("frame %d: %w", i+1, err)
		}
		if i < len(img.Frames) {
			img.Frames[i].Timestamp = ts
		}

		canvas := dec.Canvas()
		if settings&job.EnableOutputFrames != 0 {
			if err := writePNG(path.Join(dir, fmt.Sprintf("frame_%04d.png", i)), &canvas); err != nil {
				return img, err
			}
		}
		if i == 0 && settings&job.EnableOutputThumbnails != 0 {
			if err := writeThumbnails(dir, &canvas, sizes); err != nil {
				return img, err
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"frames":   len(img.Frames),
		"width":    img.Width,
		"height":   img.Height,
		"duration": img.Duration,
	}).Debug("rendered animation")

	return img, nil
}

// thumbnailSize fits a srcW x srcH image into box, keeping its aspect ratio.
// A zero side of box is unbounded.
func thumbnailSize(srcW, srcH int, box job.ImageSize) (int, int, error) {
	if box.Height > 0 {
		w, h, err := decbuf.ScaledDimensions(srcW, srcH, 0, box.Height)
		if err != nil || box.Width <= 0 || w <= box.Width {
			return w, h, err
		}
	}
	return decbuf.ScaledDimensions(srcW, srcH, box.Width, 0)
}

func writeThumbnails(dir string, canvas *decbuf.Buffer, sizes map[string]job.ImageSize) error {
	errCh := make(chan error, len(sizes))

	for name, size := range sizes {
		go func(name string, size job.ImageSize) {
			w, h, err := thumbnailSize(canvas.Width, canvas.Height, size)
			if err != nil {
				errCh <- fmt.Errorf("thumbnail %s: %w", name, err)
				return
			}

			thumb, err := decbuf.Rescale(canvas, w, h)
			if err != nil {
				errCh <- fmt.Errorf("thumbnail %s: %w", name, err)
				return
			}

			errCh <- writePNG(path.Join(dir, fmt.Sprintf("%s.png", name)), thumb)
		}(name, size)
	}

	var err error
	for i := 0; i < len(sizes); i++ {
		err = multierror.Append(err, <-errCh).ErrorOrNil()
	}

	return err
}

func writePNG(file string, buf *decbuf.Buffer) error {
	m, err := buf.Image()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open file failed: %s", err.Error())
	}
	defer f.Close()

	return nPng.Encode(f, m)
}

// ProcessStage3 writes the manifest and describes every file in dir for the
// job result.
func ProcessStage3(ctx context.Context, dir string, img image.Image, settings uint64, start time.Time) ([]job.File, error) {
	if settings&job.EnableOutputManifest != 0 {
		b, err := json.MarshalIndent(img, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path.Join(dir, ManifestName), b, 0600); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := []job.File{}
	fileChan := make(chan job.File)
	errCh := make(chan error)
	wg := sync.WaitGroup{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}

			f, err := describeFile(path.Join(dir, name))
			if err != nil {
				errCh <- err
				return
			}
			f.TimeTaken = time.Since(start)
			fileChan <- f
		}(e.Name())
	}

	go func() {
		wg.Wait()
		close(errCh)
		close(fileChan)
	}()

	wg2 := sync.WaitGroup{}
	wg2.Add(2)

	go func() {
		defer wg2.Done()
		for e := range errCh {
			err = multierror.Append(err, e).ErrorOrNil()
		}
	}()

	go func() {
		defer wg2.Done()
		for f := range fileChan {
			files = append(files, f)
		}
	}()

	wg2.Wait()

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, err
}

func describeFile(file string) (job.File, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return job.File{}, err
	}

	ext := filepath.Ext(file)
	contentType := mime.TypeByExtension(ext)
	if ct, ok := contentTypes[ext]; ok {
		contentType = ct
	}

	digest := blake2b.Sum256(data)
	f := job.File{
		Name:        path.Base(file),
		Size:        len(data),
		ContentType: contentType,
		Digest:      hex.EncodeToString(digest[:]),
	}

	if ext == ".png" {
		if sz, _, err := imgsz.DecodeSize(bytes.NewReader(data)); err == nil {
			f.Width, f.Height = sz.Width, sz.Height
		}
	}

	return f, nil
}
