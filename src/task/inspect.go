package task

import (
	"context"
	"fmt"
	"os"

	"github.com/seventv/WebPProcessor/src/configure"
	"github.com/seventv/WebPProcessor/src/containers"
	"github.com/seventv/WebPProcessor/src/image"
	"github.com/sirupsen/logrus"
)

// Inspect runs the probe and a full render of a local file without writing
// any outputs, and returns its manifest.
func Inspect(ctx context.Context, config *configure.Config, file string) (image.Image, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return image.Image{}, err
	}

	info, err := containers.Probe(data)
	if err != nil {
		return image.Image{}, err
	}
	if info.Type != image.WEBP {
		return image.Image{}, fmt.Errorf("%w: got %s", containers.ErrNotWebP, info.Type)
	}

	probe, err := containers.ProcessStage1(ctx, config, data, func(p image.Probe) {
		logrus.WithField("bytes", p.HeaderBytes).Debug("header parsed")
	})
	if err != nil {
		return image.Image{}, err
	}

	dir, err := os.MkdirTemp(config.WorkingDir, "inspect-")
	if err != nil {
		return image.Image{}, err
	}
	defer os.RemoveAll(dir)

	img, err := containers.ProcessStage2(ctx, config, dir, data, nil, 0)
	if err != nil {
		return img, err
	}
	img.Dir = ""
	img.Probe = probe

	return img, nil
}
