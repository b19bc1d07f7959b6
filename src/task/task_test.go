package task_test

import (
	"context"
	"image/color"
	"os"
	"path"
	"testing"
	"time"

	"github.com/seventv/WebPProcessor/src/configure"
	"github.com/seventv/WebPProcessor/src/containers"
	"github.com/seventv/WebPProcessor/src/global"
	"github.com/seventv/WebPProcessor/src/job"
	"github.com/seventv/WebPProcessor/src/riff"
	"github.com/seventv/WebPProcessor/src/riff/rifftest"
	"github.com/seventv/WebPProcessor/src/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func animation() []byte {
	red := color.NRGBA{R: 0xff, A: 0xff}
	return rifftest.File(
		rifftest.VP8X(riff.AnimationFlag, 4, 4),
		rifftest.ANIM(0, 0),
		rifftest.ANMF(rifftest.Frame{Width: 4, Height: 4, Duration: 30}, rifftest.SolidFrame(4, 4, red)),
		rifftest.ANMF(rifftest.Frame{Width: 2, Height: 2, Duration: 30}, rifftest.SolidFrame(2, 2, red)),
	)
}

func localJob(t *testing.T, input []byte, out string) job.Job {
	in := path.Join(t.TempDir(), "input.webp")
	require.NoError(t, os.WriteFile(in, input, 0600))

	return job.Job{
		ID:                    "test",
		Sizes:                 task.DefaultSizes(),
		Settings:              job.AllSettings,
		RawProvider:           job.LocalProvider,
		RawProviderDetails:    []byte(`{"path":"` + in + `"}`),
		ResultConsumer:        job.LocalConsumer,
		ResultConsumerDetails: []byte(`{"path_folder":"` + out + `"}`),
	}
}

func run(t *testing.T, j job.Job) (*task.Task, []task.TaskEventType) {
	cfg := &configure.Config{WorkingDir: t.TempDir()}
	ctx := global.New(context.Background(), cfg)

	tsk := task.New(ctx, j)
	tsk.Start(ctx)

	var events []task.TaskEventType
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-tsk.Events():
			if !ok {
				return tsk, events
			}
			events = append(events, ev.Type)
		case <-timeout:
			t.Fatal("task did not finish")
		}
	}
}

func TestTaskLocal(t *testing.T) {
	out := path.Join(t.TempDir(), "out")
	tsk, events := run(t, localJob(t, animation(), out))

	require.NoError(t, tsk.Failed())
	assert.True(t, tsk.Completed())
	assert.Equal(t, 4, tsk.Image().Width)
	assert.Len(t, tsk.Image().Frames, 2)
	assert.Equal(t, []task.TaskEventType{
		task.Started, task.Downloaded,
		task.StageOne, task.HeaderParsed, task.StageOneComplete,
		task.StageTwo, task.StageTwoComplete,
		task.StageThree, task.StageThreeComplete,
		task.Completed, task.Cleaned,
	}, events)

	names := []string{}
	for _, f := range tsk.Files() {
		names = append(names, f.Name)
		_, err := os.Stat(path.Join(out, f.Name))
		assert.NoError(t, err, f.Name)
	}
	assert.Equal(t, []string{
		"1x.png", "2x.png", "4x.png",
		"frame_0000.png", "frame_0001.png", containers.ManifestName,
	}, names)
}

func TestTaskNotWebP(t *testing.T) {
	tsk, events := run(t, localJob(t, []byte("FLV\x01\x05\x00\x00\x00\x09"), t.TempDir()))

	assert.ErrorIs(t, tsk.Failed(), containers.ErrNotWebP)
	assert.Equal(t, []task.TaskEventType{task.Started, task.Downloaded, task.Failed, task.Cleaned}, events)
}

func TestTaskUnknownProvider(t *testing.T) {
	j := localJob(t, animation(), t.TempDir())
	j.RawProvider = "ftp"

	tsk, _ := run(t, j)
	assert.ErrorIs(t, tsk.Failed(), task.ErrUnknownJobProvider)
}

func TestInspect(t *testing.T) {
	in := path.Join(t.TempDir(), "input.webp")
	require.NoError(t, os.WriteFile(in, animation(), 0600))

	cfg := &configure.Config{WorkingDir: t.TempDir()}
	img, err := task.Inspect(context.Background(), cfg, in)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Width)
	assert.Len(t, img.Frames, 2)
	assert.Equal(t, 60, img.Duration)
	assert.Equal(t, "done", img.Probe.State)
	assert.Empty(t, img.Dir)

	entries, err := os.ReadDir(cfg.WorkingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
