package task

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"sync"
	"time"

	Aws "github.com/aws/aws-sdk-go/aws"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/WebPProcessor/src/aws"
	"github.com/seventv/WebPProcessor/src/containers"
	"github.com/seventv/WebPProcessor/src/global"
	"github.com/seventv/WebPProcessor/src/image"
	"github.com/seventv/WebPProcessor/src/job"
	"github.com/seventv/WebPProcessor/src/utils"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrUnknownJobProvider = fmt.Errorf("unknown job provider")

type Task struct {
	id uuid.UUID

	job job.Job

	mtx       sync.Mutex
	started   bool
	stopped   bool
	completed bool
	failed    error

	dir   string
	files []job.File
	img   image.Image

	events chan TaskEvent

	ctx    context.Context
	cancel context.CancelFunc
}

func New(ctx context.Context, job job.Job) *Task {
	ctx, cancel := context.WithCancel(ctx)
	id, _ := uuid.NewRandom()
	return &Task{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		job:    job,
		events: make(chan TaskEvent, 20),
	}
}

func (t *Task) ID() uuid.UUID {
	return t.id
}

func (t *Task) Start(ctx global.Context) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.started || t.stopped || t.completed {
		return
	}

	t.started = true

	go t.start(ctx)
}

func (t *Task) emit(typ TaskEventType) {
	t.events <- TaskEvent{
		Type:      typ,
		Timestamp: time.Now(),
	}
}

func (t *Task) download(ctx global.Context) ([]byte, error) {
	switch t.job.RawProvider {
	case job.AwsProvider:
		providerDetails := job.RawProviderDetailsAws{}
		if err := json.Unmarshal(t.job.RawProviderDetails, &providerDetails); err != nil {
			return nil, err
		}

		buf := Aws.NewWriteAtBuffer([]byte{})
		if err := ctx.Instances().AwsS3.DownloadFile(t.ctx, providerDetails.Bucket, providerDetails.Key, buf); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	case job.LocalProvider:
		providerDetails := job.RawProviderDetailsLocal{}
		if err := json.Unmarshal(t.job.RawProviderDetails, &providerDetails); err != nil {
			return nil, err
		}

		return os.ReadFile(providerDetails.Path)
	}

	return nil, ErrUnknownJobProvider
}

func (t *Task) start(ctx global.Context) {
	defer close(t.events)
	defer func() {
		if err := t.cleanup(); err != nil {
			logrus.Error("failed to cleanup: ", err)
		}
	}()

	start := time.Now()
	t.emit(Started)

	var (
		err   error
		data  []byte
		info  containers.Info
		probe image.Probe
		img   image.Image
	)

	if data, err = t.download(ctx); err != nil {
		goto completed
	}

	t.emit(Downloaded)

	if t.ctx.Err() != nil {
		err = t.ctx.Err()
		goto completed
	}

	if info, err = containers.Probe(data); err != nil {
		goto completed
	}
	if info.Type != image.WEBP {
		err = fmt.Errorf("%w: got %s", containers.ErrNotWebP, info.Type)
		goto completed
	}

	t.dir = path.Join(ctx.Config().WorkingDir, t.id.String())
	if err = os.MkdirAll(t.dir, 0700); err != nil {
		goto completed
	}

	t.emit(StageOne)

	if probe, err = containers.ProcessStage1(t.ctx, ctx.Config(), data, func(image.Probe) {
		t.emit(HeaderParsed)
	}); err != nil {
		goto completed
	}

	t.emit(StageOneComplete)
	t.emit(StageTwo)

	if img, err = containers.ProcessStage2(t.ctx, ctx.Config(), t.dir, data, t.job.Sizes, t.job.Settings); err != nil {
		goto completed
	}
	img.Probe = probe
	t.img = img

	t.emit(StageTwoComplete)
	t.emit(StageThree)

	if t.files, err = containers.ProcessStage3(t.ctx, t.dir, img, t.job.Settings, start); err != nil {
		goto completed
	}

	t.emit(StageThreeComplete)

	err = t.publish(ctx)

completed:
	t.completed = true
	t.failed = err
	t.cancel()
	if err != nil {
		logrus.WithError(err).WithField("job_id", t.job.ID).Debugf("task failed\n%s", spew.Sdump(info, probe))
		t.emit(Failed)
	} else {
		t.emit(Completed)
	}
}

// publish hands every described file to the job's result consumer.
func (t *Task) publish(ctx global.Context) error {
	switch t.job.ResultConsumer {
	case job.AwsConsumer:
		providerDetails := job.ResultConsumerDetailsAws{}
		if err := json.Unmarshal(t.job.ResultConsumerDetails, &providerDetails); err != nil {
			return err
		}

		errCh := make(chan error)
		wg := sync.WaitGroup{}
		wg.Add(len(t.files))
		for _, v := range t.files {
			go func(v job.File) {
				defer wg.Done()
				f, err := os.Open(path.Join(t.dir, v.Name))
				if err != nil {
					errCh <- err
					return
				}
				defer f.Close()

				contentType := v.ContentType
				if contentType == "" {
					contentType = mime.TypeByExtension(path.Ext(v.Name))
				}

				errCh <- ctx.Instances().AwsS3.UploadFile(
					t.ctx,
					providerDetails.Bucket,
					path.Join(providerDetails.KeyFolder, v.Name),
					f,
					utils.StringPointer(contentType),
					aws.AclPublicRead,
					aws.DefaultCacheControl,
				)
			}(v)
		}
		go func() {
			wg.Wait()
			close(errCh)
		}()

		var err error
		for e := range errCh {
			err = multierror.Append(err, e).ErrorOrNil()
		}
		return err
	case job.LocalConsumer:
		providerDetails := job.ResultConsumerDetailsLocal{}
		if err := json.Unmarshal(t.job.ResultConsumerDetails, &providerDetails); err != nil {
			return err
		}

		if err := os.MkdirAll(providerDetails.PathFolder, 0700); err != nil {
			return err
		}

		for _, v := range t.files {
			f, err := os.ReadFile(path.Join(t.dir, v.Name))
			if err != nil {
				return err
			}

			if err = os.WriteFile(path.Join(providerDetails.PathFolder, v.Name), f, 0600); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *Task) Stop() {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.events <- TaskEvent{
		Type:      Stopped,
		Timestamp: time.Now(),
	}

	t.stopped = true
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.ctx.Done()
}

func (t *Task) Events() <-chan TaskEvent {
	return t.events
}

func (t *Task) Completed() bool {
	return t.completed
}

func (t *Task) Failed() error {
	return t.failed
}

func (t *Task) Started() bool {
	return t.started
}

func (t *Task) Stopped() bool {
	return t.stopped
}

// Files are the outputs of a completed task, sorted by name.
func (t *Task) Files() []job.File {
	return t.files
}

// Image is the manifest of the processed file, set once stage two is done.
func (t *Task) Image() image.Image {
	return t.img
}

func (t *Task) cleanup() error {
	if !t.started {
		return nil
	}

	t.emit(Cleaned)

	t.cancel()
	if t.dir == "" {
		return nil
	}
	return os.RemoveAll(t.dir)
}

func (t *Task) Job() job.Job {
	return t.job
}
