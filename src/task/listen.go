package task

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/seventv/WebPProcessor/src/global"
	"github.com/seventv/WebPProcessor/src/job"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var ErrInvalidJob = fmt.Errorf("invalid job")

// Listen consumes jobs from the job queue, one task per core at a time.
// Events go to the update queue and the final RmqResult to the result
// queue.
func Listen(ctx global.Context) {
	msgCh, err := ctx.Instances().Rmq.Subscribe(ctx.Config().Rmq.JobQueueName)
	if err != nil {
		logrus.Fatal("failed to listen to jobs: ", err)
	}

	maxProcs := runtime.GOMAXPROCS(0)
	workers := make(chan *taskWorker, maxProcs)
	for i := 0; i < maxProcs; i++ {
		workers <- &taskWorker{
			cb: workers,
		}
	}

	for msg := range msgCh {
		worker := <-workers
		go worker.process(ctx, msg)
	}
}

// DefaultSizes are the thumbnail boxes used when a job names none.
func DefaultSizes() map[string]job.ImageSize {
	return map[string]job.ImageSize{
		"4x": {Width: 512, Height: 512},
		"2x": {Width: 256, Height: 256},
		"1x": {Width: 128, Height: 128},
	}
}

// prepareJob fills in the defaults of a decoded job message and rejects
// jobs that cannot produce any output.
func prepareJob(j *job.Job) error {
	if j.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	}

	switch j.RawProvider {
	case job.AwsProvider, job.LocalProvider:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobProvider, j.RawProvider)
	}
	switch j.ResultConsumer {
	case job.AwsConsumer, job.LocalConsumer:
	default:
		return fmt.Errorf("%w: unknown result consumer %q", ErrInvalidJob, j.ResultConsumer)
	}

	if j.Settings == 0 {
		j.Settings = job.AllSettings
	}
	if j.Settings&^job.AllSettings != 0 {
		return fmt.Errorf("%w: unknown settings %#x", ErrInvalidJob, j.Settings&^job.AllSettings)
	}

	if len(j.Sizes) == 0 {
		j.Sizes = DefaultSizes()
	}
	names := make([]string, 0, len(j.Sizes))
	for name := range j.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// one side may be zero to keep the aspect ratio
		s := j.Sizes[name]
		if s.Width < 0 || s.Height < 0 || (s.Width == 0 && s.Height == 0) {
			return fmt.Errorf("%w: size %s is %dx%d", ErrInvalidJob, name, s.Width, s.Height)
		}
	}
	return nil
}

type taskWorker struct {
	cb chan *taskWorker
}

// RmqResult is published once per job. The image fields summarize the
// manifest and are only set on success.
type RmqResult struct {
	JobID   string     `json:"job_id"`
	Success bool       `json:"success"`
	Files   []job.File `json:"files"`
	Error   string     `json:"error"`

	Width      int  `json:"width,omitempty"`
	Height     int  `json:"height,omitempty"`
	Animated   bool `json:"animated,omitempty"`
	FrameCount int  `json:"frame_count,omitempty"`
	Duration   int  `json:"duration,omitempty"`
}

func newResult(jobID string, t *Task, err error) RmqResult {
	if err != nil {
		return RmqResult{JobID: jobID, Error: err.Error()}
	}

	img := t.Image()
	return RmqResult{
		JobID:      jobID,
		Success:    true,
		Files:      t.Files(),
		Width:      img.Width,
		Height:     img.Height,
		Animated:   img.Animated,
		FrameCount: len(img.Frames),
		Duration:   img.Duration,
	}
}

func (w *taskWorker) publishResult(ctx global.Context, res RmqResult) {
	resp, _ := json.Marshal(res)
	if err := ctx.Instances().Rmq.Publish(ctx.Config().Rmq.ResultQueueName, "application/json", amqp.Persistent, resp); err != nil {
		logrus.WithError(err).WithField("job_id", res.JobID).Error("failed to publish result")
	}
}

func (w *taskWorker) process(ctx global.Context, msg amqp.Delivery) {
	ctx.AddTask(1)
	defer func() {
		ctx.DoneTask()
		w.cb <- w
	}()

	j := job.Job{}

	err := json.Unmarshal(msg.Body, &j)
	if err != nil {
		logrus.Warn("bad job message: ", err)
		if err := msg.Reject(false); err != nil {
			logrus.Warn("failed to reject: ", err)
		}
		return
	}

	if err := prepareJob(&j); err != nil {
		logrus.WithError(err).WithField("job_id", j.ID).Warn("rejecting job")
		if err := msg.Reject(false); err != nil {
			logrus.Warn("failed to reject: ", err)
		}
		w.publishResult(ctx, newResult(j.ID, nil, err))
		return
	}

	lCtx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(ctx.Config().MaxTaskDuration))
	defer cancel()

	task := New(lCtx, j)

	task.Start(ctx)

	log := logrus.WithField("task_id", task.ID().String()).WithField("job_id", j.ID)
	log.Info("starting new task")

	for event := range task.Events() {
		event.JobID = j.ID
		event, _ := json.Marshal(event)
		if err := ctx.Instances().Rmq.Publish(ctx.Config().Rmq.UpdateQueueName, "application/json", amqp.Transient, event); err != nil {
			log.Warn("failed to send update: ", err)
		}
	}
	<-task.Done()
	if err := task.Failed(); err != nil {
		if err := msg.Reject(false); err != nil {
			log.Warn("failed to reject: ", err)
		}
		log.WithError(err).Error("task failed")
	} else {
		if err := msg.Ack(false); err != nil {
			log.Warn("failed to ack: ", err)
		}
	}

	w.publishResult(ctx, newResult(j.ID, task, task.Failed()))

	log.Info("finished task")
}
