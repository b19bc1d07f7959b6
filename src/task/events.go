package task

import "time"

type TaskEvent struct {
	JobID     string
	Type      TaskEventType
	Timestamp time.Time
}

type TaskEventType string

const (
	Started    TaskEventType = "started"
	Downloaded TaskEventType = "downloaded"
	Failed     TaskEventType = "failed"
	Completed  TaskEventType = "completed"
	Stopped    TaskEventType = "stopped"
	Cleaned    TaskEventType = "cleaned"

	// HeaderParsed is sent as soon as the streaming probe gets past the
	// file header, before the frames are read.
	HeaderParsed TaskEventType = "header-parsed"

	StageOne           TaskEventType = "stage-one"
	StageOneComplete   TaskEventType = "stage-one-complete"
	StageTwo           TaskEventType = "stage-two"
	StageTwoComplete   TaskEventType = "stage-two-complete"
	StageThree         TaskEventType = "stage-three"
	StageThreeComplete TaskEventType = "stage-three-complete"
)
