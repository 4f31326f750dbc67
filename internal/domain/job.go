package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusIdle:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// InputType selects between text-to-video and image-to-video generation.
type InputType string

const (
	InputTypeText  InputType = "text"
	InputTypeImage InputType = "image"
)

const (
	DefaultModel       = "veo-3.1-fast-generate-preview"
	DefaultAspectRatio = "16:9"
	DefaultResolution  = "720p"
)

var (
	supportedAspectRatios = map[string]struct{}{"16:9": {}, "9:16": {}}
	supportedResolutions  = map[string]struct{}{"720p": {}, "1080p": {}}
)

// ImageSource is the binary input of an image-to-video job.
type ImageSource struct {
	Data     []byte
	MIMEType string
}

func (s *ImageSource) clone() *ImageSource {
	if s == nil {
		return nil
	}
	return &ImageSource{Data: append([]byte(nil), s.Data...), MIMEType: s.MIMEType}
}

// JobParams holds the generation parameters fixed when a job is created.
type JobParams struct {
	Prompt      string
	InputType   InputType
	Model       string
	AspectRatio string
	Resolution  string
	Image       *ImageSource
	Label       string
}

// Normalize trims the parameters and applies defaults for empty fields.
func (p JobParams) Normalize() JobParams {
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.Label = strings.TrimSpace(p.Label)
	p.Model = strings.TrimSpace(p.Model)
	if p.Model == "" {
		p.Model = DefaultModel
	}
	p.AspectRatio = strings.TrimSpace(p.AspectRatio)
	if p.AspectRatio == "" {
		p.AspectRatio = DefaultAspectRatio
	}
	p.Resolution = strings.ToLower(strings.TrimSpace(p.Resolution))
	if p.Resolution == "" {
		p.Resolution = DefaultResolution
	}
	if p.InputType == "" {
		p.InputType = InputTypeText
		if p.Image != nil {
			p.InputType = InputTypeImage
		}
	}
	return p
}

// Validate checks the parameter combination accepted by the generation API.
func (p JobParams) Validate() error {
	switch p.InputType {
	case InputTypeText:
		if p.Prompt == "" {
			return fmt.Errorf("%w: prompt is required for text input", ErrInvalidJob)
		}
		if p.Image != nil {
			return fmt.Errorf("%w: image is only allowed for image input", ErrInvalidJob)
		}
	case InputTypeImage:
		if p.Image == nil || len(p.Image.Data) == 0 {
			return fmt.Errorf("%w: image is required for image input", ErrInvalidJob)
		}
		if !strings.HasPrefix(p.Image.MIMEType, "image/") {
			return fmt.Errorf("%w: unsupported image type %q", ErrInvalidJob, p.Image.MIMEType)
		}
	default:
		return fmt.Errorf("%w: unknown input type %q", ErrInvalidJob, p.InputType)
	}
	if _, ok := supportedAspectRatios[p.AspectRatio]; !ok {
		return fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidJob, p.AspectRatio)
	}
	if _, ok := supportedResolutions[p.Resolution]; !ok {
		return fmt.Errorf("%w: unsupported resolution %q", ErrInvalidJob, p.Resolution)
	}
	return nil
}

// Job is one user-requested generation task.
type Job struct {
	ID        string
	CreatedAt time.Time
	Status    JobStatus

	Prompt      string
	InputType   InputType
	Model       string
	AspectRatio string
	Resolution  string
	Image       *ImageSource
	Label       string

	VideoResult     string
	Error           string
	StartTime       *time.Time
	ProgressMessage string
}

// NewJob builds an idle job with a fresh identifier. Params are normalized and
// validated first.
func NewJob(params JobParams, now time.Time) (Job, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return Job{}, err
	}
	return Job{
		ID:          NewJobID(now),
		CreatedAt:   now,
		Status:      JobStatusIdle,
		Prompt:      params.Prompt,
		InputType:   params.InputType,
		Model:       params.Model,
		AspectRatio: params.AspectRatio,
		Resolution:  params.Resolution,
		Image:       params.Image.clone(),
		Label:       params.Label,
	}, nil
}

// Params returns the immutable generation parameters of the job.
func (j Job) Params() JobParams {
	return JobParams{
		Prompt:      j.Prompt,
		InputType:   j.InputType,
		Model:       j.Model,
		AspectRatio: j.AspectRatio,
		Resolution:  j.Resolution,
		Image:       j.Image.clone(),
		Label:       j.Label,
	}
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j Job) Clone() Job {
	out := j
	out.Image = j.Image.clone()
	if j.StartTime != nil {
		t := *j.StartTime
		out.StartTime = &t
	}
	return out
}

// NewJobID returns a lexically sortable unique identifier.
func NewJobID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// JobPatch carries a partial update. Nil fields are left untouched.
type JobPatch struct {
	Status          *JobStatus
	VideoResult     *string
	Error           *string
	StartTime       *time.Time
	ProgressMessage *string
}

// StatusPatch is a convenience constructor for a status change.
func StatusPatch(status JobStatus) JobPatch {
	return JobPatch{Status: &status}
}

// WithProgress sets the progress message on the patch.
func (p JobPatch) WithProgress(msg string) JobPatch {
	p.ProgressMessage = &msg
	return p
}

// WithResult sets the video result on the patch.
func (p JobPatch) WithResult(result string) JobPatch {
	p.VideoResult = &result
	return p
}

// WithError sets the error message on the patch.
func (p JobPatch) WithError(msg string) JobPatch {
	p.Error = &msg
	return p
}

// WithStartTime sets the start time on the patch.
func (p JobPatch) WithStartTime(t time.Time) JobPatch {
	p.StartTime = &t
	return p
}

// JobEventType names a job lifecycle notification.
type JobEventType string

const (
	JobEventAdded     JobEventType = "job.added"
	JobEventRemoved   JobEventType = "job.removed"
	JobEventStarted   JobEventType = "job.started"
	JobEventProgress  JobEventType = "job.progress"
	JobEventCompleted JobEventType = "job.completed"
	JobEventFailed    JobEventType = "job.failed"
)

// JobEvent is emitted after a store mutation has been applied.
type JobEvent struct {
	Type       JobEventType `json:"type"`
	JobID      string       `json:"job_id"`
	Status     JobStatus    `json:"status"`
	Progress   string       `json:"progress,omitempty"`
	Result     string       `json:"video_result,omitempty"`
	Error      string       `json:"error,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
