package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewJobAppliesDefaults(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	job, err := NewJob(JobParams{Prompt: "  a red kite  "}, now)
	if err != nil {
		t.Fatalf("NewJob returned error: %v", err)
	}
	if job.ID == "" || job.Status != JobStatusIdle || !job.CreatedAt.Equal(now) {
		t.Fatalf("unexpected job header: %+v", job)
	}
	if job.Prompt != "a red kite" {
		t.Fatalf("Prompt = %q, want %q", job.Prompt, "a red kite")
	}
	if job.InputType != InputTypeText || job.Model != DefaultModel || job.AspectRatio != DefaultAspectRatio || job.Resolution != DefaultResolution {
		t.Fatalf("defaults not applied: %+v", job)
	}
}

func TestNewJobInfersImageInput(t *testing.T) {
	img := &ImageSource{Data: []byte{1}, MIMEType: "image/png"}
	job, err := NewJob(JobParams{Image: img, Resolution: "1080P"}, time.Now())
	if err != nil {
		t.Fatalf("NewJob returned error: %v", err)
	}
	if job.InputType != InputTypeImage || job.Resolution != "1080p" {
		t.Fatalf("unexpected job: %+v", job)
	}
	img.Data[0] = 9
	if job.Image.Data[0] != 1 {
		t.Fatalf("job shares image bytes with the caller")
	}
}

func TestValidateRejects(t *testing.T) {
	png := &ImageSource{Data: []byte{1}, MIMEType: "image/png"}
	cases := []struct {
		name   string
		params JobParams
	}{
		{name: "empty text prompt", params: JobParams{InputType: InputTypeText}},
		{name: "image without bytes", params: JobParams{InputType: InputTypeImage}},
		{name: "text with image", params: JobParams{InputType: InputTypeText, Prompt: "p", Image: png}},
		{name: "non image mime", params: JobParams{Image: &ImageSource{Data: []byte{1}, MIMEType: "video/mp4"}}},
		{name: "aspect ratio", params: JobParams{Prompt: "p", AspectRatio: "4:3"}},
		{name: "resolution", params: JobParams{Prompt: "p", Resolution: "4k"}},
		{name: "input type", params: JobParams{Prompt: "p", InputType: "audio"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Normalize().Validate()
			if !errors.Is(err, ErrInvalidJob) {
				t.Fatalf("Validate err = %v, want ErrInvalidJob", err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusIdle, JobStatusProcessing, true},
		{JobStatusIdle, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusIdle, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if !JobStatusFailed.Terminal() || JobStatusProcessing.Terminal() {
		t.Fatalf("Terminal mismatch")
	}
}

func TestNewJobIDIsSortable(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewJobID(t0)
	b := NewJobID(t0.Add(time.Millisecond))
	if len(a) != 26 || a >= b {
		t.Fatalf("ids not sortable: %q %q", a, b)
	}
}
