package video

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"veoqueue/internal/infra"
)

const (
	MessageSubmitting = "Sending request to Veo..."
	MessageGenerating = "Generating video... This may take a few minutes."
	MessageFetching   = "Fetching video..."

	defaultPollInterval = 5 * time.Second
)

// AssetWriter persists fetched video bytes and returns the canonical key.
type AssetWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Client       OperationClient
	PollInterval time.Duration
	// Store is optional; when set finished videos are downloaded and served
	// from the store's public URL.
	Store  AssetWriter
	Logger *infra.Logger
	// Sleep waits between polls. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Runner drives an OperationClient from submission to result: it submits the
// request, polls at a fixed interval until the operation is done and resolves
// the output reference.
type Runner struct {
	client       OperationClient
	pollInterval time.Duration
	store        AssetWriter
	logger       *infra.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewRunner constructs a Runner with defaults for unset options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("video: operation client is required")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Runner{
		client:       opts.Client,
		pollInterval: interval,
		store:        opts.Store,
		logger:       logger,
		sleep:        sleep,
	}, nil
}

// Generate submits req and blocks until the remote operation finishes.
func (r *Runner) Generate(ctx context.Context, req Request, progress ProgressFunc) (*Asset, error) {
	report := func(msg string) {
		if progress != nil {
			progress(msg)
		}
	}

	report(MessageSubmitting)
	op, err := r.client.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("job_id", req.RequestID).Str("operation", op.Name).Msg("video: operation submitted")

	started := time.Now()
	report(MessageGenerating)
	for polls := 0; !op.Done; polls++ {
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return nil, err
		}
		op, err = r.client.Poll(ctx, op)
		if err != nil {
			return nil, err
		}
		if !op.Done && polls > 0 {
			report(fmt.Sprintf("Still generating... (%ds elapsed)", int(time.Since(started).Seconds())))
		}
	}

	report(MessageFetching)
	asset, err := r.client.Result(ctx, op)
	if err != nil {
		return nil, err
	}
	r.persist(ctx, req.RequestID, asset)
	return asset, nil
}

// persist copies the video into local storage when configured. Failures keep
// the remote reference so the job still completes.
func (r *Runner) persist(ctx context.Context, jobID string, asset *Asset) {
	if r.store == nil || asset == nil || asset.URI == "" {
		return
	}
	fetcher, ok := r.client.(Fetcher)
	if !ok {
		return
	}
	data, mime, err := fetcher.FetchVideo(ctx, asset.URI)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("video: fetch generated video failed")
		return
	}
	format := firstNonEmpty(asset.Format, mime, "video/mp4")
	key, err := r.store.Write(ctx, storageKey(jobID, format), data)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("video: persist generated video failed")
		return
	}
	asset.StorageKey = key
	asset.URL = r.store.URL(key)
	asset.Format = format
	asset.Size = int64(len(data))
}

func storageKey(jobID, mime string) string {
	ext := ".mp4"
	if strings.Contains(mime, "webm") {
		ext = ".webm"
	}
	if jobID == "" {
		jobID = "unnamed"
	}
	return path.Join("videos", jobID, "video"+ext)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Generator = (*Runner)(nil)
