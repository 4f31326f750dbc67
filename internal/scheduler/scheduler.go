package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"veoqueue/internal/domain"
	"veoqueue/internal/infra"
	"veoqueue/internal/jobstore"
	"veoqueue/internal/providers/video"
)

const (
	DefaultMaxConcurrent = 4
	DefaultTickInterval  = time.Second

	MessageInitializing = "Initializing..."
	MessageCompleted    = "Completed"
	MessageFailed       = "Failed"

	// AuthFailureMessage replaces the raw provider error on credential failures.
	AuthFailureMessage = "API key is invalid or expired. Please select a valid API key."
)

// ErrNotReady is returned by Start while no valid credential is selected.
var ErrNotReady = errors.New("scheduler: credential not ready")

// Gate is the readiness flag consulted before every launch.
type Gate interface {
	IsReady() bool
	Invalidate()
}

// Options configures a Scheduler.
type Options struct {
	Store         *jobstore.Store
	Generator     video.Generator
	Gate          Gate
	Logger        *infra.Logger
	MaxConcurrent int
	TickInterval  time.Duration
	Clock         func() time.Time
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running       bool            `json:"running"`
	Ready         bool            `json:"ready"`
	MaxConcurrent int             `json:"max_concurrent"`
	TickInterval  string          `json:"tick_interval"`
	Jobs          jobstore.Counts `json:"jobs"`
}

// Scheduler launches idle jobs in insertion order while keeping at most
// MaxConcurrent jobs processing. Each launched job runs on its own goroutine
// until the generator returns.
type Scheduler struct {
	store         *jobstore.Store
	generator     video.Generator
	gate          Gate
	logger        *infra.Logger
	maxConcurrent int
	tickInterval  time.Duration
	now           func() time.Time

	mu      sync.Mutex
	running bool

	jobCtx    context.Context
	cancelJob context.CancelFunc
	inflight  sync.WaitGroup
	wake      chan struct{}
}

// New validates opts and returns a paused Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, errors.New("scheduler: store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("scheduler: generator is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("scheduler: gate is required")
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:         opts.Store,
		generator:     opts.Generator,
		gate:          opts.Gate,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		tickInterval:  tick,
		now:           now,
		jobCtx:        jobCtx,
		cancelJob:     cancel,
		wake:          make(chan struct{}, 1),
	}, nil
}

// Start enters running mode. It fails while the gate is not ready.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if !s.gate.IsReady() {
		s.mu.Unlock()
		return ErrNotReady
	}
	already := s.running
	s.running = true
	s.mu.Unlock()
	if !already {
		s.logger.Info().Int("max_concurrent", s.maxConcurrent).Msg("scheduler: started")
		s.signal()
	}
	return nil
}

// Pause leaves running mode. Jobs already processing are left to finish.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	was := s.running
	s.running = false
	s.mu.Unlock()
	if was {
		s.logger.Info().Msg("scheduler: paused")
	}
}

// Running reports whether the scheduler is in running mode.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// MaxConcurrent returns the configured concurrency cap.
func (s *Scheduler) MaxConcurrent() int {
	return s.maxConcurrent
}

// Status reports the scheduler mode together with job counts.
func (s *Scheduler) Status() Status {
	return Status{
		Running:       s.Running(),
		Ready:         s.gate.IsReady(),
		MaxConcurrent: s.maxConcurrent,
		TickInterval:  s.tickInterval.String(),
		Jobs:          s.store.Counts(),
	}
}

// Tick makes one scheduling decision and launches at most one job. It returns
// the launched job, if any. The mode and gate checks and the claim happen
// under s.mu, so a concurrent suspend is ordered entirely before or after it.
func (s *Scheduler) Tick(ctx context.Context) (domain.Job, bool) {
	if ctx.Err() != nil {
		return domain.Job{}, false
	}
	s.mu.Lock()
	if !s.running || !s.gate.IsReady() {
		s.mu.Unlock()
		return domain.Job{}, false
	}
	job, ok := s.store.ClaimNext(s.maxConcurrent, s.now(), MessageInitializing)
	s.mu.Unlock()
	if !ok {
		return domain.Job{}, false
	}
	s.launch(job)
	return job, true
}

// Run ticks until ctx is cancelled. A finished job triggers an immediate
// extra tick so a freed slot does not wait for the next period.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
		s.Tick(ctx)
	}
}

// Wait blocks until every launched job has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Shutdown pauses the scheduler and waits for in-flight jobs. When ctx expires
// first the jobs are cancelled and Shutdown still waits for them to record
// their outcome.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Pause()
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancelJob()
		return nil
	case <-ctx.Done():
		s.cancelJob()
		<-done
		return ctx.Err()
	}
}

func (s *Scheduler) launch(job domain.Job) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.signal()
		s.execute(job)
	}()
}

func (s *Scheduler) execute(job domain.Job) {
	log := s.logger.With().Str("job_id", job.ID).Logger()
	log.Info().Str("model", job.Model).Str("input_type", string(job.InputType)).Msg("scheduler: job started")

	req := video.Request{
		RequestID:   job.ID,
		Prompt:      job.Prompt,
		Model:       job.Model,
		AspectRatio: job.AspectRatio,
		Resolution:  job.Resolution,
	}
	if job.Image != nil {
		req.Image = &video.Image{Data: job.Image.Data, MIMEType: job.Image.MIMEType}
	}

	progress := func(msg string) {
		s.store.Update(job.ID, domain.JobPatch{}.WithProgress(msg))
	}

	asset, err := s.generator.Generate(s.jobCtx, req, progress)
	if err == nil && asset.Reference() == "" {
		err = errors.New("no video was generated")
	}
	if err != nil {
		s.fail(&log, job.ID, err)
		return
	}

	patch := domain.StatusPatch(domain.JobStatusCompleted).
		WithResult(asset.Reference()).
		WithProgress(MessageCompleted)
	if !s.store.Update(job.ID, patch) {
		log.Warn().Msg("scheduler: completed job was no longer tracked")
		return
	}
	log.Info().Str("video", asset.Reference()).Msg("scheduler: job completed")
}

func (s *Scheduler) fail(log *zerolog.Logger, id string, err error) {
	msg := err.Error()
	if errors.Is(err, domain.ErrAuth) {
		s.suspend()
		msg = AuthFailureMessage
		log.Warn().Err(err).Msg("scheduler: credential rejected; scheduler paused")
	} else {
		log.Error().Err(err).Msg("scheduler: job failed")
	}
	patch := domain.StatusPatch(domain.JobStatusFailed).WithError(msg).WithProgress(MessageFailed)
	if !s.store.Update(id, patch) {
		log.Warn().Msg("scheduler: failed job was no longer tracked")
	}
}

// suspend invalidates the credential and leaves running mode as one step
// relative to Tick.
func (s *Scheduler) suspend() {
	s.mu.Lock()
	s.gate.Invalidate()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
