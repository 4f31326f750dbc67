package jobstore

import (
	"fmt"
	"sync"
	"time"

	"veoqueue/internal/domain"
)

// Observer receives job events after a mutation has been applied. It is invoked
// outside the store lock, in mutation order per goroutine.
type Observer func(domain.JobEvent)

// Counts summarizes jobs per status.
type Counts struct {
	Idle       int `json:"idle"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Store is the in-memory job collection. Every mutation is applied under a
// single mutex so concurrent progress updates from several running jobs never
// overwrite each other.
type Store struct {
	mu       sync.Mutex
	jobs     []*domain.Job
	index    map[string]*domain.Job
	observer Observer
	now      func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithObserver registers the event observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithClock overrides the time source used for created timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index: make(map[string]*domain.Job),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends an idle job.
func (s *Store) Add(job domain.Job) error {
	if job.ID == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidJob)
	}
	if job.Status != domain.JobStatusIdle {
		return fmt.Errorf("%w: new jobs must be idle, got %s", domain.ErrInvalidJob, job.Status)
	}
	stored := job.Clone()
	stored.VideoResult = ""
	stored.Error = ""
	stored.StartTime = nil
	stored.ProgressMessage = ""

	s.mu.Lock()
	if _, exists := s.index[stored.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, stored.ID)
	}
	s.jobs = append(s.jobs, &stored)
	s.index[stored.ID] = &stored
	event := eventFor(domain.JobEventAdded, &stored)
	s.mu.Unlock()

	s.emit(event)
	return nil
}

// AddAll appends the jobs in order. Either every job is added or none is.
func (s *Store) AddAll(jobs []domain.Job) error {
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if job.ID == "" || job.Status != domain.JobStatusIdle {
			return fmt.Errorf("%w: batch contains a non-idle or anonymous job", domain.ErrInvalidJob)
		}
		if _, dup := seen[job.ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, job.ID)
		}
		seen[job.ID] = struct{}{}
	}

	s.mu.Lock()
	for _, job := range jobs {
		if _, exists := s.index[job.ID]; exists {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, job.ID)
		}
	}
	events := make([]domain.JobEvent, 0, len(jobs))
	for _, job := range jobs {
		stored := job.Clone()
		stored.VideoResult = ""
		stored.Error = ""
		stored.StartTime = nil
		stored.ProgressMessage = ""
		s.jobs = append(s.jobs, &stored)
		s.index[stored.ID] = &stored
		events = append(events, eventFor(domain.JobEventAdded, &stored))
	}
	s.mu.Unlock()

	for _, e := range events {
		s.emit(e)
	}
	return nil
}

// Remove deletes a job that is not processing and returns the job as it was
// at removal.
func (s *Store) Remove(id string) (domain.Job, error) {
	s.mu.Lock()
	job, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if job.Status == domain.JobStatusProcessing {
		s.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrJobProcessing)
	}
	delete(s.index, id)
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			break
		}
	}
	removed := job.Clone()
	event := eventFor(domain.JobEventRemoved, job)
	s.mu.Unlock()

	s.emit(event)
	return removed, nil
}

// Update merges patch into the job with the given id. It returns false when
// the job no longer exists or the patch would break the job lifecycle; both are
// tolerated by callers.
func (s *Store) Update(id string, patch domain.JobPatch) bool {
	s.mu.Lock()
	job, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	eventType, ok := apply(job, patch)
	if !ok {
		s.mu.Unlock()
		return false
	}
	event := eventFor(eventType, job)
	s.mu.Unlock()

	s.emit(event)
	return true
}

// Duplicate appends a fresh idle job carrying the parameters of job id.
func (s *Store) Duplicate(id string) (domain.Job, error) {
	s.mu.Lock()
	src, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	params := src.Params()
	now := s.now()
	dup := domain.Job{
		ID:          domain.NewJobID(now),
		CreatedAt:   now,
		Status:      domain.JobStatusIdle,
		Prompt:      params.Prompt,
		InputType:   params.InputType,
		Model:       params.Model,
		AspectRatio: params.AspectRatio,
		Resolution:  params.Resolution,
		Image:       params.Image,
		Label:       params.Label,
	}
	stored := dup.Clone()
	s.jobs = append(s.jobs, &stored)
	s.index[stored.ID] = &stored
	event := eventFor(domain.JobEventAdded, &stored)
	s.mu.Unlock()

	s.emit(event)
	return dup, nil
}

// ClaimNext reserves the first idle job in insertion order when fewer than
// limit jobs are processing. The reservation stamps StartTime and the initial
// progress message before any remote call is made, so the same job can never
// be claimed twice.
func (s *Store) ClaimNext(limit int, now time.Time, message string) (domain.Job, bool) {
	s.mu.Lock()
	processing := 0
	var next *domain.Job
	for _, j := range s.jobs {
		switch j.Status {
		case domain.JobStatusProcessing:
			processing++
		case domain.JobStatusIdle:
			if next == nil {
				next = j
			}
		}
	}
	if processing >= limit || next == nil {
		s.mu.Unlock()
		return domain.Job{}, false
	}
	patch := domain.StatusPatch(domain.JobStatusProcessing).WithStartTime(now).WithProgress(message)
	eventType, ok := apply(next, patch)
	if !ok {
		s.mu.Unlock()
		return domain.Job{}, false
	}
	claimed := next.Clone()
	event := eventFor(eventType, next)
	s.mu.Unlock()

	s.emit(event)
	return claimed, true
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.index[id]
	if !ok {
		return domain.Job{}, false
	}
	return job.Clone(), true
}

// List returns copies of all jobs in insertion order.
func (s *Store) List() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out
}

// Counts returns the number of jobs per status.
func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counts
	for _, j := range s.jobs {
		switch j.Status {
		case domain.JobStatusIdle:
			c.Idle++
		case domain.JobStatusProcessing:
			c.Processing++
		case domain.JobStatusCompleted:
			c.Completed++
		case domain.JobStatusFailed:
			c.Failed++
		}
	}
	c.Total = len(s.jobs)
	return c
}

func (s *Store) emit(e domain.JobEvent) {
	if s.observer != nil {
		s.observer(e)
	}
}

// apply merges patch into job, enforcing the lifecycle. Must hold s.mu.
func apply(job *domain.Job, patch domain.JobPatch) (domain.JobEventType, bool) {
	next := job.Status
	if patch.Status != nil && *patch.Status != job.Status {
		if !job.Status.CanTransition(*patch.Status) {
			return "", false
		}
		next = *patch.Status
	}
	if next == job.Status && job.Status != domain.JobStatusProcessing {
		return "", false
	}
	if next == domain.JobStatusCompleted && next != job.Status && patch.VideoResult == nil {
		return "", false
	}
	if next == domain.JobStatusFailed && next != job.Status && patch.Error == nil {
		return "", false
	}
	if patch.VideoResult != nil && next != domain.JobStatusCompleted {
		return "", false
	}
	if patch.Error != nil && next != domain.JobStatusFailed {
		return "", false
	}
	if patch.StartTime != nil && (job.StartTime != nil || next != domain.JobStatusProcessing) {
		return "", false
	}
	if next == domain.JobStatusProcessing && job.Status == domain.JobStatusIdle && patch.StartTime == nil {
		return "", false
	}

	eventType := domain.JobEventProgress
	if next != job.Status {
		switch next {
		case domain.JobStatusProcessing:
			eventType = domain.JobEventStarted
		case domain.JobStatusCompleted:
			eventType = domain.JobEventCompleted
		case domain.JobStatusFailed:
			eventType = domain.JobEventFailed
		}
	}

	job.Status = next
	if patch.StartTime != nil {
		t := *patch.StartTime
		job.StartTime = &t
	}
	if patch.VideoResult != nil {
		job.VideoResult = *patch.VideoResult
		job.Error = ""
	}
	if patch.Error != nil {
		job.Error = *patch.Error
		job.VideoResult = ""
	}
	if patch.ProgressMessage != nil {
		job.ProgressMessage = *patch.ProgressMessage
	}
	return eventType, true
}

func eventFor(t domain.JobEventType, job *domain.Job) domain.JobEvent {
	return domain.JobEvent{
		Type:       t,
		JobID:      job.ID,
		Status:     job.Status,
		Progress:   job.ProgressMessage,
		Result:     job.VideoResult,
		Error:      job.Error,
		OccurredAt: time.Now(),
	}
}
