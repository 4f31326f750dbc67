package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"veoqueue/internal/domain"
	"veoqueue/internal/infra"
	"veoqueue/internal/jobstore"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.JobEvent
	closed bool
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestForwarderPublishesStoreEventsInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	fwd := NewForwarder(pub, nil, 16)
	store := jobstore.New(jobstore.WithObserver(fwd.Observe))

	job := domain.Job{ID: "j1", Status: domain.JobStatusIdle, Prompt: "p", InputType: domain.InputTypeText}
	if err := store.Add(job); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if _, ok := store.ClaimNext(1, job.CreatedAt, "Initializing..."); !ok {
		t.Fatalf("ClaimNext found nothing")
	}
	store.Update("j1", domain.StatusPatch(domain.JobStatusFailed).WithError("boom"))

	if err := fwd.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if !pub.closed {
		t.Fatalf("publisher not closed")
	}
	want := []domain.JobEventType{domain.JobEventAdded, domain.JobEventStarted, domain.JobEventFailed}
	if len(pub.events) != len(want) {
		t.Fatalf("published %d events, want %d", len(pub.events), len(want))
	}
	for i, e := range pub.events {
		if e.Type != want[i] || e.JobID != "j1" {
			t.Fatalf("event %d = %+v, want %s", i, e, want[i])
		}
	}
	if pub.events[2].Error != "boom" {
		t.Fatalf("failed event error = %q, want %q", pub.events[2].Error, "boom")
	}
}

func TestForwarderSurvivesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	fwd := NewForwarder(pub, nil, 4)
	fwd.Observe(domain.JobEvent{Type: domain.JobEventAdded, JobID: "a"})
	fwd.Observe(domain.JobEvent{Type: domain.JobEventAdded, JobID: "b"})
	if err := fwd.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	fwd.Observe(domain.JobEvent{Type: domain.JobEventAdded, JobID: "late"})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
}

func TestTopic(t *testing.T) {
	if got := topic("veoqueue.jobs", domain.JobEventCompleted); got != "veoqueue.jobs.completed" {
		t.Fatalf("topic = %q, want %q", got, "veoqueue.jobs.completed")
	}
}

func TestNewNoneBackend(t *testing.T) {
	pub, err := New(&infra.Config{EventsBackend: infra.EventsNone})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := pub.(Noop); !ok {
		t.Fatalf("publisher = %T, want Noop", pub)
	}
	if _, err := New(&infra.Config{EventsBackend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
