package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"veoqueue/internal/infra"
)

// ErrEmptyCredential is returned when selecting a blank API key.
var ErrEmptyCredential = errors.New("auth: api key is required")

// CredentialSource is the selection surface that owns the API key.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
	SetCredential(ctx context.Context, key string) error
}

// KeyListener is notified with the newly selected key, e.g. to swap the key a
// remote client sends.
type KeyListener func(key string)

// Gate tracks whether a usable credential is selected. The scheduler consults
// IsReady before launching work and calls Invalidate on authentication errors.
type Gate struct {
	mu        sync.RWMutex
	ready     bool
	source    CredentialSource
	listeners []KeyListener
	logger    *infra.Logger
}

// NewGate builds a gate over the given credential source. The gate starts not
// ready; call Restore or Select to make it ready.
func NewGate(source CredentialSource, logger *infra.Logger) *Gate {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Gate{source: source, logger: logger}
}

// OnSelect registers a listener invoked whenever a credential is selected or
// restored.
func (g *Gate) OnSelect(l KeyListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// IsReady reports whether a valid credential is currently selected.
func (g *Gate) IsReady() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready
}

// Invalidate marks the current credential unusable.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	was := g.ready
	g.ready = false
	g.mu.Unlock()
	if was {
		g.logger.Warn().Msg("auth: credential invalidated")
	}
}

// MarkReady flags the gate ready without touching the stored credential.
func (g *Gate) MarkReady() {
	g.mu.Lock()
	g.ready = true
	g.mu.Unlock()
}

// HasCredential reports whether the source holds any key.
func (g *Gate) HasCredential(ctx context.Context) (bool, error) {
	if g.source == nil {
		return false, nil
	}
	key, err := g.source.Credential(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(key) != "", nil
}

// Select stores key as the active credential and makes the gate ready.
func (g *Gate) Select(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	if g.source != nil {
		if err := g.source.SetCredential(ctx, key); err != nil {
			return err
		}
	}
	g.notify(key)
	g.MarkReady()
	g.logger.Info().Msg("auth: credential selected")
	return nil
}

// Restore loads a previously stored credential. The gate becomes ready only
// when one exists.
func (g *Gate) Restore(ctx context.Context) (bool, error) {
	if g.source == nil {
		return false, nil
	}
	key, err := g.source.Credential(ctx)
	if err != nil {
		return false, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	g.notify(key)
	g.MarkReady()
	g.logger.Info().Msg("auth: stored credential restored")
	return true, nil
}

func (g *Gate) notify(key string) {
	g.mu.RLock()
	listeners := append([]KeyListener(nil), g.listeners...)
	g.mu.RUnlock()
	for _, l := range listeners {
		l(key)
	}
}

// StaticSource keeps the credential in memory, seeded from configuration.
type StaticSource struct {
	mu  sync.RWMutex
	key string
}

// NewStaticSource returns a source holding key.
func NewStaticSource(key string) *StaticSource {
	return &StaticSource{key: strings.TrimSpace(key)}
}

func (s *StaticSource) Credential(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key, nil
}

func (s *StaticSource) SetCredential(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = strings.TrimSpace(key)
	return nil
}

var _ CredentialSource = (*StaticSource)(nil)
