package genai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"veoqueue/internal/domain"
	"veoqueue/internal/providers/video"
)

// SyntheticClient is an offline stand-in for the Veo API. Operations finish
// after a fixed number of polls and yield deterministic placeholder videos,
// which keeps the scheduler exercisable in local and CI environments.
type SyntheticClient struct {
	mu    sync.Mutex
	polls int
	ops   map[string]*syntheticOp
	seq   int
	// FailPrompt makes submissions whose prompt contains the marker fail;
	// "auth:" prefixed markers fail with a credential error.
	FailPrompt string
}

type syntheticOp struct {
	req       video.Request
	seed      string
	remaining int
}

// NewSyntheticClient returns a client whose operations finish after polls
// polls.
func NewSyntheticClient(polls int) *SyntheticClient {
	if polls < 0 {
		polls = 0
	}
	return &SyntheticClient{polls: polls, ops: make(map[string]*syntheticOp)}
}

func (c *SyntheticClient) Submit(ctx context.Context, req video.Request) (*video.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if marker := c.FailPrompt; marker != "" && strings.Contains(req.Prompt, marker) {
		if strings.HasPrefix(marker, "auth:") {
			return nil, &APIError{StatusCode: 401, Status: "UNAUTHENTICATED", Message: "API key not valid", auth: true}
		}
		return nil, &APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "synthetic failure"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	model := firstNonEmpty(req.Model, domain.DefaultModel)
	seed := deterministicSeed(req.RequestID, req.Prompt, model, req.AspectRatio, req.Resolution)
	name := fmt.Sprintf("models/%s/operations/synthetic-%d-%s", url.PathEscape(model), c.seq, seed)
	c.ops[name] = &syntheticOp{req: req, seed: seed, remaining: c.polls}
	return &video.Operation{Name: name, Done: c.polls == 0}, nil
}

func (c *SyntheticClient) Poll(ctx context.Context, op *video.Operation) (*video.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.ops[op.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %s", domain.ErrRequest, op.Name)
	}
	if state.remaining > 0 {
		state.remaining--
	}
	return &video.Operation{Name: op.Name, Done: state.remaining == 0}, nil
}

// Result reports the video of a finished operation and forgets the
// operation.
func (c *SyntheticClient) Result(_ context.Context, op *video.Operation) (*video.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.ops[op.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %s", domain.ErrRequest, op.Name)
	}
	if state.remaining > 0 {
		return nil, fmt.Errorf("%w: operation is not finished", domain.ErrRequest)
	}
	delete(c.ops, op.Name)
	model := firstNonEmpty(state.req.Model, domain.DefaultModel)
	return &video.Asset{
		URI:    syntheticScheme + syntheticStorageKey("video", model, state.seed, 1, "mp4"),
		Format: "video/mp4",
	}, nil
}

// FetchVideo renders the placeholder bytes for a synthetic uri. The uri
// carries everything needed, so no per-video state is kept.
func (c *SyntheticClient) FetchVideo(_ context.Context, uri string) ([]byte, string, error) {
	model, seed, ok := parseSyntheticURI(uri)
	if !ok {
		return nil, "", fmt.Errorf("%w: not a synthetic video uri: %s", domain.ErrRequest, uri)
	}
	return renderSyntheticVideo(model, seed), "video/mp4", nil
}

// pending reports how many operations are still tracked.
func (c *SyntheticClient) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ops)
}

const syntheticScheme = "synthetic://"

// parseSyntheticURI reverses syntheticStorageKey for video uris.
func parseSyntheticURI(uri string) (model, seed string, ok bool) {
	key, found := strings.CutPrefix(uri, syntheticScheme)
	if !found {
		return "", "", false
	}
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "synthetic" {
		return "", "", false
	}
	seed, found = strings.CutPrefix(parts[2], "video-")
	if !found || seed == "" {
		return "", "", false
	}
	model, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", false
	}
	return model, seed, true
}

func syntheticStorageKey(kind, model, seed string, index int, ext string) string {
	escapedModel := url.PathEscape(model)
	escapedKind := url.PathEscape(kind)
	return fmt.Sprintf("synthetic/%s/%s-%s/%02d.%s", escapedModel, escapedKind, seed, index, ext)
}

func renderSyntheticVideo(model, seed string) []byte {
	lines := []string{
		"Synthetic Veo video placeholder",
		fmt.Sprintf("Model: %s", model),
		fmt.Sprintf("Seed: %s", seed),
	}
	return []byte(strings.Join(lines, "\n"))
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var (
	_ video.OperationClient = (*SyntheticClient)(nil)
	_ video.Fetcher         = (*SyntheticClient)(nil)
)
