package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"veoqueue/internal/domain"
	"veoqueue/internal/infra"
	"veoqueue/internal/providers/video"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	apiKeyHeader = "x-goog-api-key"
)

// Options controls how the Veo client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the Gemini API long-running video endpoints. The API key can
// be swapped at runtime when the operator selects a new credential.
type Client struct {
	mu         sync.RWMutex
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoInstance struct {
	Prompt string    `json:"prompt,omitempty"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoParameters struct {
	AspectRatio    string `json:"aspectRatio,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	NumberOfVideos int    `json:"numberOfVideos,omitempty"`
}

type predictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type operationStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type generatedSample struct {
	Video struct {
		URI      string `json:"uri"`
		MimeType string `json:"mimeType,omitempty"`
	} `json:"video"`
}

type operationResponse struct {
	Name     string           `json:"name"`
	Done     bool             `json:"done"`
	Error    *operationStatus `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples        []generatedSample `json:"generatedSamples"`
			RAIMediaFilteredCount   int               `json:"raiMediaFilteredCount,omitempty"`
			RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
		Details []struct {
			Reason string `json:"reason,omitempty"`
		} `json:"details,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Veo client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = domain.DefaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the default model used when a request does not name one.
func (c *Client) Model() string {
	return c.model
}

// SetAPIKey replaces the credential used for subsequent calls.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Submit starts a long-running generation.
func (c *Client) Submit(ctx context.Context, req video.Request) (*video.Operation, error) {
	model := firstNonEmpty(req.Model, c.model)
	instance := veoInstance{Prompt: strings.TrimSpace(req.Prompt)}
	if req.Image != nil && len(req.Image.Data) > 0 {
		instance.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType:           firstNonEmpty(req.Image.MIMEType, "image/png"),
		}
	}
	payload := predictRequest{
		Instances: []veoInstance{instance},
		Parameters: veoParameters{
			AspectRatio:    req.AspectRatio,
			Resolution:     req.Resolution,
			NumberOfVideos: 1,
		},
	}

	var resp operationResponse
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Name == "" {
		return nil, fmt.Errorf("%w: operation name missing from response", domain.ErrRequest)
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", model).
		Str("operation", resp.Name).
		Msg("genai: video operation started")

	return &video.Operation{Name: resp.Name, Done: resp.Done, Payload: &resp}, nil
}

// Poll refreshes the operation state.
func (c *Client) Poll(ctx context.Context, op *video.Operation) (*video.Operation, error) {
	if op == nil || op.Name == "" {
		return nil, fmt.Errorf("%w: operation handle is empty", domain.ErrRequest)
	}
	var resp operationResponse
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(op.Name, "/"), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Name == "" {
		resp.Name = op.Name
	}
	return &video.Operation{Name: resp.Name, Done: resp.Done, Payload: &resp}, nil
}

// Result extracts the generated video reference from a finished operation.
func (c *Client) Result(_ context.Context, op *video.Operation) (*video.Asset, error) {
	if op == nil || !op.Done {
		return nil, fmt.Errorf("%w: operation is not finished", domain.ErrRequest)
	}
	resp, ok := op.Payload.(*operationResponse)
	if !ok || resp == nil {
		return nil, fmt.Errorf("%w: operation carries no response", domain.ErrRequest)
	}
	if resp.Error != nil {
		return nil, operationError(resp.Error)
	}
	if resp.Response == nil || len(resp.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		if resp.Response != nil && len(resp.Response.GenerateVideoResponse.RAIMediaFilteredReasons) > 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrRequest, resp.Response.GenerateVideoResponse.RAIMediaFilteredReasons[0])
		}
		return nil, fmt.Errorf("%w: no video was generated", domain.ErrRequest)
	}
	sample := resp.Response.GenerateVideoResponse.GeneratedSamples[0]
	if strings.TrimSpace(sample.Video.URI) == "" {
		return nil, fmt.Errorf("%w: no video was generated", domain.ErrRequest)
	}
	return &video.Asset{
		URI:    sample.Video.URI,
		Format: firstNonEmpty(sample.Video.MimeType, "video/mp4"),
	}, nil
}

// FetchVideo downloads the bytes behind a generated video uri.
func (c *Client) FetchVideo(ctx context.Context, uri string) ([]byte, string, error) {
	return c.downloadFile(ctx, uri)
}

func (c *Client) invoke(ctx context.Context, method, path string, payload any, out any) error {
	key := c.key()
	if key == "" {
		return &APIError{Status: "UNAUTHENTICATED", Message: "API key is not set", auth: true}
	}

	endpoint := c.baseURL + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: invoke veo: %v", domain.ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode veo response: %v", domain.ErrRequest, err)
	}
	return nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if key := c.key(); key != "" {
		req.Header.Set(apiKeyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

// APIError is a failure reported by the generation service.
type APIError struct {
	StatusCode int
	Status     string
	Reason     string
	Message    string
	auth       bool
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("veo status %d: %s", e.StatusCode, msg)
	}
	return msg
}

// Unwrap exposes the domain classification so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	if e.auth {
		return domain.ErrAuth
	}
	return domain.ErrRequest
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload apiErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Message = payload.Error.Message
		apiErr.Status = payload.Error.Status
		for _, d := range payload.Error.Details {
			if d.Reason != "" {
				apiErr.Reason = d.Reason
				break
			}
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	apiErr.auth = isAuthFailure(apiErr.StatusCode, apiErr.Status, apiErr.Reason)
	return apiErr
}

func isAuthFailure(code int, status, reason string) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	switch status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	switch reason {
	case "API_KEY_INVALID", "API_KEY_EXPIRED":
		return true
	}
	return false
}

// gRPC codes carried by finished operations.
const (
	codePermissionDenied = 7
	codeUnauthenticated  = 16
)

func operationError(st *operationStatus) error {
	msg := strings.TrimSpace(st.Message)
	if msg == "" {
		msg = fmt.Sprintf("operation failed with code %d", st.Code)
	}
	if st.Code == codeUnauthenticated || st.Code == codePermissionDenied {
		return &APIError{Message: msg, auth: true}
	}
	return &APIError{Message: msg}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var (
	_ video.OperationClient = (*Client)(nil)
	_ video.Fetcher         = (*Client)(nil)
)
