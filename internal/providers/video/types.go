package video

import (
	"context"
)

// Image is the optional still used for image-to-video generation.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request carries the immutable parameters of one generation.
type Request struct {
	RequestID   string
	Prompt      string
	Model       string
	AspectRatio string
	Resolution  string
	Image       *Image
}

// Operation is a handle on a long-running remote generation.
type Operation struct {
	Name string
	Done bool
	// Payload is kept opaque to callers; clients stash the last response here.
	Payload any
}

// Asset references a generated video.
type Asset struct {
	URI        string
	URL        string
	StorageKey string
	Format     string
	Size       int64
}

// Reference returns the best user-facing location of the asset.
func (a *Asset) Reference() string {
	if a == nil {
		return ""
	}
	if a.URL != "" {
		return a.URL
	}
	return a.URI
}

// OperationClient is the contract of the remote generation service.
type OperationClient interface {
	Submit(ctx context.Context, req Request) (*Operation, error)
	Poll(ctx context.Context, op *Operation) (*Operation, error)
	Result(ctx context.Context, op *Operation) (*Asset, error)
}

// Fetcher is implemented by clients that can download the produced bytes.
type Fetcher interface {
	FetchVideo(ctx context.Context, uri string) ([]byte, string, error)
}

// ProgressFunc receives human-readable status messages while a job runs.
type ProgressFunc func(message string)

// Generator runs one request to completion.
type Generator interface {
	Generate(ctx context.Context, req Request, progress ProgressFunc) (*Asset, error)
}
