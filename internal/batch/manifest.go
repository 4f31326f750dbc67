package batch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"veoqueue/internal/domain"
)

// Entry is one job of a manifest. Empty fields inherit from the manifest
// defaults.
type Entry struct {
	Prompt      string `yaml:"prompt"`
	Image       string `yaml:"image"`
	InputType   string `yaml:"input_type"`
	Model       string `yaml:"model"`
	AspectRatio string `yaml:"aspect_ratio"`
	Resolution  string `yaml:"resolution"`
	Label       string `yaml:"label"`
}

// Manifest is the YAML document accepted by veobatch.
type Manifest struct {
	Defaults Entry   `yaml:"defaults"`
	Jobs     []Entry `yaml:"jobs"`
}

// JobRequest is the JSON shape of one job in POST /v1/jobs/batch.
type JobRequest struct {
	Prompt      string `json:"prompt"`
	InputType   string `json:"input_type,omitempty"`
	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	Label       string `json:"label,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// Request is the body of POST /v1/jobs/batch.
type Request struct {
	Jobs []JobRequest `json:"jobs"`
}

// Load reads the manifest at path, resolves image paths relative to it and
// validates every job. It fails on the first invalid entry.
func Load(path string) ([]domain.JobParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, errors.New("manifest has no jobs")
	}

	dir := filepath.Dir(path)
	out := make([]domain.JobParams, 0, len(m.Jobs))
	for i, entry := range m.Jobs {
		entry = entry.withDefaults(m.Defaults)
		params, err := entry.params(dir)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		out = append(out, params)
	}
	return out, nil
}

// NewRequest encodes params as the batch submission body.
func NewRequest(params []domain.JobParams) Request {
	req := Request{Jobs: make([]JobRequest, 0, len(params))}
	for _, p := range params {
		item := JobRequest{
			Prompt:      p.Prompt,
			InputType:   string(p.InputType),
			Model:       p.Model,
			AspectRatio: p.AspectRatio,
			Resolution:  p.Resolution,
			Label:       p.Label,
		}
		if p.Image != nil {
			item.ImageBase64 = base64.StdEncoding.EncodeToString(p.Image.Data)
		}
		req.Jobs = append(req.Jobs, item)
	}
	return req
}

func (e Entry) withDefaults(d Entry) Entry {
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	e.InputType = pick(e.InputType, d.InputType)
	e.Model = pick(e.Model, d.Model)
	e.AspectRatio = pick(e.AspectRatio, d.AspectRatio)
	e.Resolution = pick(e.Resolution, d.Resolution)
	e.Label = pick(e.Label, d.Label)
	return e
}

func (e Entry) params(dir string) (domain.JobParams, error) {
	params := domain.JobParams{
		Prompt:      e.Prompt,
		InputType:   domain.InputType(strings.ToLower(strings.TrimSpace(e.InputType))),
		Model:       e.Model,
		AspectRatio: e.AspectRatio,
		Resolution:  e.Resolution,
		Label:       e.Label,
	}
	if img := strings.TrimSpace(e.Image); img != "" {
		if !filepath.IsAbs(img) {
			img = filepath.Join(dir, img)
		}
		data, err := os.ReadFile(img)
		if err != nil {
			return domain.JobParams{}, fmt.Errorf("read image: %w", err)
		}
		params.Image = &domain.ImageSource{Data: data, MIMEType: http.DetectContentType(data)}
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return domain.JobParams{}, err
	}
	return params, nil
}
