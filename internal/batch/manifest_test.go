package batch

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"veoqueue/internal/domain"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAppliesDefaultsAndResolvesImages(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	writeFile(t, filepath.Join(dir, "stills", "cat.png"), buf.Bytes())
	writeFile(t, filepath.Join(dir, "batch.yaml"), []byte(`
defaults:
  model: veo-3.0-generate-001
  resolution: 1080p
jobs:
  - prompt: a lighthouse at dusk
  - prompt: animate this
    image: stills/cat.png
    aspect_ratio: "9:16"
    label: cat
`))

	params, err := Load(filepath.Join(dir, "batch.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("len(params) = %d, want 2", len(params))
	}
	first := params[0]
	if first.InputType != domain.InputTypeText || first.Model != "veo-3.0-generate-001" || first.Resolution != "1080p" || first.AspectRatio != domain.DefaultAspectRatio {
		t.Fatalf("unexpected first job: %+v", first)
	}
	second := params[1]
	if second.InputType != domain.InputTypeImage || second.Image == nil || second.Image.MIMEType != "image/png" {
		t.Fatalf("unexpected second job: %+v", second)
	}
	if second.AspectRatio != "9:16" || second.Label != "cat" {
		t.Fatalf("overrides lost: %+v", second)
	}

	req := NewRequest(params)
	if len(req.Jobs) != 2 || req.Jobs[0].ImageBase64 != "" || req.Jobs[1].ImageBase64 == "" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		wantJob  bool
	}{
		{name: "no jobs", manifest: "jobs: []\n"},
		{name: "bad yaml", manifest: "jobs: [\n"},
		{name: "missing prompt", manifest: "jobs:\n  - label: x\n", wantJob: true},
		{name: "bad ratio", manifest: "jobs:\n  - prompt: p\n    aspect_ratio: \"1:1\"\n", wantJob: true},
		{name: "missing image", manifest: "jobs:\n  - prompt: p\n    image: nope.png\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "batch.yaml")
			writeFile(t, path, []byte(tc.manifest))
			_, err := Load(path)
			if err == nil {
				t.Fatalf("Load expected error")
			}
			if tc.wantJob && !errors.Is(err, domain.ErrInvalidJob) {
				t.Fatalf("err = %v, want ErrInvalidJob", err)
			}
		})
	}
}
