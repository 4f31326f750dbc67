package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"veoqueue/internal/domain"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareImagePassesThroughSmallPNG(t *testing.T) {
	data := encodePNG(t, 40, 20)
	out, err := PrepareImage(data, 100)
	if err != nil {
		t.Fatalf("PrepareImage returned error: %v", err)
	}
	if out.MIMEType != "image/png" || !bytes.Equal(out.Data, data) {
		t.Fatalf("expected untouched PNG, got %s (%d bytes)", out.MIMEType, len(out.Data))
	}
}

func TestPrepareImageDownscales(t *testing.T) {
	out, err := PrepareImage(encodePNG(t, 400, 200), 100)
	if err != nil {
		t.Fatalf("PrepareImage returned error: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("size = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}

func TestPrepareImageReencodesGIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 8, 8), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	out, err := PrepareImage(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("PrepareImage returned error: %v", err)
	}
	if out.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", out.MIMEType)
	}
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{"empty": nil, "text": []byte("not an image")} {
		if _, err := PrepareImage(data, 0); !errors.Is(err, domain.ErrInvalidJob) {
			t.Fatalf("%s: err = %v, want ErrInvalidJob", name, err)
		}
	}
}
