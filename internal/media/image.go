package media

import (
	"bytes"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"

	"veoqueue/internal/domain"
)

// MaxUploadBytes caps the size of an uploaded still.
const MaxUploadBytes = 20 << 20

// PrepareImage validates an uploaded still and scales it so its longest edge
// is at most maxEdge (0 disables scaling). PNG and JPEG inputs that need no
// scaling are passed through untouched; other decodable formats are
// re-encoded as PNG.
func PrepareImage(data []byte, maxEdge int) (*domain.ImageSource, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", domain.ErrInvalidJob)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidJob, MaxUploadBytes)
	}

	mime := http.DetectContentType(data)
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image (%s): %v", domain.ErrInvalidJob, mime, err)
	}

	resize := needsResize(img.Bounds(), maxEdge)
	passthrough := mime == "image/png" || mime == "image/jpeg"
	if passthrough && !resize {
		return &domain.ImageSource{Data: data, MIMEType: mime}, nil
	}

	if resize {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}
	format, outMIME := imaging.PNG, "image/png"
	if mime == "image/jpeg" {
		format, outMIME = imaging.JPEG, "image/jpeg"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &domain.ImageSource{Data: buf.Bytes(), MIMEType: outMIME}, nil
}

func needsResize(b image.Rectangle, maxEdge int) bool {
	if maxEdge <= 0 {
		return false
	}
	return b.Dx() > maxEdge || b.Dy() > maxEdge
}
