package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Asset is one file added to an archive.
type Asset struct {
	Filename string
	Modified time.Time
	Data     []byte
}

// ArchiveAssets bundles assets into a zip archive. Videos are already
// compressed, so entries are stored rather than deflated.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if _, dup := seen[asset.Filename]; dup {
			return nil, fmt.Errorf("zip: duplicate entry %q", asset.Filename)
		}
		seen[asset.Filename] = struct{}{}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Store,
			Modified: asset.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
