package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	data, err := ArchiveAssets([]Asset{
		{Filename: "a.mp4", Data: []byte("first")},
		{Filename: "b.mp4", Data: []byte("second")},
	})
	if err != nil {
		t.Fatalf("ArchiveAssets returned error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if zr.File[1].Name != "b.mp4" || string(got) != "second" || zr.File[1].Method != zip.Store {
		t.Fatalf("entry = %s %q method %d", zr.File[1].Name, got, zr.File[1].Method)
	}
}

func TestArchiveAssetsRejectsDuplicates(t *testing.T) {
	_, err := ArchiveAssets([]Asset{{Filename: "a.mp4"}, {Filename: "a.mp4"}})
	if err == nil {
		t.Fatalf("expected duplicate entry error")
	}
}
