package auth

import (
	"context"
	"errors"
	"testing"
)

type failingSource struct{ err error }

func (f failingSource) Credential(ctx context.Context) (string, error) { return "", f.err }
func (f failingSource) SetCredential(ctx context.Context, key string) error {
	return f.err
}

func TestGateStartsNotReady(t *testing.T) {
	g := NewGate(NewStaticSource("key"), nil)
	if g.IsReady() {
		t.Fatalf("new gate must not be ready")
	}
}

func TestSelectPersistsAndNotifies(t *testing.T) {
	src := NewStaticSource("")
	g := NewGate(src, nil)
	var got string
	g.OnSelect(func(key string) { got = key })

	if err := g.Select(context.Background(), "   "); !errors.Is(err, ErrEmptyCredential) {
		t.Fatalf("Select(blank) err = %v, want ErrEmptyCredential", err)
	}
	if err := g.Select(context.Background(), " fresh "); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if !g.IsReady() || got != "fresh" {
		t.Fatalf("ready=%v listener=%q", g.IsReady(), got)
	}
	stored, _ := src.Credential(context.Background())
	if stored != "fresh" {
		t.Fatalf("stored = %q, want %q", stored, "fresh")
	}
}

func TestInvalidateAndReselect(t *testing.T) {
	g := NewGate(NewStaticSource("key"), nil)
	g.MarkReady()
	g.Invalidate()
	if g.IsReady() {
		t.Fatalf("gate still ready after Invalidate")
	}
	g.Invalidate()
	if err := g.Select(context.Background(), "other"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if !g.IsReady() {
		t.Fatalf("gate not ready after reselect")
	}
}

func TestRestore(t *testing.T) {
	cases := []struct {
		name      string
		source    CredentialSource
		wantReady bool
		wantErr   bool
	}{
		{name: "stored key", source: NewStaticSource("key"), wantReady: true},
		{name: "empty", source: NewStaticSource(""), wantReady: false},
		{name: "no source", source: nil, wantReady: false},
		{name: "source error", source: failingSource{err: errors.New("db down")}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate(tc.source, nil)
			var notified bool
			g.OnSelect(func(string) { notified = true })
			ok, err := g.Restore(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Restore err = %v, wantErr %v", err, tc.wantErr)
			}
			if ok != tc.wantReady || g.IsReady() != tc.wantReady || notified != tc.wantReady {
				t.Fatalf("ok=%v ready=%v notified=%v, want %v", ok, g.IsReady(), notified, tc.wantReady)
			}
		})
	}
}

func TestSelectSurfacesSourceError(t *testing.T) {
	g := NewGate(failingSource{err: errors.New("read only")}, nil)
	if err := g.Select(context.Background(), "key"); err == nil {
		t.Fatalf("expected error from source")
	}
	if g.IsReady() {
		t.Fatalf("gate became ready despite persistence failure")
	}
}

func TestHasCredential(t *testing.T) {
	g := NewGate(NewStaticSource(" "), nil)
	if ok, _ := g.HasCredential(context.Background()); ok {
		t.Fatalf("blank credential reported present")
	}
}
