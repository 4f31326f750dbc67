package geoip

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(empty) = %v, %v; want nil, nil", r, err)
	}
}

func TestNewResolverMissingDatabase(t *testing.T) {
	if _, err := NewResolver(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatalf("expected error for missing database")
	}
}

func TestCountryCodeWithoutDatabase(t *testing.T) {
	var r *Resolver
	cases := []struct {
		ip      string
		want    string
		wantErr error
	}{
		{ip: "10.1.2.3", want: ""},
		{ip: "127.0.0.1:8080", want: ""},
		{ip: "[::1]:443", want: ""},
		{ip: "203.0.113.9", wantErr: ErrUnavailable},
	}
	for _, tc := range cases {
		got, err := r.CountryCode(tc.ip)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("CountryCode(%q) err = %v, want %v", tc.ip, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("CountryCode(%q) = %q, want %q", tc.ip, got, tc.want)
		}
	}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatalf("expected error for invalid ip")
	}
}
