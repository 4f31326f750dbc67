package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	cases := []struct {
		name     string
		headers  map[string]string
		fallback string
		country  string
		want     string
	}{
		{name: "x-locale wins over country", headers: map[string]string{"X-Locale": "ID"}, country: "US", want: "id"},
		{name: "x-locale wins over accept-language", headers: map[string]string{"X-Locale": "en", "Accept-Language": "id-ID"}, want: "en"},
		{name: "accept-language english", headers: map[string]string{"Accept-Language": "en-US,en;q=0.9"}, want: "en"},
		{name: "accept-language indonesian first", headers: map[string]string{"Accept-Language": "id-ID,en;q=0.8"}, want: "id"},
		{name: "underscore tag", headers: map[string]string{"X-Locale": "id_ID"}, want: "id"},
		{name: "indonesian country", country: "ID", want: "id"},
		{name: "other country", country: "US", want: "en"},
		{name: "configured fallback", fallback: "id", want: "id"},
		{name: "no hints", want: "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := detectLocale(req, tc.fallback, tc.country); got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	lookupErr := errors.New("geoip: no database")
	cases := []struct {
		name    string
		headers map[string]string
		lookup  CountryLookup
		want    string
	}{
		{name: "edge header first", headers: map[string]string{"X-Country-Code": "us", "CF-IPCountry": "id"}, want: "US"},
		{name: "cloudflare header", headers: map[string]string{"CF-IPCountry": "sg"}, want: "SG"},
		{name: "x-locale region", headers: map[string]string{"X-Locale": "en-AU"}, want: "AU"},
		{name: "accept-language region", headers: map[string]string{"Accept-Language": "en-GB,en;q=0.9"}, want: "GB"},
		{name: "bare indonesian", headers: map[string]string{"Accept-Language": "id;q=0.8"}, want: "ID"},
		{
			name: "geoip lookup",
			lookup: func(ip string) (string, error) {
				if ip != "198.51.100.7" {
					return "", errors.New("unexpected ip " + ip)
				}
				return "my", nil
			},
			want: "MY",
		},
		{name: "geoip failure", lookup: func(string) (string, error) { return "", lookupErr }, want: ""},
		{name: "no hints", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
			req.RemoteAddr = "198.51.100.7:52100"
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ResolveCountry(req, tc.lookup); got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	if got := ClientIP(req); got != "10.0.0.2" {
		t.Fatalf("ClientIP() = %q, want 10.0.0.2", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("ClientIP() = %q, want 203.0.113.9", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "en" {
		t.Fatalf("LocaleFromContext() = %q, want en", got)
	}
	ctx := context.WithValue(context.Background(), LocaleKey, "id")
	if got := LocaleFromContext(ctx); got != "id" {
		t.Fatalf("LocaleFromContext() = %q, want id", got)
	}
}

func TestI18NMiddlewareSetsLocale(t *testing.T) {
	var gotLocale, gotCountry string
	h := I18N("en", func(ip string) (string, error) { return "id", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLocale = LocaleFromContext(r.Context())
		gotCountry = CountryFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotLocale != "id" || gotCountry != "ID" {
		t.Fatalf("locale=%q country=%q, want id/ID", gotLocale, gotCountry)
	}
	if rec.Header().Get("Content-Language") != "id" {
		t.Fatalf("Content-Language = %q, want id", rec.Header().Get("Content-Language"))
	}
}
