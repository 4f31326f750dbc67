package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("SCHEDULER_MAX_CONCURRENT", "")
	t.Setenv("SCHEDULER_TICK_INTERVAL", "")
	t.Setenv("VEO_POLL_INTERVAL", "")
	t.Setenv("VIDEO_PROVIDER", "")
	t.Setenv("EVENTS_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.MaxConcurrent != 4 {
		t.Fatalf("MaxConcurrent = %d, want 4", cfg.MaxConcurrent)
	}
	if cfg.TickInterval != time.Second {
		t.Fatalf("TickInterval = %s, want 1s", cfg.TickInterval)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.VideoProvider != VideoProviderVeo {
		t.Fatalf("VideoProvider = %q, want %q", cfg.VideoProvider, VideoProviderVeo)
	}
	if cfg.EventsBackend != EventsNone {
		t.Fatalf("EventsBackend = %q, want %q", cfg.EventsBackend, EventsNone)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigDurations(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_INTERVAL", "250ms")
	t.Setenv("VEO_POLL_INTERVAL", "10")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("TickInterval = %s, want 250ms", cfg.TickInterval)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval = %s, want 10s", cfg.PollInterval)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero concurrency", key: "SCHEDULER_MAX_CONCURRENT", value: "0"},
		{name: "unknown provider", key: "VIDEO_PROVIDER", value: "sora"},
		{name: "unknown events backend", key: "EVENTS_BACKEND", value: "kafka"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadConfigCORSList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.example , ,http://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "http://a.example" || cfg.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
}
