package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Fragments != 50 {
		t.Errorf("expected 50 fragments, got %d", cfg.Fragments)
	}
	if len(cfg.Servers) != 3 {
		t.Errorf("expected 3 servers, got %d", len(cfg.Servers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paster.yaml")
	content := `
threads: 8
image: 2
servers:
  - http://localhost:2520
output: out/strips.png
retry_backoff: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Threads != 8 {
		t.Errorf("expected threads 8, got %d", cfg.Threads)
	}
	if cfg.Image != 2 {
		t.Errorf("expected image 2, got %d", cfg.Image)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0] != "http://localhost:2520" {
		t.Errorf("unexpected servers %v", cfg.Servers)
	}
	if cfg.Output != "out/strips.png" {
		t.Errorf("unexpected output %q", cfg.Output)
	}
	if cfg.RetryBackoff != 250*time.Millisecond {
		t.Errorf("expected 250ms backoff, got %v", cfg.RetryBackoff)
	}
	// untouched fields keep defaults
	if cfg.Fragments != 50 {
		t.Errorf("expected default fragments, got %d", cfg.Fragments)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paster.yaml")
	if err := os.WriteFile(path, []byte("threads: 4\nimage: 3\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PASTER_THREADS", "12")
	t.Setenv("PASTER_SERVERS", "http://a:1,http://b:2")
	t.Setenv("PASTER_RETRY_MAX_BACKOFF", "2s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Threads != 12 {
		t.Errorf("expected env threads 12, got %d", cfg.Threads)
	}
	if cfg.Image != 3 {
		t.Errorf("expected file image 3, got %d", cfg.Image)
	}
	if len(cfg.Servers) != 2 || cfg.Servers[1] != "http://b:2" {
		t.Errorf("unexpected servers %v", cfg.Servers)
	}
	if cfg.RetryMaxBackoff != 2*time.Second {
		t.Errorf("expected 2s max backoff, got %v", cfg.RetryMaxBackoff)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("PASTER_THREADS", "many")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric threads")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero threads", func(c *Config) { c.Threads = 0 }},
		{"negative threads", func(c *Config) { c.Threads = -2 }},
		{"image zero", func(c *Config) { c.Image = 0 }},
		{"image too large", func(c *Config) { c.Image = 4 }},
		{"no fragments", func(c *Config) { c.Fragments = 0 }},
		{"no output", func(c *Config) { c.Output = "" }},
		{"no servers", func(c *Config) { c.Servers = nil }},
		{"bad server", func(c *Config) { c.Servers = []string{"ece252-1"} }},
		{"bad path", func(c *Config) { c.URLPath = "/image" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestWorkerURLs(t *testing.T) {
	cfg := Default()
	cfg.Threads = 5
	cfg.Image = 2
	cfg.Servers = []string{"http://s1:2520/", "http://s2:2520", "http://s3:2520"}

	want := []string{
		"http://s1:2520/image?img=2",
		"http://s2:2520/image?img=2",
		"http://s3:2520/image?img=2",
		"http://s1:2520/image?img=2",
		"http://s2:2520/image?img=2",
	}

	got := cfg.WorkerURLs()
	if len(got) != len(want) {
		t.Fatalf("expected %d urls, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url %d = %q, want %q", i, got[i], want[i])
		}
	}
}
