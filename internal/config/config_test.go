package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chimera/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("file should not exist")
	}
	if resolved != path {
		t.Fatalf("resolved path = %s, want %s", resolved, path)
	}
	if cfg.Embedding.Provider != "local" || cfg.Embedding.Dimension != 256 {
		t.Fatalf("embedding defaults wrong: %#v", cfg.Embedding)
	}
	if cfg.Correlation.DiscoveryConfidence != 0.7 || cfg.Correlation.DiscoveryMinSources != 2 {
		t.Fatalf("correlation defaults wrong: %#v", cfg.Correlation)
	}
	if cfg.Pipeline.ChunkTargetTokens != 400 || cfg.Pipeline.ChunkMaxTokens != 800 {
		t.Fatalf("pipeline defaults wrong: %#v", cfg.Pipeline)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
library_roots = ["` + dir + `/library", "  ", "` + dir + `/library"]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"

[pipeline]
chunk_target_tokens = 500
chunk_max_tokens = 300

[embedding]
provider = "Local"

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("file should exist")
	}
	if len(cfg.Paths.LibraryRoots) != 1 {
		t.Fatalf("blank and duplicate roots should collapse: %v", cfg.Paths.LibraryRoots)
	}
	if cfg.Paths.SocketPath != filepath.Join(dir, "data", "chimera.sock") {
		t.Fatalf("socket path should default under data dir: %s", cfg.Paths.SocketPath)
	}
	if cfg.Pipeline.ChunkMaxTokens != 500 {
		t.Fatalf("max tokens should rise to target: %d", cfg.Pipeline.ChunkMaxTokens)
	}
	if cfg.Embedding.Provider != "local" || cfg.Logging.Level != "debug" {
		t.Fatalf("case not normalized: %s, %s", cfg.Embedding.Provider, cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bad-provider",
			content: "[embedding]\nprovider = \"openai\"\n",
			want:    "embedding.provider",
		},
		{
			name:    "ollama-without-host",
			content: "[embedding]\nprovider = \"ollama\"\n",
			want:    "ollama_host",
		},
		{
			name:    "confidence-above-one",
			content: "[correlation]\ndiscovery_confidence = 1.5\n",
			want:    "discovery_confidence",
		},
		{
			name:    "bad-log-format",
			content: "[logging]\nformat = \"xml\"\n",
			want:    "logging.format",
		},
		{
			name:    "bad-cron",
			content: "[daemon]\ncorrelation_schedule = \"every tuesday\"\n",
			want:    "correlation_schedule",
		},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".toml")
		if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		_, _, _, err := config.Load(path)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q should mention %s", tc.name, err, tc.want)
		}
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/var/lib/chimera"
	cfg.Paths.LogDir = "/var/log/chimera"

	if got := cfg.QueueDBPath(); got != "/var/lib/chimera/queue.db" {
		t.Fatalf("queue db path: %s", got)
	}
	if got := cfg.CatalogDBPath(); got != "/var/lib/chimera/catalog.db" {
		t.Fatalf("catalog db path: %s", got)
	}
	if got := cfg.VectorDBPath(); got != "/var/lib/chimera/vectors.db" {
		t.Fatalf("vector db path: %s", got)
	}
	if got := cfg.LockPath(); got != "/var/lib/chimera/chimerad.lock" {
		t.Fatalf("lock path: %s", got)
	}
	if got := cfg.LogPath(); got != "/var/log/chimera/chimera.log" {
		t.Fatalf("log path: %s", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir failed: %v", err)
	}

	expanded, err := config.ExpandPath("~/notes")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if expanded != filepath.Join(home, "notes") {
		t.Fatalf("tilde not expanded: %s", expanded)
	}

	absolute, err := config.ExpandPath("/already/absolute/../absolute")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if absolute != "/already/absolute" {
		t.Fatalf("path not cleaned: %s", absolute)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}
