package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {
			"server_address": ":9090",
			"file_base_dir": "data/evidence",
			"min_workers": 2,
			"max_workers": 8,
			"queue_size": 32
		},
		"databases": {
			"sqlite3": {"dsn": "nyayachat.db"}
		},
		"redis": {"host": "127.0.0.1", "port": 6379},
		"upstream": {
			"base_url": "https://gateway.example.com/v1",
			"model": "legal-chat-v1",
			"api_key": "k",
			"temperature": 0.2,
			"max_tokens": 2048
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9090" {
		t.Fatalf("server address = %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Databases["sqlite3"].DSN != "nyayachat.db" {
		t.Fatalf("sqlite dsn = %q", cfg.Databases["sqlite3"].DSN)
	}
	if cfg.Upstream.Model != "legal-chat-v1" || cfg.Upstream.Temperature != 0.2 {
		t.Fatalf("upstream = %+v", cfg.Upstream)
	}
}

func TestLoadRejectsMissingUpstream(t *testing.T) {
	path := writeConfig(t, `{"upstream": {"base_url": "", "model": "m"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("missing base_url accepted")
	}
	path = writeConfig(t, `{"upstream": {"base_url": "http://x", "model": ""}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("missing model accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}
