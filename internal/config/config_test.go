// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoad_ParsesValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
  request_timeout: 30s
database:
  path: /tmp/gateway.db
crypto:
  master_key: deadbeef
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.Server.HTTPAddr)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Database.Path != "/tmp/gateway.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Crypto.MasterKeyHex != "deadbeef" {
		t.Errorf("Crypto.MasterKeyHex = %q", cfg.Crypto.MasterKeyHex)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_GATEWAY_HTTP_ADDR", ":9090")
	path := writeConfig(t, `
server:
  http_addr: "${TEST_GATEWAY_HTTP_ADDR}"
database:
  path: /tmp/gateway.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090 from env expansion", cfg.Server.HTTPAddr)
	}
}

func TestLoad_EnvOverridesTakePrecedenceOverFile(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "fromenv")
	t.Setenv("GATEWAY_DB_PATH", "/from/env.db")
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: /from/file.db
crypto:
  master_key: fromfile
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crypto.MasterKeyHex != "fromenv" {
		t.Errorf("Crypto.MasterKeyHex = %q, want env override to win", cfg.Crypto.MasterKeyHex)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want env override to win", cfg.Database.Path)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: /tmp/gateway.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("default RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Server.ShutdownGracePeriod != 10*time.Second {
		t.Errorf("default ShutdownGracePeriod = %v, want 10s", cfg.Server.ShutdownGracePeriod)
	}
	if cfg.Quota.UsageQueueBufferSize != 1024 {
		t.Errorf("default UsageQueueBufferSize = %d, want 1024", cfg.Quota.UsageQueueBufferSize)
	}
	if cfg.Quota.UsageQueueWorkers != 4 {
		t.Errorf("default UsageQueueWorkers = %d, want 4", cfg.Quota.UsageQueueWorkers)
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with a missing file should return an error")
	}
}

func TestValidate_RequiresHTTPAddr(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Path: "/tmp/gateway.db"}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() without server.http_addr should fail")
	}
}

func TestValidate_RequiresDatabasePath(t *testing.T) {
	cfg := &Config{Server: ServerConfig{HTTPAddr: ":8080"}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() without database.path should fail")
	}
}
