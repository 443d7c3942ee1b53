package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/soundalike/internal/validation"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "" {
		t.Errorf("BasePath = %q, want empty", cfg.Server.BasePath)
	}
	if cfg.Server.RequestsPerMinute != 60 {
		t.Errorf("RequestsPerMinute = %d, want 60", cfg.Server.RequestsPerMinute)
	}
	if cfg.Catalog.Market != "US" || cfg.Catalog.RequestTimeout != 10*time.Second {
		t.Errorf("catalog defaults = %+v", cfg.Catalog)
	}
	if cfg.Catalog.Breaker.FailureRatio != 0.6 || cfg.Catalog.Breaker.MinRequests != 10 {
		t.Errorf("breaker defaults = %+v", cfg.Catalog.Breaker)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
  base_path: /music/
catalog:
  client_id: file-id
  client_secret: file-secret
  market: GB
  request_timeout: 3s
  breaker:
    failure_ratio: 0.5
    min_requests: 4
    open_timeout: 1m
logging:
  level: debug
  format: text
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.BasePath != "/music" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Catalog.ClientID != "file-id" || cfg.Catalog.Market != "GB" {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Catalog.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.Catalog.RequestTimeout)
	}
	if cfg.Catalog.Breaker.OpenTimeout != time.Minute || cfg.Catalog.Breaker.MinRequests != 4 {
		t.Errorf("breaker = %+v", cfg.Catalog.Breaker)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9090
catalog:
  client_id: file-id
  client_secret: file-secret
`)
	t.Setenv("SA_PORT", "7000")
	t.Setenv("SA_BASE_PATH", "app")
	t.Setenv("SA_RATE_LIMIT", "0")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SA_MARKET", "de")
	t.Setenv("SA_CATALOG_TIMEOUT", "2500ms")
	t.Setenv("SA_LOG_LEVEL", "WARN")
	t.Setenv("SA_LOG_FILE", "/tmp/sa.log")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/app" {
		t.Errorf("BasePath = %q, want /app", cfg.Server.BasePath)
	}
	if cfg.Server.RequestsPerMinute != 0 {
		t.Errorf("RequestsPerMinute = %d, want 0", cfg.Server.RequestsPerMinute)
	}
	if cfg.Catalog.ClientID != "env-id" || cfg.Catalog.ClientSecret != "file-secret" {
		t.Errorf("credentials = %q/%q", cfg.Catalog.ClientID, cfg.Catalog.ClientSecret)
	}
	if cfg.Catalog.Market != "DE" {
		t.Errorf("Market = %q, want DE", cfg.Catalog.Market)
	}
	if cfg.Catalog.RequestTimeout != 2500*time.Millisecond {
		t.Errorf("RequestTimeout = %v", cfg.Catalog.RequestTimeout)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.FilePath != "/tmp/sa.log" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantField string
	}{
		{"missing client id", map[string]string{"SPOTIFY_CLIENT_SECRET": "s"}, "catalog.client_id"},
		{"missing client secret", map[string]string{"SPOTIFY_CLIENT_ID": "i"}, "catalog.client_secret"},
		{"bad port", map[string]string{"SPOTIFY_CLIENT_ID": "i", "SPOTIFY_CLIENT_SECRET": "s", "SA_PORT": "70000"}, "server.port"},
		{"bad level", map[string]string{"SPOTIFY_CLIENT_ID": "i", "SPOTIFY_CLIENT_SECRET": "s", "SA_LOG_LEVEL": "trace"}, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SPOTIFY_CLIENT_ID", "")
			t.Setenv("SPOTIFY_CLIENT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected validation errors, got %v", err)
			}
			if !verrs.Has(tt.wantField) {
				t.Errorf("errors %v do not mention %s", verrs, tt.wantField)
			}
		})
	}
}

func TestLoad_BadTimeout(t *testing.T) {
	setCredentials(t)
	t.Setenv("SA_CATALOG_TIMEOUT", "soon")
	if _, err := Load(""); err == nil {
		t.Error("expected an error for an unparseable timeout")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	setCredentials(t)
	path := writeFile(t, "server: [not, a, map")
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed yaml")
	}
}

func TestLoadLogging(t *testing.T) {
	path := writeFile(t, `
logging:
  level: error
  format: text
`)
	t.Setenv("SA_LOG_LEVEL", "")
	lc, err := LoadLogging(path)
	if err != nil {
		t.Fatalf("LoadLogging: %v", err)
	}
	if lc.Level != "error" || lc.Format != "text" {
		t.Errorf("logging = %+v", lc)
	}

	bad := writeFile(t, "logging:\n  format: xml\n")
	if _, err := LoadLogging(bad); err == nil {
		t.Error("expected validation error for unknown format")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SA_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SA_TEST_DOTENV", "")
	os.Unsetenv("SA_TEST_DOTENV") //nolint:errcheck
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SA_TEST_DOTENV"); got != "from-file" {
		t.Errorf("SA_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("SA_CONFIG_PATH", "")
	if Path() != DefaultPath {
		t.Errorf("Path() = %q, want %q", Path(), DefaultPath)
	}
	t.Setenv("SA_CONFIG_PATH", "/etc/sa.yaml")
	if Path() != "/etc/sa.yaml" {
		t.Errorf("Path() = %q", Path())
	}
}
