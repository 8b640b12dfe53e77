package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDir_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")

	cfg, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.PlacesAPIKey != "test-key" {
		t.Errorf("PlacesAPIKey = %q", cfg.PlacesAPIKey)
	}
	if cfg.PlacesRadius != 3000 {
		t.Errorf("PlacesRadius = %d, want 3000", cfg.PlacesRadius)
	}
	if cfg.StorageBackend != "file" {
		t.Errorf("StorageBackend = %q, want file", cfg.StorageBackend)
	}
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Errorf("UpstreamTimeout = %v", cfg.UpstreamTimeout)
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		t.Errorf("RequestTimeout %v not above UpstreamTimeout %v", cfg.RequestTimeout, cfg.UpstreamTimeout)
	}
	if cfg.WeatherDebounce != 300*time.Millisecond {
		t.Errorf("WeatherDebounce = %v", cfg.WeatherDebounce)
	}
	if cfg.WeatherURL == "" || cfg.GeocodeURL == "" || cfg.PlacesURL == "" || cfg.IPLocateURL == "" {
		t.Errorf("upstream URL defaults missing: %+v", cfg)
	}
}

func TestLoadDir_FileOverrides(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")

	root := t.TempDir()
	writeConfig(t, root, "dev.yaml", `
server:
  port: "9090"
upstreams:
  weather_url: "http://localhost:9001/forecast"
  timeout: "2s"
places:
  radius: 1500
  categories: "catering.cafe,leisure.park"
storage:
  backend: "memory"
reliability:
  retry_max_attempts: 5
  rate_limit_rps: 10
weather:
  debounce: "50ms"
`)

	cfg, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.WeatherURL != "http://localhost:9001/forecast" {
		t.Errorf("WeatherURL = %q", cfg.WeatherURL)
	}
	if cfg.UpstreamTimeout != 2*time.Second {
		t.Errorf("UpstreamTimeout = %v", cfg.UpstreamTimeout)
	}
	if cfg.PlacesRadius != 1500 {
		t.Errorf("PlacesRadius = %d", cfg.PlacesRadius)
	}
	if cfg.PlacesCategories != "catering.cafe,leisure.park" {
		t.Errorf("PlacesCategories = %q", cfg.PlacesCategories)
	}
	if cfg.StorageBackend != "memory" {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d", cfg.RetryAttempts)
	}
	if cfg.RateLimitRPS != 10 {
		t.Errorf("RateLimitRPS = %d", cfg.RateLimitRPS)
	}
	if cfg.WeatherDebounce != 50*time.Millisecond {
		t.Errorf("WeatherDebounce = %v", cfg.WeatherDebounce)
	}
}

func TestLoadDir_EnvOverridesFile(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "")
	t.Setenv("STORAGE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "memcached-1:11211,memcached-2:11211")

	root := t.TempDir()
	writeConfig(t, root, "dev.yaml", `
storage:
  backend: "file"
`)

	cfg, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.StorageBackend != "memcached" {
		t.Errorf("StorageBackend = %q, want memcached", cfg.StorageBackend)
	}
	if cfg.MemcachedAddrs != "memcached-1:11211,memcached-2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
}

func TestLoadDir_APIKeyFromSecretsFile(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "")
	t.Setenv("ENV_NAME", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")

	root := t.TempDir()
	writeConfig(t, root, "secrets.yaml", `places_api_key: "from-secrets"`)

	cfg, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.PlacesAPIKey != "from-secrets" {
		t.Errorf("PlacesAPIKey = %q", cfg.PlacesAPIKey)
	}
}

func TestLoadDir_MissingAPIKey(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "")
	t.Setenv("ENV_NAME", "")

	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error when no API key is available")
	}
}

func TestLoadDir_BadBackendRejected(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "")
	t.Setenv("STORAGE_BACKEND", "redis")

	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestLoadDir_EnvNameSelectsFile(t *testing.T) {
	t.Setenv("GEOAPIFY_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "prod")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("MEMCACHED_ADDRS", "")

	root := t.TempDir()
	writeConfig(t, root, "prod.yaml", `
server:
  port: "80"
`)
	writeConfig(t, root, "dev.yaml", `
server:
  port: "8081"
`)

	cfg, err := LoadDir(root)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.ServerPort != "80" {
		t.Errorf("ServerPort = %q, want 80 from prod.yaml", cfg.ServerPort)
	}
}
