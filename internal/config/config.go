package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	GeocodeURL string
	PlacesURL  string
	WeatherURL string
	IPLocateURL string

	PlacesAPIKey    string
	PlacesRadius    int
	PlacesLimit     int
	PlacesCategories string

	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration

	StorageBackend string // "memory", "file" or "memcached"
	StoragePath    string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	WeatherDebounce time.Duration

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Upstreams struct {
		GeocodeURL  string `yaml:"geocode_url"`
		PlacesURL   string `yaml:"places_url"`
		WeatherURL  string `yaml:"weather_url"`
		IPLocateURL string `yaml:"ip_locate_url"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"upstreams"`

	Places struct {
		Radius     int    `yaml:"radius"`
		Limit      int    `yaml:"limit"`
		Categories string `yaml:"categories"`
	} `yaml:"places"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Storage struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"storage"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerSuccessThreshold int    `yaml:"breaker_success_threshold"`
		BreakerTimeout          string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	Weather struct {
		Debounce string `yaml:"debounce"`
	} `yaml:"weather"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	PlacesAPIKey string `yaml:"places_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml relative to the working directory. A missing config
// file is not an error; defaults apply. The places API key comes from
// GEOAPIFY_API_KEY env or the secrets file and is required.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(cwd)
}

// LoadDir is Load with an explicit project root.
func LoadDir(root string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.PlacesAPIKey = os.Getenv("GEOAPIFY_API_KEY")
	if cfg.PlacesAPIKey == "" {
		secretsPath := filepath.Join(root, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.PlacesAPIKey = sec.PlacesAPIKey
		}
	}
	if cfg.PlacesAPIKey == "" {
		return nil, fmt.Errorf("GEOAPIFY_API_KEY required (set env or config/secrets.yaml places_api_key)")
	}

	cfg.GeocodeURL = fc.Upstreams.GeocodeURL
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"
	}
	cfg.PlacesURL = fc.Upstreams.PlacesURL
	if cfg.PlacesURL == "" {
		cfg.PlacesURL = "https://api.geoapify.com/v2/places"
	}
	cfg.WeatherURL = fc.Upstreams.WeatherURL
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.IPLocateURL = fc.Upstreams.IPLocateURL
	if cfg.IPLocateURL == "" {
		cfg.IPLocateURL = "https://ipapi.co/json"
	}
	cfg.UpstreamTimeout = parseDuration(fc.Upstreams.Timeout, 5*time.Second)

	cfg.PlacesRadius = fc.Places.Radius
	if cfg.PlacesRadius <= 0 {
		cfg.PlacesRadius = 3000
	}
	cfg.PlacesLimit = fc.Places.Limit
	if cfg.PlacesLimit <= 0 {
		cfg.PlacesLimit = 20
	}
	cfg.PlacesCategories = strings.TrimSpace(fc.Places.Categories)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.StorageBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_BACKEND")))
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = strings.TrimSpace(strings.ToLower(fc.Storage.Backend))
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "file"
	}
	cfg.StoragePath = fc.Storage.Path
	if cfg.StoragePath == "" {
		cfg.StoragePath = filepath.Join(root, "wander-state.json")
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Storage.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Storage.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Storage.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.BreakerFailureThreshold = fc.Reliability.BreakerFailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerSuccessThreshold = fc.Reliability.BreakerSuccessThreshold
	if cfg.BreakerSuccessThreshold <= 0 {
		cfg.BreakerSuccessThreshold = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 30*time.Second)

	cfg.WeatherDebounce = parseDuration(fc.Weather.Debounce, 300*time.Millisecond)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is lifted above
// UpstreamTimeout so the outer handler never cuts off an in-budget upstream
// call.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	switch cfg.StorageBackend {
	case "memory", "file", "memcached":
		// valid
	default:
		return fmt.Errorf("storage.backend must be memory, file or memcached, got %q", cfg.StorageBackend)
	}
	return nil
}
