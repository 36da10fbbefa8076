package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level" envconfig:"LOG_LEVEL" default:"info"`
	Bot      BotConfig      `yaml:"bot"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Extract  ExtractConfig  `yaml:"extract"`
	Download DownloadConfig `yaml:"download"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string `yaml:"token" envconfig:"BOT_TOKEN"`
	PollTimeout int    `yaml:"poll_timeout" envconfig:"BOT_POLL_TIMEOUT" default:"60"`
	Debug       bool   `yaml:"debug" envconfig:"BOT_DEBUG" default:"false"`
	Handle      string `yaml:"handle" envconfig:"BOT_HANDLE" default:"@KuaishouDownloaderBot"`
}

// ServerConfig holds the health HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	// APIKey, when set, locks the stats route behind X-API-Key. The identity
	// and liveness routes always stay open for keep-alive pings.
	APIKey string `yaml:"api_key" envconfig:"SERVER_API_KEY"`
}

// StorageConfig holds scratch-directory configuration.
type StorageConfig struct {
	// DownloadsRoot contains one subdirectory per in-flight request.
	DownloadsRoot string `yaml:"downloads_root" envconfig:"DOWNLOADS_ROOT" default:"downloads"`
	// MaxFileSize caps deliverable media. Telegram bots reject uploads above 50MB.
	MaxFileSize int64 `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE" default:"52428800"`
	// MinFreeSpace aborts new downloads when the disk is nearly full.
	MinFreeSpace  int64         `yaml:"min_free_space" envconfig:"MIN_FREE_SPACE" default:"104857600"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"30m"`
	// SweepMaxAge must stay far above any realistic request duration; the
	// sweep relies on it to avoid touching in-flight directories.
	SweepMaxAge time.Duration `yaml:"sweep_max_age" envconfig:"SWEEP_MAX_AGE" default:"1h"`
}

// ExtractConfig holds the strategy-chain retry policy.
type ExtractConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" envconfig:"EXTRACT_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" envconfig:"EXTRACT_INITIAL_BACKOFF" default:"2s"`
	MaxBackoff     time.Duration `yaml:"max_backoff" envconfig:"EXTRACT_MAX_BACKOFF" default:"30s"`
	BackoffFactor  float64       `yaml:"backoff_factor" envconfig:"EXTRACT_BACKOFF_FACTOR" default:"2.0"`
	// FallbackAttempt is the zero-based attempt index on which the generic
	// yt-dlp fallback additionally runs.
	FallbackAttempt int           `yaml:"fallback_attempt" envconfig:"EXTRACT_FALLBACK_ATTEMPT" default:"1"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"EXTRACT_TIMEOUT" default:"30s"`
	YtDlpPath       string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	YtDlpEnabled    bool          `yaml:"ytdlp_enabled" envconfig:"YTDLP_ENABLED" default:"true"`
}

// DownloadConfig holds media fetch configuration.
type DownloadConfig struct {
	Timeout time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
	// ReadTimeout is the longest pause tolerated between reads before the
	// stream counts as stalled.
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT" default:"30s"`
	// UserAgents is the spoofing pool; requests rotate through it. Empty
	// means the built-in browser profiles.
	UserAgents []string `yaml:"user_agents" envconfig:"DOWNLOAD_USER_AGENTS"`
	Referer    string   `yaml:"referer" envconfig:"DOWNLOAD_REFERER" default:"https://www.kuaishou.com/"`
	Origin     string   `yaml:"origin" envconfig:"DOWNLOAD_ORIGIN" default:"https://www.kuaishou.com"`
}

// defaultUserAgents mirrors current desktop and mobile browser signatures.
// The upstream CDN rejects default Go client signatures outright.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.6045.163 Mobile Safari/537.36",
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if len(cfg.Download.UserAgents) == 0 {
		cfg.Download.UserAgents = defaultUserAgents
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Storage.DownloadsRoot == "" {
		return fmt.Errorf("DOWNLOADS_ROOT is required")
	}
	if c.Extract.MaxAttempts < 1 {
		return fmt.Errorf("EXTRACT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Extract.FallbackAttempt < 0 {
		return fmt.Errorf("EXTRACT_FALLBACK_ATTEMPT must not be negative")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
