package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nachoal/planchat-go/history"
)

// Viper keys
const (
	KeyConfigFile        = "config"
	KeyBackendURL        = "backend.url"
	KeyBackendDialTO     = "backend.dial_timeout"
	KeyBackendPing       = "backend.ping_interval"
	KeyHistoryBackend    = "history.backend"
	KeyHistoryDir        = "history.dir"
	KeyLogLevel          = "log.level"
	KeyLogPretty         = "log.pretty"
	KeyLogFile           = "log.file"
	KeySuggestions       = "suggestions"
	KeyMockAddr          = "mock.addr"
	KeyMockChunkDelay    = "mock.chunk_delay"
	envPrefix            = "PLANCHAT"
	dirName              = ".planchat"
	defaultBackendURL    = "ws://localhost:8089/ws"
	defaultMockAddr      = ":8089"
	defaultMockChunkWait = 40 * time.Millisecond
)

// DefaultSuggestions are shown on an empty conversation
var DefaultSuggestions = []string{
	"Draft a 30-day onboarding plan for a new enterprise account",
	"What should a pilot proposal for a 200-seat team include?",
	"Summarize the open risks on my top three deals",
	"Plan a quarterly business review agenda",
}

// Config represents the application configuration
type Config struct {
	Backend     BackendConfig `mapstructure:"backend"`
	History     HistoryConfig `mapstructure:"history"`
	Log         LogConfig     `mapstructure:"log"`
	Suggestions []string      `mapstructure:"suggestions"`
	Mock        MockConfig    `mapstructure:"mock"`
}

type BackendConfig struct {
	URL          string        `mapstructure:"url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

type MockConfig struct {
	Addr       string        `mapstructure:"addr"`
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
}

// Dir returns ~/.planchat
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, dirName), nil
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper, dir string) {
	v.SetDefault(KeyBackendURL, defaultBackendURL)
	v.SetDefault(KeyBackendDialTO, 10*time.Second)
	v.SetDefault(KeyBackendPing, 30*time.Second)
	v.SetDefault(KeyHistoryBackend, history.BackendFile)
	v.SetDefault(KeyHistoryDir, dir)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogPretty, true)
	v.SetDefault(KeyLogFile, filepath.Join(dir, "planchat.log"))
	v.SetDefault(KeySuggestions, DefaultSuggestions)
	v.SetDefault(KeyMockAddr, defaultMockAddr)
	v.SetDefault(KeyMockChunkDelay, defaultMockChunkWait)
}

// Load resolves the configuration from flags bound on v, PLANCHAT_* env
// vars, the config file and defaults, in that order.
func Load(v *viper.Viper) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	SetDefaults(v, dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.History.Dir = expandHome(cfg.History.Dir)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.History.Backend = strings.ToLower(cfg.History.Backend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at dial or open time
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", KeyBackendURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid %s %q: scheme must be ws or wss", KeyBackendURL, c.Backend.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", KeyBackendURL, c.Backend.URL)
	}

	switch c.History.Backend {
	case history.BackendFile, history.BackendSQLite:
	default:
		return fmt.Errorf("invalid %s %q: want %s or %s",
			KeyHistoryBackend, c.History.Backend, history.BackendFile, history.BackendSQLite)
	}
	if c.History.Dir == "" {
		return fmt.Errorf("%s must not be empty", KeyHistoryDir)
	}

	durations := map[string]time.Duration{
		KeyBackendDialTO:  c.Backend.DialTimeout,
		KeyBackendPing:    c.Backend.PingInterval,
		KeyMockChunkDelay: c.Mock.ChunkDelay,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("invalid %s %s: must not be negative", key, d)
		}
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
