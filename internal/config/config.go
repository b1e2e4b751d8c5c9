package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/mastodon2memos/internal/memos"
	"github.com/ppiankov/mastodon2memos/internal/privacy"
	"github.com/ppiankov/mastodon2memos/internal/relay"
)

const (
	DefaultConfigDir         = ".mastodon2memos"
	DefaultConfigFile        = "config.yaml"
	DefaultEnvFile           = ".env"
	DefaultStoragePath       = ".mastodon2memos/relay.db"
	DefaultRetainDays        = 90
	DefaultTriggerTag        = relay.DefaultTriggerTag
	DefaultPageSize          = relay.DefaultPageSize
	DefaultInterval          = relay.DefaultInterval
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRateLimitCooldown = relay.DefaultRateLimitCooldown

	DefaultSourceURLEnv   = "MASTODON_URL"
	DefaultSourceTokenEnv = "MASTODON_TOKEN"
	DefaultSinkURLEnv     = "MEMOS_URL"
	DefaultSinkTokenEnv   = "MEMOS_TOKEN"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Sink    SinkConfig    `yaml:"sink"`
	Relay   RelayConfig   `yaml:"relay"`
	Storage StorageConfig `yaml:"storage"`
	Privacy PrivacyConfig `yaml:"privacy"`
}

type SourceConfig struct {
	URLEnv     string `yaml:"url_env"`
	TokenEnv   string `yaml:"token_env"`
	TriggerTag string `yaml:"trigger_tag"`
	PageSize   int    `yaml:"page_size"`

	// Resolved from env vars at load time.
	URL   string `yaml:"-"`
	Token string `yaml:"-"`
}

type SinkConfig struct {
	URLEnv     string `yaml:"url_env"`
	TokenEnv   string `yaml:"token_env"`
	Visibility string `yaml:"visibility"`

	// Resolved from env vars at load time.
	URL   string `yaml:"-"`
	Token string `yaml:"-"`
}

type RelayConfig struct {
	Interval          Duration `yaml:"interval"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	RateLimitCooldown Duration `yaml:"rate_limit_cooldown"`
	// Tags are appended to every note before the author tag. Nil keeps the
	// relay defaults, an empty list disables them.
	Tags []string `yaml:"tags"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
	Disabled   bool   `yaml:"disabled"`
}

type PrivacyConfig struct {
	Redact RedactConfig `yaml:"redact"`
}

// RedactConfig lists regex patterns scrubbed from journal errors and logs.
// Access tokens are always scrubbed.
type RedactConfig struct {
	Patterns []string `yaml:"patterns"`
}

// Redactor scrubs the access tokens and the configured patterns.
func (c *Config) Redactor() (*privacy.Redactor, error) {
	return privacy.New(c.Privacy.Redact.Patterns, c.Source.Token, c.Sink.Token)
}

// JournalPath returns the journal database path, or "" when journaling is off.
func (s StorageConfig) JournalPath() string {
	if s.Disabled {
		return ""
	}
	return s.Path
}

// Load reads the optional config.yaml from dir, loads .env files, applies
// defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	cfg, err := Parse(dir)
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(DefaultEnvFile, filepath.Join(dir, DefaultEnvFile)); err != nil {
		return nil, err
	}
	resolveEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Parse reads the optional config.yaml from dir and applies defaults. It does
// not touch credentials, so commands that only read the journal can use it.
func Parse(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	var cfg Config
	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// config.yaml only holds tunables; env alone is enough to run.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// loadDotEnv loads each existing file without overriding variables that are
// already set. Earlier files win over later ones.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err == nil {
			if seen[abs] {
				continue
			}
			seen[abs] = true
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.URLEnv == "" {
		cfg.Source.URLEnv = DefaultSourceURLEnv
	}
	if cfg.Source.TokenEnv == "" {
		cfg.Source.TokenEnv = DefaultSourceTokenEnv
	}
	if cfg.Source.TriggerTag == "" {
		cfg.Source.TriggerTag = DefaultTriggerTag
	}
	if cfg.Source.PageSize == 0 {
		cfg.Source.PageSize = DefaultPageSize
	}
	if cfg.Sink.URLEnv == "" {
		cfg.Sink.URLEnv = DefaultSinkURLEnv
	}
	if cfg.Sink.TokenEnv == "" {
		cfg.Sink.TokenEnv = DefaultSinkTokenEnv
	}
	if cfg.Sink.Visibility == "" {
		cfg.Sink.Visibility = string(memos.Private)
	}
	if cfg.Relay.Interval.Duration == 0 {
		cfg.Relay.Interval.Duration = DefaultInterval
	}
	if cfg.Relay.RequestTimeout.Duration == 0 {
		cfg.Relay.RequestTimeout.Duration = DefaultRequestTimeout
	}
	if cfg.Relay.RateLimitCooldown.Duration == 0 {
		cfg.Relay.RateLimitCooldown.Duration = DefaultRateLimitCooldown
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
}

func resolveEnv(cfg *Config) {
	cfg.Source.URL = strings.TrimSpace(os.Getenv(cfg.Source.URLEnv))
	cfg.Source.Token = strings.TrimSpace(os.Getenv(cfg.Source.TokenEnv))
	cfg.Sink.URL = strings.TrimSpace(os.Getenv(cfg.Sink.URLEnv))
	cfg.Sink.Token = strings.TrimSpace(os.Getenv(cfg.Sink.TokenEnv))
}

func validate(cfg *Config) error {
	var missing []string
	for _, v := range []struct{ name, value string }{
		{cfg.Source.URLEnv, cfg.Source.URL},
		{cfg.Source.TokenEnv, cfg.Source.Token},
		{cfg.Sink.URLEnv, cfg.Sink.URL},
		{cfg.Sink.TokenEnv, cfg.Sink.Token},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	if err := validateURL(cfg.Source.URLEnv, cfg.Source.URL); err != nil {
		return err
	}
	if err := validateURL(cfg.Sink.URLEnv, cfg.Sink.URL); err != nil {
		return err
	}

	if cfg.Source.PageSize < 1 || cfg.Source.PageSize > 40 {
		return fmt.Errorf("source.page_size: %d out of range (1-40)", cfg.Source.PageSize)
	}

	v, err := memos.ParseVisibility(cfg.Sink.Visibility)
	if err != nil {
		return fmt.Errorf("sink.visibility: %w", err)
	}
	cfg.Sink.Visibility = string(v)

	if cfg.Relay.Interval.Duration < 0 {
		return fmt.Errorf("relay.interval: must be positive, got %v", cfg.Relay.Interval.Duration)
	}
	if cfg.Relay.RequestTimeout.Duration < 0 {
		return fmt.Errorf("relay.request_timeout: must be positive, got %v", cfg.Relay.RequestTimeout.Duration)
	}
	if cfg.Relay.RateLimitCooldown.Duration < 0 {
		return fmt.Errorf("relay.rate_limit_cooldown: must be positive, got %v", cfg.Relay.RateLimitCooldown.Duration)
	}
	if cfg.Storage.RetainDays < 0 {
		return fmt.Errorf("storage.retain_days: must not be negative, got %d", cfg.Storage.RetainDays)
	}

	if _, err := privacy.New(cfg.Privacy.Redact.Patterns); err != nil {
		return fmt.Errorf("privacy.redact: %w", err)
	}

	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an http(s) URL", name, raw)
	}
	return nil
}
