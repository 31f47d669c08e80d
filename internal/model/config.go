package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIConfig holds the REST client settings.
type APIConfig struct {
	// BaseURL is the HTTP root of the backend. The push channel URL is
	// derived from it by protocol substitution.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every call, including refresh calls.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxAuthRetries is how many times one call may be re-issued after a
	// token refresh before the session is declared expired.
	MaxAuthRetries int `mapstructure:"max_auth_retries" yaml:"max_auth_retries"`

	// ExpiredSignatures are lower-case fragments of 401 messages that mean
	// "the access token is stale" rather than "you may not do this".
	ExpiredSignatures []string `mapstructure:"expired_signatures" yaml:"expired_signatures"`
}

// PushConfig holds the notification push channel settings.
type PushConfig struct {
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	BaseDelayMs          int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMs           int `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	LivenessIntervalSec  int `mapstructure:"liveness_interval_sec" yaml:"liveness_interval_sec"`
	HandshakeTimeoutSec  int `mapstructure:"handshake_timeout_sec" yaml:"handshake_timeout_sec"`
}

// PollConfig holds the background pull settings.
type PollConfig struct {
	NotificationsIntervalSec int `mapstructure:"notifications_interval_sec" yaml:"notifications_interval_sec"`
	BoardIntervalSec         int `mapstructure:"board_interval_sec" yaml:"board_interval_sec"`
	PageSize                 int `mapstructure:"page_size" yaml:"page_size"`
}

// LogConfig selects the zap level and encoder. File, when set, receives
// the log instead of stderr; the live view needs this to keep its screen.
type LogConfig struct {
	Level    string `mapstructure:"level" yaml:"level"`
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
	File     string `mapstructure:"file" yaml:"file"`
}

// StorageConfig locates the local cache and the file keyring fallback.
type StorageConfig struct {
	CachePath      string `mapstructure:"cache_path" yaml:"cache_path"`
	CredentialsDir string `mapstructure:"credentials_dir" yaml:"credentials_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Push    PushConfig    `mapstructure:"push" yaml:"push"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// DefaultExpiredSignatures are the 401 messages the backend produces for a
// stale or unreadable access token.
var DefaultExpiredSignatures = []string{
	"token has expired",
	"token expired",
	"invalid token",
	"session expired",
	"authentication required",
	"not authenticated",
}

// Timeout returns the per-call timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// WebSocketURL derives the push channel base from BaseURL:
// http becomes ws and https becomes wss.
func (c APIConfig) WebSocketURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if strings.HasPrefix(base, "http") {
		return "ws" + strings.TrimPrefix(base, "http")
	}
	return base
}

// BaseDelay returns the first reconnect delay unit.
func (c PushConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the reconnect delay cap.
func (c PushConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// LivenessInterval returns the credential/connection drift check period.
func (c PushConfig) LivenessInterval() time.Duration {
	return time.Duration(c.LivenessIntervalSec) * time.Second
}

// HandshakeTimeout bounds a single dial.
func (c PushConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/collabtask/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "collabtask")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:           "http://localhost:8000",
			TimeoutSec:        30,
			MaxAuthRetries:    3,
			ExpiredSignatures: append([]string(nil), DefaultExpiredSignatures...),
		},
		Push: PushConfig{
			MaxReconnectAttempts: 5,
			BaseDelayMs:          1000,
			MaxDelayMs:           30000,
			LivenessIntervalSec:  5,
			HandshakeTimeoutSec:  10,
		},
		Poll: PollConfig{
			NotificationsIntervalSec: 60,
			BoardIntervalSec:         30,
			PageSize:                 50,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			File:     filepath.Join(dir, "collabtask.log"),
		},
		Storage: StorageConfig{
			CachePath:      filepath.Join(dir, "cache.db"),
			CredentialsDir: filepath.Join(dir, "credentials"),
		},
	}
}

// setDefaults mirrors DefaultAppConfig into v so missing keys resolve and
// environment overrides are discoverable by Unmarshal.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_auth_retries", d.API.MaxAuthRetries)
	v.SetDefault("api.expired_signatures", d.API.ExpiredSignatures)
	v.SetDefault("push.max_reconnect_attempts", d.Push.MaxReconnectAttempts)
	v.SetDefault("push.base_delay_ms", d.Push.BaseDelayMs)
	v.SetDefault("push.max_delay_ms", d.Push.MaxDelayMs)
	v.SetDefault("push.liveness_interval_sec", d.Push.LivenessIntervalSec)
	v.SetDefault("push.handshake_timeout_sec", d.Push.HandshakeTimeoutSec)
	v.SetDefault("poll.notifications_interval_sec", d.Poll.NotificationsIntervalSec)
	v.SetDefault("poll.board_interval_sec", d.Poll.BoardIntervalSec)
	v.SetDefault("poll.page_size", d.Poll.PageSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("storage.cache_path", d.Storage.CachePath)
	v.SetDefault("storage.credentials_dir", d.Storage.CredentialsDir)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first; the backend URL
// honours NEXT_PUBLIC_API_BASE_URL and every key can be overridden with a
// COLLABTASK_ variable (COLLABTASK_API_TIMEOUT_SEC, ...). If the file does
// not exist, defaults plus environment apply.
func LoadConfig(path string) (*AppConfig, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COLLABTASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", "COLLABTASK_API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"); err != nil {
		return nil, fmt.Errorf("binding api.base_url: %w", err)
	}

	setDefaults(v, DefaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		_, missing := err.(viper.ConfigFileNotFoundError)
		if _, ok := err.(*os.PathError); !ok && !missing {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the client cannot run with.
func (c *AppConfig) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") &&
		!strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSec <= 0 {
		return fmt.Errorf("api.timeout_sec must be positive")
	}
	if c.API.MaxAuthRetries < 0 {
		return fmt.Errorf("api.max_auth_retries must not be negative")
	}
	if c.Push.MaxReconnectAttempts < 0 {
		return fmt.Errorf("push.max_reconnect_attempts must not be negative")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("push", cfg.Push)
	v.Set("poll", cfg.Poll)
	v.Set("log", cfg.Log)
	v.Set("storage", cfg.Storage)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
