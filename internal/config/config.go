package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// NOTE: the YAML file is the primary source. Environment variables
// (DAYBOOK_<NAME>, or the bare name such as DATABASE_URL) override it after
// loading.

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "DAYBOOK"

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" envconfig:"LISTEN"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" envconfig:"LOG_LEVEL"`

	// DataDir holds users.json and schedules/ when DatabaseURL is empty.
	DataDir string `yaml:"data_dir" json:"data_dir" envconfig:"DATA_DIR"`

	// DatabaseURL selects the storage backend by scheme:
	//   - ""                       JSON files under DataDir
	//   - sqlite:///path/to/db     embedded SQLite
	//   - postgres://...           PostgreSQL
	DatabaseURL string `yaml:"database_url" json:"database_url" envconfig:"DATABASE_URL"`

	// RedisAddr, if set, stores login sessions in Redis instead of memory.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr" envconfig:"REDIS_ADDR"`

	// AMQPURL, if set, publishes event change notifications to RabbitMQ.
	AMQPURL string `yaml:"amqp_url" json:"amqp_url" envconfig:"AMQP_URL"`

	// AdminUsername is the account allowed to use the admin API.
	AdminUsername string `yaml:"admin_username" json:"admin_username" envconfig:"ADMIN_USERNAME"`

	// PasswordIterations is the PBKDF2 iteration count for new hashes.
	PasswordIterations int `yaml:"password_iterations" json:"password_iterations" envconfig:"PASSWORD_ITERATIONS"`

	// SessionTTLHours bounds how long a login session stays valid.
	SessionTTLHours int `yaml:"session_ttl_hours" json:"session_ttl_hours" envconfig:"SESSION_TTL_HOURS"`

	// CookieSecure marks the session cookie Secure (HTTPS only).
	CookieSecure bool `yaml:"cookie_secure" json:"cookie_secure" envconfig:"COOKIE_SECURE"`

	// SlotWindowStart / SlotWindowEnd are the default HH:MM search window
	// for find-and-book requests that do not name one.
	SlotWindowStart string `yaml:"slot_window_start" json:"slot_window_start" envconfig:"SLOT_WINDOW_START"`
	SlotWindowEnd   string `yaml:"slot_window_end" json:"slot_window_end" envconfig:"SLOT_WINDOW_END"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:5000",
		LogLevel:           "info",
		DataDir:            "./data",
		AdminUsername:      "admin",
		PasswordIterations: 260000,
		SessionTTLHours:    24 * 7,
		SlotWindowStart:    "09:00",
		SlotWindowEnd:      "18:00",
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = d.LogLevel
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.AdminUsername == "" {
		c.AdminUsername = d.AdminUsername
	}
	if c.PasswordIterations <= 0 {
		c.PasswordIterations = d.PasswordIterations
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = d.SessionTTLHours
	}
	if c.SlotWindowStart == "" {
		c.SlotWindowStart = d.SlotWindowStart
	}
	if c.SlotWindowEnd == "" {
		c.SlotWindowEnd = d.SlotWindowEnd
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there (0600)
//     and used.
//   - Environment overrides are applied last, then defaults are normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daybook-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
