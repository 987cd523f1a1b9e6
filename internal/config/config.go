package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Retry    RetryConfig    `yaml:"retry"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type DatabaseConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver         string `yaml:"driver"`
	URL            string `yaml:"url"`
	MigrationsPath string `yaml:"migrations_path"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type AuthConfig struct {
	AdminEmails        []string      `yaml:"admin_emails"`
	SessionLifetime    time.Duration `yaml:"session_lifetime"`
	DiscordKey         string        `yaml:"discord_key"`
	DiscordSecret      string        `yaml:"discord_secret"`
	DiscordCallbackURL string        `yaml:"discord_callback_url"`
	GoogleKey          string        `yaml:"google_key"`
	GoogleSecret       string        `yaml:"google_secret"`
	GoogleCallbackURL  string        `yaml:"google_callback_url"`
}

// TracingConfig controls span export. An empty Endpoint keeps tracing in process.
type TracingConfig struct {
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type RetryConfig struct {
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			URL:    "op_tournament.db?_journal_mode=WAL&_txlock=immediate&_foreign_keys=1&_busy_timeout=5000",
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Auth: AuthConfig{
			SessionLifetime: 24 * time.Hour,
		},
		Retry: RetryConfig{
			MaxRetries:      5,
			InitialInterval: 25 * time.Millisecond,
			MaxInterval:     time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "op-tournament",
			SampleRatio: 1,
		},
	}
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE, then
// environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.MigrationsPath, "MIGRATIONS_PATH")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setList(&c.HTTP.AllowedOrigins, "ALLOWED_ORIGINS")
	setList(&c.Auth.AdminEmails, "ADMIN_EMAILS")
	setString(&c.Auth.DiscordKey, "DISCORD_KEY")
	setString(&c.Auth.DiscordSecret, "DISCORD_SECRET")
	setString(&c.Auth.DiscordCallbackURL, "DISCORD_CALLBACK_URL")
	setString(&c.Auth.GoogleKey, "GOOGLE_KEY")
	setString(&c.Auth.GoogleSecret, "GOOGLE_SECRET")
	setString(&c.Auth.GoogleCallbackURL, "GOOGLE_CALLBACK_URL")

	if err := setDuration(&c.Auth.SessionLifetime, "SESSION_LIFETIME"); err != nil {
		return err
	}
	if err := setDuration(&c.Retry.InitialInterval, "TX_RETRY_INITIAL_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.Retry.MaxInterval, "TX_RETRY_MAX_INTERVAL"); err != nil {
		return err
	}
	setString(&c.Tracing.ServiceName, "SERVICE_NAME")
	setString(&c.Tracing.Endpoint, "TRACING_ENDPOINT")
	if v := os.Getenv("TRACING_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRACING_INSECURE: %w", err)
		}
		c.Tracing.Insecure = b
	}
	if v := os.Getenv("TRACING_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TRACING_SAMPLE_RATIO: %w", err)
		}
		c.Tracing.SampleRatio = r
	}
	if v := os.Getenv("TX_MAX_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TX_MAX_RETRIES: %w", err)
		}
		c.Retry.MaxRetries = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is not set")
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("invalid transaction retry intervals %s..%s", c.Retry.InitialInterval, c.Retry.MaxInterval)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

// Migrations returns the migration source URL for the configured driver.
func (c *Config) Migrations() string {
	if c.Database.MigrationsPath != "" {
		return c.Database.MigrationsPath
	}
	return "file://migrations/" + c.Database.Driver
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
