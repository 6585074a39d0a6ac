package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or an env-file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	Transport  TransportConfig
	Token      TokenConfig
	Summarizer SummarizerConfig
	DB         DBConfig
	Redis      RedisConfig
	Rooms      RoomsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// TransportConfig points at the media platform's room service. When URL is
// empty the process runs against the in-memory fake, which is only
// acceptable outside production.
type TransportConfig struct {
	URL       string
	APIKey    string
	APISecret string
	Timeout   time.Duration

	RetryAttempts int
	RetryBackoff  time.Duration

	// HoldMediaURL is optional; empty uses the platform default.
	HoldMediaURL string
}

type TokenConfig struct {
	// Secret signs room access tokens. Shared with the media platform.
	Secret string

	// ServerURL is the websocket endpoint clients connect to.
	ServerURL string

	TTL time.Duration
}

type SummarizerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DBConfig is optional: without a host, transfer history is kept in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional: without a host, transcripts are kept in memory.
type RedisConfig struct {
	Host string
	Port int

	// TranscriptTTL bounds how long call transcripts are retained.
	TranscriptTTL time.Duration
}

type RoomsConfig struct {
	// MaxAge marks rooms idle longer than this as inactive.
	MaxAge time.Duration

	// CleanupInterval is how often the reaper runs.
	CleanupInterval time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Transport.URL = strings.TrimSpace(os.Getenv("TRANSPORT_URL"))
	c.Transport.APIKey = strings.TrimSpace(os.Getenv("TRANSPORT_API_KEY"))
	c.Transport.APISecret = os.Getenv("TRANSPORT_API_SECRET")
	c.Transport.Timeout = optDuration("TRANSPORT_TIMEOUT")
	c.Transport.RetryAttempts = optInt("TRANSPORT_RETRY_ATTEMPTS")
	c.Transport.RetryBackoff = optDuration("TRANSPORT_RETRY_BACKOFF")
	c.Transport.HoldMediaURL = strings.TrimSpace(os.Getenv("HOLD_MEDIA_URL"))

	c.Token.Secret = os.Getenv("TOKEN_SECRET")
	c.Token.ServerURL = strings.TrimSpace(os.Getenv("TOKEN_SERVER_URL"))
	c.Token.TTL = optDuration("TOKEN_TTL")

	c.Summarizer.APIKey = os.Getenv("SUMMARIZER_API_KEY")
	c.Summarizer.BaseURL = strings.TrimSpace(os.Getenv("SUMMARIZER_BASE_URL"))
	c.Summarizer.Model = strings.TrimSpace(os.Getenv("SUMMARIZER_MODEL"))
	c.Summarizer.Timeout = optDuration("SUMMARIZER_TIMEOUT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optInt("DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT")
	c.Redis.TranscriptTTL = optDuration("TRANSCRIPT_TTL")

	c.Rooms.MaxAge = optDuration("ROOM_MAX_AGE")
	c.Rooms.CleanupInterval = optDuration("ROOM_CLEANUP_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Transport.URL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("TRANSPORT_URL is required in production"))
		}
		// Local runs fall back to the in-memory fake provider.
	} else {
		if c.Transport.APIKey == "" {
			errs = append(errs, errors.New("TRANSPORT_API_KEY is required when TRANSPORT_URL is set"))
		}
		if c.Transport.APISecret == "" {
			errs = append(errs, errors.New("TRANSPORT_API_SECRET is required when TRANSPORT_URL is set"))
		}
	}
	if c.Transport.Timeout <= 0 {
		c.Transport.Timeout = 5 * time.Second
	}
	if c.Transport.RetryAttempts <= 0 {
		c.Transport.RetryAttempts = 3
	}
	if c.Transport.RetryBackoff <= 0 {
		c.Transport.RetryBackoff = 200 * time.Millisecond
	}

	if c.Token.Secret == "" {
		errs = append(errs, errors.New("TOKEN_SECRET is required"))
	}
	if c.Token.ServerURL == "" {
		errs = append(errs, errors.New("TOKEN_SERVER_URL is required"))
	}
	if c.Token.TTL <= 0 {
		c.Token.TTL = time.Hour
	}

	if c.Summarizer.APIKey == "" && c.IsProduction() {
		errs = append(errs, errors.New("SUMMARIZER_API_KEY is required in production"))
	}
	if c.Summarizer.Timeout <= 0 {
		c.Summarizer.Timeout = 10 * time.Second
	}

	if c.DB.Host != "" {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Redis.Host != "" {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
		if c.Redis.TranscriptTTL <= 0 {
			c.Redis.TranscriptTTL = 24 * time.Hour
		}
	}

	if c.Rooms.MaxAge <= 0 {
		c.Rooms.MaxAge = 4 * time.Hour
	}
	if c.Rooms.CleanupInterval <= 0 {
		c.Rooms.CleanupInterval = 10 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// HasPostgres reports whether transfer history should be persisted.
func (c Config) HasPostgres() bool { return c.DB.Host != "" }

// HasRedis reports whether transcripts should live in Redis.
func (c Config) HasRedis() bool { return c.Redis.Host != "" }

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
