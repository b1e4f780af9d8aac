package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth0         Auth0Config         `mapstructure:"auth0" validate:"required"`
	Diary         DiaryConfig         `mapstructure:"diary"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	UserRatePerSecond float64       `mapstructure:"user_rate_per_second"`
	UserRateBurst     int           `mapstructure:"user_rate_burst"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// Auth0Config describes the tenant that issues bearer tokens.
type Auth0Config struct {
	Domain    string        `mapstructure:"domain"`
	Audience  string        `mapstructure:"audience" validate:"required"`
	Issuer    string        `mapstructure:"issuer"`
	PublicKey string        `mapstructure:"public_key" validate:"required"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

type DiaryConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	APIToken       string        `mapstructure:"api_token"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
	ForwardTraceID bool          `mapstructure:"forward_trace_id"`
}

type NotificationsConfig struct {
	MaxWorkers   int           `mapstructure:"max_workers"`
	JobQueueSize int           `mapstructure:"job_queue_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds the configuration for container deployments where
// no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
			UserRatePerSecond: getEnvAsFloat("HTTP_USER_RATE_PER_SECOND", 10),
			UserRateBurst:     getEnvAsInt("HTTP_USER_RATE_BURST", 20),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Auth0: Auth0Config{
			Domain:    getEnv("AUTH0_DOMAIN", ""),
			Audience:  getEnv("AUTH0_AUDIENCE", ""),
			Issuer:    getEnv("AUTH0_ISSUER", ""),
			PublicKey: getEnv("AUTH0_PUBLIC_KEY", ""),
			Leeway:    getEnvAsDuration("AUTH0_LEEWAY", 30*time.Second),
		},
		Diary: DiaryConfig{
			BaseURL:        getEnv("DIARY_API_URL", ""),
			Timeout:        getEnvAsDuration("DIARY_API_TIMEOUT", 10*time.Second),
			APIToken:       getEnv("DIARY_API_TOKEN", ""),
			RatePerSecond:  getEnvAsFloat("DIARY_RATE_PER_SECOND", 10),
			RateBurst:      getEnvAsInt("DIARY_RATE_BURST", 20),
			ForwardTraceID: getEnv("DIARY_FORWARD_TRACE_ID", "true") == "true",
		},
		Notifications: NotificationsConfig{
			MaxWorkers:   getEnvAsInt("NOTIFICATIONS_MAX_WORKERS", 4),
			JobQueueSize: getEnvAsInt("NOTIFICATIONS_JOB_QUEUE_SIZE", 100),
			PollInterval: getEnvAsDuration("NOTIFICATIONS_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getEnvAsInt("NOTIFICATIONS_BATCH_SIZE", 50),
			MaxRetries:   getEnvAsInt("NOTIFICATIONS_MAX_RETRIES", 5),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Auth0.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("auth0 config: %v", err))
	}

	if err := c.Diary.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("diary config: %v", err))
	}

	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notifications config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		for _, origin := range c.Origins() {
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins splits AllowedOrigins on commas.
func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *Auth0Config) Validate() error {
	if c.Audience == "" {
		return errors.New("audience is required")
	}
	if c.IssuerURL() == "" {
		return errors.New("issuer or domain is required")
	}
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	return nil
}

// IssuerURL returns the configured issuer, falling back to https://<domain>/.
func (c *Auth0Config) IssuerURL() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	if c.Domain == "" {
		return ""
	}
	return "https://" + strings.TrimSuffix(c.Domain, "/") + "/"
}

func (c *Auth0Config) GetPublicKey() (*rsa.PublicKey, error) {
	return ParseRSAPublicKey(c.PublicKey)
}

// ParseRSAPublicKey decodes a base64 encoded PEM block holding either a PKIX
// public key or a certificate.
func ParseRSAPublicKey(encoded string) (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}

	var pub any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		pub = cert.PublicKey
	default:
		pub, err = x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

func (c *DiaryConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if c.RatePerSecond < 0 {
		return errors.New("rate_per_second cannot be negative")
	}
	return nil
}

func (c *NotificationsConfig) Validate() error {
	if c.MaxWorkers < 0 || c.JobQueueSize < 0 || c.BatchSize < 0 || c.MaxRetries < 0 {
		return errors.New("worker settings cannot be negative")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
	switch c.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}
