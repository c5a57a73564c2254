package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

// ConfigFileEnv names the optional YAML file loaded before environment overrides
const ConfigFileEnv = "PORTAL_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Backend       BackendConfig       `yaml:"backend"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// Addr returns host:port for http.Server
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// BackendConfig describes the hosted backend platform: its identity provider admin API,
// its functions endpoint and the service key both are called with.
type BackendConfig struct {
	URL                  string        `yaml:"url"`
	ServiceKey           string        `yaml:"service_key"`
	NotificationFunction string        `yaml:"notification_function"`
	LoginURL             string        `yaml:"login_url"`
	AccountPageSize      int           `yaml:"account_page_size"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
}

// Issuer is the token issuer of the platform's identity provider
func (b BackendConfig) Issuer() string {
	return strings.TrimRight(b.URL, "/") + "/auth/v1"
}

// JWKSURL is where the identity provider publishes its signing keys
func (b BackendConfig) JWKSURL() string {
	return b.Issuer() + "/.well-known/jwks.json"
}

// StorageConfig holds the S3-compatible document bucket settings
type StorageConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Region       string        `yaml:"region"`
	Bucket       string        `yaml:"bucket"`
	AccessKey    string        `yaml:"access_key"`
	SecretKey    string        `yaml:"secret_key"`
	UsePathStyle bool          `yaml:"use_path_style"`
	PresignTTL   time.Duration `yaml:"presign_ttl"`
}

// RedisConfig enables distributed rate limiting when URL is set
type RedisConfig struct {
	URL             string        `yaml:"url"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// Enabled reports whether a redis URL was configured
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig tunes caller authentication
type AuthConfig struct {
	// Audience is the required aud claim of caller tokens. Empty disables the check.
	Audience         string        `yaml:"audience"`
	ProfileCacheSize int           `yaml:"profile_cache_size"`
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl"`
}

// JobsConfig holds scheduled job settings
type JobsConfig struct {
	ExpiryEnabled  bool   `yaml:"expiry_enabled"`
	ExpirySchedule string `yaml:"expiry_schedule"`
	ExpiryOnStart  bool   `yaml:"expiry_on_start"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level parses LogLevel
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when neither file nor environment set a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  20 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		Backend: BackendConfig{
			NotificationFunction: "send-credentials-email",
			AccountPageSize:      200,
			RequestTimeout:       30 * time.Second,
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			Bucket:     "policy-documents",
			PresignTTL: 15 * time.Minute,
		},
		Redis: RedisConfig{
			RateLimit:       60,
			RateLimitWindow: time.Minute,
		},
		Auth: AuthConfig{
			Audience:         "authenticated",
			ProfileCacheSize: 1024,
			ProfileCacheTTL:  time.Minute,
		},
		Jobs: JobsConfig{
			ExpiryEnabled:  true,
			ExpirySchedule: "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "portal",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named by
// PORTAL_CONFIG_FILE, and PORTAL_* environment variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("PORTAL_HOST", s.Host)
	s.Port = getEnv("PORTAL_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("PORTAL_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("PORTAL_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("PORTAL_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("PORTAL_CORS_ORIGINS", s.CORSOrigins)
	s.MaxUploadBytes = getEnvInt64("PORTAL_MAX_UPLOAD_BYTES", s.MaxUploadBytes)

	d := &c.Database
	d.URL = getEnv("PORTAL_DATABASE_URL", d.URL)
	d.MaxOpenConns = getEnvInt("PORTAL_DATABASE_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("PORTAL_DATABASE_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("PORTAL_DATABASE_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnectTimeout = getEnvDuration("PORTAL_DATABASE_CONNECT_TIMEOUT", d.ConnectTimeout)

	b := &c.Backend
	b.URL = getEnv("PORTAL_BACKEND_URL", b.URL)
	b.ServiceKey = getEnv("PORTAL_BACKEND_SERVICE_KEY", b.ServiceKey)
	b.NotificationFunction = getEnv("PORTAL_NOTIFICATION_FUNCTION", b.NotificationFunction)
	b.LoginURL = getEnv("PORTAL_LOGIN_URL", b.LoginURL)
	b.AccountPageSize = getEnvInt("PORTAL_ACCOUNT_PAGE_SIZE", b.AccountPageSize)
	b.RequestTimeout = getEnvDuration("PORTAL_BACKEND_TIMEOUT", b.RequestTimeout)

	st := &c.Storage
	st.Endpoint = getEnv("PORTAL_S3_ENDPOINT", st.Endpoint)
	st.Region = getEnv("PORTAL_S3_REGION", st.Region)
	st.Bucket = getEnv("PORTAL_S3_BUCKET", st.Bucket)
	st.AccessKey = getEnv("PORTAL_S3_ACCESS_KEY", st.AccessKey)
	st.SecretKey = getEnv("PORTAL_S3_SECRET_KEY", st.SecretKey)
	st.UsePathStyle = getEnvBool("PORTAL_S3_USE_PATH_STYLE", st.UsePathStyle)
	st.PresignTTL = getEnvDuration("PORTAL_S3_PRESIGN_TTL", st.PresignTTL)

	r := &c.Redis
	r.URL = getEnv("PORTAL_REDIS_URL", r.URL)
	r.Password = getEnv("PORTAL_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("PORTAL_REDIS_DB", r.DB)
	r.RateLimit = getEnvInt("PORTAL_RATE_LIMIT", r.RateLimit)
	r.RateLimitWindow = getEnvDuration("PORTAL_RATE_LIMIT_WINDOW", r.RateLimitWindow)

	a := &c.Auth
	a.Audience = getEnv("PORTAL_AUTH_AUDIENCE", a.Audience)
	a.ProfileCacheSize = getEnvInt("PORTAL_PROFILE_CACHE_SIZE", a.ProfileCacheSize)
	a.ProfileCacheTTL = getEnvDuration("PORTAL_PROFILE_CACHE_TTL", a.ProfileCacheTTL)

	j := &c.Jobs
	j.ExpiryEnabled = getEnvBool("PORTAL_EXPIRY_ENABLED", j.ExpiryEnabled)
	j.ExpirySchedule = getEnv("PORTAL_EXPIRY_SCHEDULE", j.ExpirySchedule)
	j.ExpiryOnStart = getEnvBool("PORTAL_EXPIRY_ON_START", j.ExpiryOnStart)

	o := &c.Observability
	o.LogLevel = getEnv("PORTAL_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("PORTAL_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("PORTAL_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("PORTAL_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("PORTAL_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("PORTAL_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("PORTAL_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("PORTAL_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (PORTAL_DATABASE_URL)")
	}

	if c.Backend.URL == "" {
		return fmt.Errorf("backend URL is required (PORTAL_BACKEND_URL)")
	}
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend URL %q is not an absolute URL", c.Backend.URL)
	}
	if c.Backend.ServiceKey == "" {
		return fmt.Errorf("backend service key is required (PORTAL_BACKEND_SERVICE_KEY)")
	}
	if c.Backend.AccountPageSize <= 0 {
		return fmt.Errorf("account page size must be positive")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return fmt.Errorf("S3 access key and secret key must be set together")
	}

	if c.Redis.Enabled() && (c.Redis.RateLimit <= 0 || c.Redis.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit and window must be positive when redis is enabled")
	}

	if c.Jobs.ExpiryEnabled && c.Jobs.ExpirySchedule == "" {
		return fmt.Errorf("expiry schedule is required when the expiry job is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
