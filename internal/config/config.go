// Package config loads and validates the site backend configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Contact      ContactConfig      `mapstructure:"contact"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Publications PublicationsConfig `mapstructure:"publications"`
	Security     SecurityConfig     `mapstructure:"security"`
	Events       EventsConfig       `mapstructure:"events"`
	Database     DBConfig           `mapstructure:"database"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ContactConfig holds the contact pipeline credentials and upstream endpoints.
// Missing credentials are not a load error; the pipeline reports them per request.
type ContactConfig struct {
	TurnstileSecret    string  `mapstructure:"turnstile_secret"`
	TurnstileVerifyURL string  `mapstructure:"turnstile_verify_url"`
	ResendAPIKey       string  `mapstructure:"resend_api_key"`
	ResendBaseURL      string  `mapstructure:"resend_base_url"`
	ToEmail            string  `mapstructure:"to_email"`
	FromEmail          string  `mapstructure:"from_email"`
	HTTPTimeoutSeconds int     `mapstructure:"http_timeout_seconds"`
	SendRPS            float64 `mapstructure:"send_rps"`
	SendBurst          int     `mapstructure:"send_burst"`
}

// RateLimitConfig configures the per-IP sliding window.
type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"`
	Window        time.Duration `mapstructure:"window"`
	Max           int           `mapstructure:"max"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig describes the shared counter store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// PublicationsConfig locates articles and the LinkedIn feed.
type PublicationsConfig struct {
	Backend  string        `mapstructure:"backend"`
	Dir      string        `mapstructure:"dir"`
	Bucket   string        `mapstructure:"bucket"`
	Prefix   string        `mapstructure:"prefix"`
	SiteURL  string        `mapstructure:"site_url"`
	NoIndex  []string      `mapstructure:"noindex"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SecurityConfig controls the Content-Security-Policy middleware.
type SecurityConfig struct {
	CSPEnabled   bool     `mapstructure:"csp_enabled"`
	NonProdHosts []string `mapstructure:"non_prod_hosts"`
	ConnectSrc   []string `mapstructure:"connect_src"`
	FrameSrc     []string `mapstructure:"frame_src"`
}

// EventsConfig controls the submission outcome hub.
type EventsConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	LogEnabled    bool        `mapstructure:"log_enabled"`
	BufferSize    int         `mapstructure:"buffer_size"`
	Batch         BatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int         `mapstructure:"sink_timeout_ms"`

	// HashClientIP replaces client IPs with a salted digest in persisted and published events.
	HashClientIP bool   `mapstructure:"hash_client_ip"`
	IPSalt       string `mapstructure:"ip_salt"`
}

// BatchConfig bounds hub batches.
type BatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	OutcomeTable    string        `mapstructure:"outcome_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TelemetryConfig names the service for traces.
type TelemetryConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	ProjectID      string  `mapstructure:"project_id"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is applied first when present.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("SITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindProviderEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// bindProviderEnv accepts the conventional provider variable names next to
// the SITE_-prefixed ones.
func bindProviderEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"contact.turnstile_secret": {"SITE_CONTACT_TURNSTILE_SECRET", "TURNSTILE_SECRET_KEY"},
		"contact.resend_api_key":   {"SITE_CONTACT_RESEND_API_KEY", "RESEND_API_KEY"},
		"contact.to_email":         {"SITE_CONTACT_TO_EMAIL", "CONTACT_TO_EMAIL"},
		"contact.from_email":       {"SITE_CONTACT_FROM_EMAIL", "CONTACT_FROM_EMAIL"},
		"server.port":              {"SITE_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")

	v.SetDefault("contact.turnstile_secret", "")
	v.SetDefault("contact.turnstile_verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("contact.resend_api_key", "")
	v.SetDefault("contact.resend_base_url", "https://api.resend.com/")
	v.SetDefault("contact.to_email", "")
	v.SetDefault("contact.from_email", "")
	v.SetDefault("contact.http_timeout_seconds", 10)
	v.SetDefault("contact.send_rps", 2.0)
	v.SetDefault("contact.send_burst", 2)

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.window", "10m")
	v.SetDefault("rate_limit.max", 5)
	v.SetDefault("rate_limit.sweep_interval", "5m")
	v.SetDefault("rate_limit.redis.addr", "")
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)
	v.SetDefault("rate_limit.redis.prefix", "site:contact:rl")

	v.SetDefault("publications.backend", "local")
	v.SetDefault("publications.dir", "publications")
	v.SetDefault("publications.bucket", "")
	v.SetDefault("publications.prefix", "publications")
	v.SetDefault("publications.site_url", "https://lfellinger.com")
	v.SetDefault("publications.noindex", []string{"example-article"})
	v.SetDefault("publications.cache_ttl", "1m")

	v.SetDefault("security.csp_enabled", true)
	v.SetDefault("security.non_prod_hosts", []string{"localhost", "staging.", ".vercel.app"})
	v.SetDefault("security.connect_src", []string{})
	v.SetDefault("security.frame_src", []string{})

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.log_enabled", true)
	v.SetDefault("events.buffer_size", 256)
	v.SetDefault("events.batch.max_events", 50)
	v.SetDefault("events.batch.max_wait_ms", 1000)
	v.SetDefault("events.sink_timeout_ms", 5000)
	v.SetDefault("events.hash_client_ip", true)
	v.SetDefault("events.ip_salt", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.outcome_table", "contact_outcomes")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "30m")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "consulting-site")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.project_id", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Contact.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("contact.http_timeout_seconds must be >= 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be > 0")
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("rate_limit.max must be > 0")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			return fmt.Errorf("rate_limit.redis.addr must be set when backend is redis")
		}
	default:
		return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	switch c.Publications.Backend {
	case "local":
		if c.Publications.Dir == "" {
			return fmt.Errorf("publications.dir must be set when backend is local")
		}
	case "gcs":
		if c.Publications.Bucket == "" {
			return fmt.Errorf("publications.bucket must be set when backend is gcs")
		}
	default:
		return fmt.Errorf("publications.backend must be local or gcs, got %q", c.Publications.Backend)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// ContactHTTPTimeout converts the upstream timeout to a duration.
func (c Config) ContactHTTPTimeout() time.Duration {
	return time.Duration(c.Contact.HTTPTimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single inbound request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
