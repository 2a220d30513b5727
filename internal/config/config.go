package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Places    PlacesConfig    `mapstructure:"places"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PlacesConfig holds the upstream credentials. PlaceID and APIKey may be
// empty at startup; the reviews endpoint reports the misconfiguration per
// request.
type PlacesConfig struct {
	PlaceID string        `mapstructure:"place_id"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	DefaultOrigin  string   `mapstructure:"default_origin"`
}

type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // memory | redis
	Requests      int           `mapstructure:"requests"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxEntries    int           `mapstructure:"max_entries"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether a Redis host has been configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	RequestLogBuffer int           `mapstructure:"request_log_buffer"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQuery        time.Duration `mapstructure:"slow_query"`
}

type AdminConfig struct {
	Email        string        `mapstructure:"email"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether the admin API can issue and verify tokens.
func (a AdminConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type BreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Environment variable names for each config key.
var envBindings = map[string]string{
	"server.port":                 "PORT",
	"server.environment":          "ENVIRONMENT",
	"log.level":                   "LOG_LEVEL",
	"places.place_id":             "GOOGLE_PLACE_ID",
	"places.api_key":              "GOOGLE_PLACES_API_KEY",
	"places.base_url":             "PLACES_BASE_URL",
	"places.timeout":              "PLACES_TIMEOUT",
	"cors.default_origin":         "ALLOWED_ORIGIN",
	"cors.allowed_origins":        "ALLOWED_ORIGINS",
	"rate_limit.backend":          "RATE_LIMIT_BACKEND",
	"rate_limit.requests":         "RATE_LIMIT_REQUESTS",
	"rate_limit.window":           "RATE_LIMIT_WINDOW",
	"rate_limit.sweep_interval":   "RATE_LIMIT_SWEEP_INTERVAL",
	"rate_limit.max_entries":      "RATE_LIMIT_MAX_ENTRIES",
	"redis.host":                  "REDIS_HOST",
	"redis.port":                  "REDIS_PORT",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"database.url":                "DATABASE_URL",
	"database.request_log_buffer": "REQUEST_LOG_BUFFER",
	"database.max_open_conns":     "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":     "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime":  "DATABASE_CONN_MAX_LIFETIME",
	"database.slow_query":         "DATABASE_SLOW_QUERY",
	"admin.email":                 "ADMIN_EMAIL",
	"admin.password_hash":         "ADMIN_PASSWORD_HASH",
	"admin.jwt_secret":            "ADMIN_JWT_SECRET",
	"admin.token_ttl":             "ADMIN_TOKEN_TTL",
	"breaker.max_failures":        "BREAKER_MAX_FAILURES",
	"breaker.timeout":             "BREAKER_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("places.timeout", 10*time.Second)

	v.SetDefault("cors.allowed_origins", []string{
		"https://zenaradesigns.com",
		"https://www.zenaradesigns.com",
	})
	v.SetDefault("cors.default_origin", "https://zenaradesigns.com")

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.requests", 10)
	v.SetDefault("rate_limit.window", 15*time.Minute)
	v.SetDefault("rate_limit.sweep_interval", 5*time.Minute)
	v.SetDefault("rate_limit.max_entries", 10000)

	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.request_log_buffer", 1000)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.slow_query", 500*time.Millisecond)

	v.SetDefault("admin.token_ttl", 12*time.Hour)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout", 30*time.Second)
}

// Load builds the configuration from defaults, an optional config file and
// the environment (in increasing precedence). A .env file in the working
// directory is loaded first if it exists.
func Load(path string) (*Config, error) {
	// Load env if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.CORS.AllowedOrigins = splitOrigins(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would make the server misbehave. Missing
// upstream credentials are not checked here; the reviews endpoint reports
// them per request.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.RateLimit.Requests <= 0 {
		return errors.New("rate_limit.requests must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be > 0")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.New("REDIS_HOST is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.Places.Timeout <= 0 {
		return errors.New("places.timeout must be > 0")
	}
	return nil
}

// splitOrigins flattens comma separated entries, which is how a list
// arrives from a single environment variable.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
