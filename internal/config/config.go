// Package config manages environment variables.
//
// It reads variables (optionally from a `.env` file), maps them into
// structured Go types with koanf, fills in defaults and validates the result
// so the process fails fast on missing connection parameters.
//
// Application variables use the USER_SERVICE_ prefix and a double
// underscore for nesting:
//
//	USER_SERVICE_DATABASE__HOST        -> database.host
//	USER_SERVICE_DATABASE__MAX_CONNS   -> database.max_conns
//	USER_SERVICE_AUTH__SECRET_KEY      -> auth.secret_key
//
// The deployment variables DB_PTGR_HOST, DB_PTGR_PORT, DB_PTGR_USER and
// DB_PTGR_PASS are honoured as well; prefixed variables win over them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Loads a `.env` file into the process environment, if present.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix       = "USER_SERVICE_"
	legacyDBPrefix  = "DB_PTGR_"
	serviceName     = "user-service"
	defaultDatabase = "etc_db_user_service"
)

// Config is the root configuration object for the application.
//
// Observability is a pointer because it is optional. Defaults seeds it and
// LoadConfig restores the defaults if it ends up nil.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Storage       StorageConfig        `koanf:"storage" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server. Timeouts are seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`

	// AuthRateLimit bounds login attempts per client IP, in requests per
	// second. Zero disables the limiter.
	AuthRateLimit float64 `koanf:"auth_rate_limit" validate:"gte=0"`
	AuthRateBurst int     `koanf:"auth_rate_burst" validate:"gte=0"`
}

// DatabaseConfig contains PostgreSQL connection parameters, pool bounds and
// the retry policy applied to every data access call.
type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"required,min=1,max=65535"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password" validate:"required"`
	Name     string `koanf:"name" validate:"required"`
	SSLMode  string `koanf:"ssl_mode" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`

	MinConns        int32         `koanf:"min_conns" validate:"min=0"`
	MaxConns        int32         `koanf:"max_conns" validate:"required,min=1,gtefield=MinConns"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"required"`
	CommandTimeout  time.Duration `koanf:"command_timeout" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`

	SkipMigrations bool        `koanf:"skip_migrations"`
	Retry          RetryConfig `koanf:"retry"`
}

// RetryConfig tunes the transient-failure retry policy.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" validate:"min=0,max=10"`
	BaseDelay  time.Duration `koanf:"base_delay" validate:"min=0"`
	MaxJitter  time.Duration `koanf:"max_jitter" validate:"min=0"`
}

// RedisConfig contains Redis connection details ("host:port").
type RedisConfig struct {
	Address string `koanf:"address" validate:"required"`
}

// AuthConfig holds the HS256 secret bearer tokens are verified with.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key" validate:"required"`
}

// StorageConfig says where uploaded images live and the URL path they are
// served from.
type StorageConfig struct {
	ImagesDir  string `koanf:"images_dir" validate:"required"`
	PublicPath string `koanf:"public_path" validate:"required,startswith=/"`
	MaxUpload  int64  `koanf:"max_upload" validate:"min=0"`
}

// IntegrationConfig holds third-party credentials. Empty values disable
// the integration.
type IntegrationConfig struct {
	ResendAPIKey string `koanf:"resend_api_key"`
	EmailFrom    string `koanf:"email_from"`
}

// Defaults returns the configuration used for every key the environment
// leaves unset.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"http://localhost:4200", "http://localhost:4201"},
			AuthRateLimit:      5,
			AuthRateBurst:      10,
		},
		Database: DatabaseConfig{
			Port:            5432,
			Name:            defaultDatabase,
			SSLMode:         "prefer",
			MinConns:        10,
			MaxConns:        100,
			ConnectTimeout:  15 * time.Second,
			CommandTimeout:  30 * time.Second,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			Retry: RetryConfig{
				MaxRetries: 3,
				BaseDelay:  200 * time.Millisecond,
				MaxJitter:  100 * time.Millisecond,
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Storage: StorageConfig{
			ImagesDir:  "wwwroot/images",
			PublicPath: "/images",
			MaxUpload:  5 << 20,
		},
		Integration: IntegrationConfig{
			EmailFrom: "User Service <onboarding@resend.dev>",
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig reads the environment on top of Defaults, validates the
// result and completes the observability block.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	// Deployment variables first so that prefixed ones override them.
	err := k.Load(env.Provider(legacyDBPrefix, ".", legacyDatabaseKey), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load database env variables: %w", err)
	}

	err = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := Defaults()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	if mainConfig.Primary.Env == "" {
		mainConfig.Primary.Env = "development"
	}

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}

	mainConfig.Observability.ServiceName = serviceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}

// legacyDatabaseKey maps DB_PTGR_* names onto database.* keys. Unknown
// names map to the empty key, which koanf skips.
func legacyDatabaseKey(s string) string {
	switch strings.TrimPrefix(s, legacyDBPrefix) {
	case "HOST":
		return "database.host"
	case "PORT":
		return "database.port"
	case "USER":
		return "database.user"
	case "PASS", "PASSWORD":
		return "database.password"
	case "NAME":
		return "database.name"
	default:
		return ""
	}
}

// IsLocal reports whether the service runs on a developer machine, where
// SQL statements are logged.
func (c *Config) IsLocal() bool {
	return c.Primary.Env == "local"
}
