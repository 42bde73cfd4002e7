package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete TaskMaster configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Users       UsersConfig       `mapstructure:"users"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	// URL is the Postgres connection string.
	URL string `mapstructure:"url"`
	// Path is the SQLite database file.
	Path     string `mapstructure:"path"`
	MaxConns int32  `mapstructure:"max_conns"`
	// Debug logs every SQL statement (sqlite only).
	Debug bool `mapstructure:"debug"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
}

// AttributionConfig names whoever acts when a request carries no user.
type AttributionConfig struct {
	DefaultName string `mapstructure:"default_name"`
}

// UsersConfig controls password hashing.
type UsersConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// RateLimitConfig is the per-client request budget. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   DriverSQLite,
			Path:     "taskmaster.db",
			MaxConns: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Attribution: AttributionConfig{
			DefaultName: "System User",
		},
		Users: UsersConfig{
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// New returns a viper instance with defaults, the optional config file and
// TASKMASTER_* environment overrides applied. An empty cfgFile searches
// for taskmaster.yaml in the working directory.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("taskmaster")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TASKMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Platform conventions win over defaults but not over explicit settings.
	if url := os.Getenv("DATABASE_URL"); url != "" && !explicit(v, "database.url") {
		v.Set("database.url", url)
		if !explicit(v, "database.driver") {
			v.Set("database.driver", DriverPostgres)
		}
	}
	if port := os.Getenv("PORT"); port != "" && !explicit(v, "server.addr") {
		v.Set("server.addr", ":"+port)
	}
	return v, nil
}

// explicit reports whether key came from the config file or its
// TASKMASTER_* variable.
func explicit(v *viper.Viper, key string) bool {
	env := "TASKMASTER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	_, ok := os.LookupEnv(env)
	return ok || v.InConfig(key)
}

// SetDefaults registers every key with its default so that environment
// overrides apply to keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.max_conns", d.Database.MaxConns)
	v.SetDefault("database.debug", d.Database.Debug)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("attribution.default_name", d.Attribution.DefaultName)
	v.SetDefault("users.bcrypt_cost", d.Users.BcryptCost)

	v.SetDefault("ratelimit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			problems = append(problems, "database.url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			problems = append(problems, "database.path is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		problems = append(problems, "ratelimit values must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
