package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Source    SourceConfig    `mapstructure:"source"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite, memory
	URL             string        `mapstructure:"url"`    // postgres DSN
	Path            string        `mapstructure:"path"`   // sqlite file path
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return c.URL
	default:
		return c.Path
	}
}

type SourceConfig struct {
	Provider string        `mapstructure:"provider"` // algolia, fixture
	Algolia  AlgoliaConfig `mapstructure:"algolia"`
	Fixture  FixtureConfig `mapstructure:"fixture"`
}

type AlgoliaConfig struct {
	AppID    string `mapstructure:"app_id"`
	APIKey   string `mapstructure:"api_key"`
	Index    string `mapstructure:"index"`
	PageSize int    `mapstructure:"page_size"`
}

type FixtureConfig struct {
	Path string `mapstructure:"path"`
}

type LLMConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type GeocodeConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type PipelineConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/acjobs")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/acjobs.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("source.provider", "algolia")
	v.SetDefault("source.algolia.index", "job_postings")
	v.SetDefault("source.algolia.page_size", 1000)
	v.SetDefault("source.fixture.path", "./data/listings.jsonl")
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.requests_per_second", 2)
	v.SetDefault("geocode.base_url", "https://maps.googleapis.com")
	v.SetDefault("geocode.requests_per_second", 10)
	v.SetDefault("pipeline.workers", 6)
	v.SetDefault("pipeline.batch_size", 500)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 */6 * * *")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("source.algolia.app_id", "ALGOLIA_APP_ID")
	v.BindEnv("source.algolia.api_key", "ALGOLIA_API_KEY")
	v.BindEnv("source.algolia.index", "ALGOLIA_INDEX")
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("geocode.api_key", "GOOGLE_MAPS_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the loaded configuration is usable for a pipeline run.
// Returns an error describing the first validation failure, or nil if valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("config: database.url is required for the postgres driver (set DATABASE_URL)")
	}

	switch c.Source.Provider {
	case "algolia":
		if c.Source.Algolia.AppID == "" {
			return fmt.Errorf("config: source.algolia.app_id is required (set ALGOLIA_APP_ID)")
		}
		if c.Source.Algolia.APIKey == "" {
			return fmt.Errorf("config: source.algolia.api_key is required (set ALGOLIA_API_KEY)")
		}
		if c.Source.Algolia.Index == "" {
			return fmt.Errorf("config: source.algolia.index is required")
		}
	case "fixture":
		if c.Source.Fixture.Path == "" {
			return fmt.Errorf("config: source.fixture.path is required for the fixture provider")
		}
	default:
		return fmt.Errorf("config: unknown source provider %q", c.Source.Provider)
	}

	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm.api_key is required when llm is enabled (set OPENAI_API_KEY)")
	}
	if c.Geocode.APIKey == "" {
		return fmt.Errorf("config: geocode.api_key is required (set GOOGLE_MAPS_API_KEY)")
	}

	return nil
}
