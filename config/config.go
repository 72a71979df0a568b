package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the shopping assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration.
type LLMProvider struct {
	Type        string        `mapstructure:"type"` // openai-compatible only, for now
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
}

// LLMRoutingConfig maps latency/quality tiers to model names.
type LLMRoutingConfig struct {
	Small     string `mapstructure:"small"`     // dedup, titles
	Large     string `mapstructure:"large"`     // orchestration, rewriting, synthesis
	Reasoning string `mapstructure:"reasoning"` // optional
}

// Model resolves a tier to a model name, falling back to the large tier.
func (r LLMRoutingConfig) Model(tier string) string {
	switch tier {
	case "small":
		if r.Small != "" {
			return r.Small
		}
	case "reasoning":
		if r.Reasoning != "" {
			return r.Reasoning
		}
	}
	return r.Large
}

// SearchConfig configures the external search gateway.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper
	APIKey       string        `mapstructure:"api_key"`
	CountryCode  string        `mapstructure:"country_code"`
	City         string        `mapstructure:"city"`
	MaxResults   int           `mapstructure:"max_results"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	if s.Provider == "" {
		return errors.New("search.provider required")
	}
	if s.APIKey == "" {
		return errors.New("search.api_key required")
	}
	return nil
}

// FetchConfig configures the web content fetcher.
type FetchConfig struct {
	Provider string        `mapstructure:"provider"` // jina or readability
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

func (f FetchConfig) Validate() error {
	if f.Provider == "jina" && f.APIKey == "" {
		return errors.New("fetch.api_key required for the jina provider")
	}
	return nil
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	MaxSteps               int `mapstructure:"max_steps"`
	ResearchMaxSteps       int `mapstructure:"research_max_steps"`
	ShopSynthesisMaxTokens int `mapstructure:"shop_synthesis_max_tokens"`
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "" {
		return "", errors.New("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// LoadConfig loads config from file plus SENSE_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.country_code", "us")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.request_delay", "1s")
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("fetch.provider", "jina")
	viper.SetDefault("fetch.timeout", "30s")
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("agent.max_steps", 20)
	viper.SetDefault("agent.research_max_steps", 10)
	viper.SetDefault("agent.shop_synthesis_max_tokens", 4096)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.metrics_path", "/metrics")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		// env-only configuration is allowed
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Fetch.Validate(); err != nil {
		panic(err)
	}
	return &config
}
