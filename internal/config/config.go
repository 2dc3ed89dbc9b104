package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigPath is read when CONFIG_PATH is unset. A missing file is not an error.
const DefaultConfigPath = "config/accountplan.yaml"

// Config is the service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Research ResearchConfig `mapstructure:"research"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Port      int `mapstructure:"port"`
	AdminPort int `mapstructure:"admin_port"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	Temperature       float32       `mapstructure:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type ResearchConfig struct {
	// MaxTasks is the single task cap used by both normalization passes.
	MaxTasks          int           `mapstructure:"max_tasks"`
	LookupTimeout     time.Duration `mapstructure:"lookup_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxResults        int           `mapstructure:"max_results"`
	Endpoints         struct {
		DuckDuckGo string `mapstructure:"duckduckgo"`
		GoogleNews string `mapstructure:"google_news"`
		Wikipedia  string `mapstructure:"wikipedia"`
		Finance    string `mapstructure:"finance"`
	} `mapstructure:"endpoints"`
}

type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type PromptsConfig struct {
	OverridePath string `mapstructure:"override_path"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type WorkerConfig struct {
	QueueSize int  `mapstructure:"queue_size"`
	Async     bool `mapstructure:"async"`
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.admin_port", 2112)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.requests_per_minute", 60)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("research.max_tasks", 12)
	v.SetDefault("research.lookup_timeout", 15*time.Second)
	v.SetDefault("research.requests_per_second", 2.0)
	v.SetDefault("research.max_results", 6)
	v.SetDefault("research.endpoints.duckduckgo", "")
	v.SetDefault("research.endpoints.google_news", "")
	v.SetDefault("research.endpoints.wikipedia", "")
	v.SetDefault("research.endpoints.finance", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 6*time.Hour)
	v.SetDefault("prompts.override_path", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "accountplan")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("worker.queue_size", 16)
	v.SetDefault("worker.async", false)
}

// Load reads path (or CONFIG_PATH, or DefaultConfigPath) and applies
// ACCOUNTPLAN_* environment overrides, e.g. ACCOUNTPLAN_RESEARCH_MAX_TASKS.
// The Gemini key also comes from GEMINI_API_KEY or GOOGLE_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ACCOUNTPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if path == "" {
		if path = os.Getenv("CONFIG_PATH"); path != "" {
			explicit = true
		} else {
			path = DefaultConfigPath
		}
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "offline":
	default:
		return fmt.Errorf("llm.provider must be gemini or offline, got %q", c.LLM.Provider)
	}
	if c.Research.MaxTasks <= 0 {
		return fmt.Errorf("research.max_tasks must be positive, got %d", c.Research.MaxTasks)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive, got %d", c.Server.Port)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
