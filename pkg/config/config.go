package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Providers ProvidersConfig
	Cache     CacheConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type EngineConfig struct {
	DefaultProvider string
	Concurrency     int
	GroupDelayMs    int
	RateLimitCalls  int
	RateLimitWindow int
}

type ProvidersConfig struct {
	OpenAI  ProviderConfig
	Mistral ProviderConfig
	Gemini  ProviderConfig
	Ollama  ProviderConfig
}

type ProviderConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Temperature   float32
	MaxTokens     int
	TimeoutSec    int
	RetryAttempts int
}

type CacheConfig struct {
	Backend    string
	MaxEntries int
	TTLMinutes int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/sentinelle")

	viper.SetEnvPrefix("SENTINELLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 20971520)

	viper.SetDefault("engine.defaultProvider", "mistral")
	viper.SetDefault("engine.concurrency", 5)
	viper.SetDefault("engine.groupDelayMs", 1000)
	viper.SetDefault("engine.rateLimitCalls", 30)
	viper.SetDefault("engine.rateLimitWindow", 60)

	viper.SetDefault("providers.openai.model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.temperature", 0.1)
	viper.SetDefault("providers.openai.maxTokens", 600)
	viper.SetDefault("providers.openai.timeoutSec", 30)
	viper.SetDefault("providers.openai.retryAttempts", 2)

	viper.SetDefault("providers.mistral.model", "mistral-small-latest")
	viper.SetDefault("providers.mistral.baseURL", "https://api.mistral.ai/v1")
	viper.SetDefault("providers.mistral.temperature", 0.1)
	viper.SetDefault("providers.mistral.maxTokens", 600)
	viper.SetDefault("providers.mistral.timeoutSec", 30)
	viper.SetDefault("providers.mistral.retryAttempts", 2)

	viper.SetDefault("providers.gemini.model", "gemini-1.5-flash")
	viper.SetDefault("providers.gemini.baseURL", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("providers.gemini.temperature", 0.1)
	viper.SetDefault("providers.gemini.maxTokens", 600)
	viper.SetDefault("providers.gemini.timeoutSec", 30)
	viper.SetDefault("providers.gemini.retryAttempts", 2)

	viper.SetDefault("providers.ollama.model", "mistral:7b")
	viper.SetDefault("providers.ollama.baseURL", "http://localhost:11434")
	viper.SetDefault("providers.ollama.temperature", 0.1)
	viper.SetDefault("providers.ollama.maxTokens", 600)
	viper.SetDefault("providers.ollama.timeoutSec", 60)
	viper.SetDefault("providers.ollama.retryAttempts", 1)

	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.maxEntries", 0)
	viper.SetDefault("cache.ttlMinutes", 1440)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("sqlite.path", "./data/sentinelle.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
