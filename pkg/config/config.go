package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Scoring ScoringConfig
	Fetcher FetcherConfig
	Images  ImagesConfig
	Auth    AuthConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type ScoringConfig struct {
	BaseURL     string
	APIKey      string
	TimeoutSec  int
	Parallelism int
}

type FetcherConfig struct {
	ReaderBaseURL string
	TimeoutSec    int
	CacheTTLMin   int
}

type ImagesConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	TimeoutSec int
}

type AuthConfig struct {
	SessionSecret string
	CookieName    string
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
	viper.AddConfigPath("/etc/rainfeed")

	viper.SetEnvPrefix("RAINFEED")
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
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/rainfeed.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("scoring.baseURL", "https://api.cerebras.ai/v1")
	viper.SetDefault("scoring.timeoutSec", 30)
	viper.SetDefault("scoring.parallelism", 4)

	viper.SetDefault("fetcher.readerBaseURL", "https://r.jina.ai")
	viper.SetDefault("fetcher.timeoutSec", 30)
	viper.SetDefault("fetcher.cacheTTLMin", 60)

	viper.SetDefault("images.endpoint", "https://api.runware.ai/v1")
	viper.SetDefault("images.model", "runware:101@1")
	viper.SetDefault("images.timeoutSec", 30)

	viper.SetDefault("auth.cookieName", "rain_session")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
