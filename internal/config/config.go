package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	FileService FileServiceConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// FileServiceConfig tunes the outbound file-service client and its
// resilience policies
type FileServiceConfig struct {
	URL              string
	Timeout          time.Duration
	MaxRetries       int
	RetryInterval    time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	MaxConcurrent    int64
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("FILE_SERVICE_URL", "http://localhost:8081")
	viper.SetDefault("FILE_SERVICE_TIMEOUT", "3s")
	viper.SetDefault("FILE_SERVICE_MAX_RETRIES", 3)
	viper.SetDefault("FILE_SERVICE_RETRY_INTERVAL", "100ms")
	viper.SetDefault("FILE_SERVICE_FAILURE_THRESHOLD", 5)
	viper.SetDefault("FILE_SERVICE_COOLDOWN", "10s")
	viper.SetDefault("FILE_SERVICE_MAX_CONCURRENT", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		FileService: FileServiceConfig{
			URL:              viper.GetString("FILE_SERVICE_URL"),
			Timeout:          viper.GetDuration("FILE_SERVICE_TIMEOUT"),
			MaxRetries:       viper.GetInt("FILE_SERVICE_MAX_RETRIES"),
			RetryInterval:    viper.GetDuration("FILE_SERVICE_RETRY_INTERVAL"),
			FailureThreshold: viper.GetInt("FILE_SERVICE_FAILURE_THRESHOLD"),
			Cooldown:         viper.GetDuration("FILE_SERVICE_COOLDOWN"),
			MaxConcurrent:    viper.GetInt64("FILE_SERVICE_MAX_CONCURRENT"),
		},
	}
}
