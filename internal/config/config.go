/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the service. These values
// are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	TransferEventExchange      string `mapstructure:"TRANSFER_EVENT_EXCHANGE"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes              int    `mapstructure:"JWT_TTL_MINUTES"`
	CardEncryptionKey          string `mapstructure:"CARD_ENCRYPTION_KEY"`
	CardExpirySweepSchedule    string `mapstructure:"CARD_EXPIRY_SWEEP_SCHEDULE"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TRANSFER_EVENT_EXCHANGE", "bankcards_events")
	viper.SetDefault("JWT_TTL_MINUTES", 60)
	viper.SetDefault("CARD_EXPIRY_SWEEP_SCHEDULE", "0 3 * * *")
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "bankcards:rate_limit")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("TRANSFER_EVENT_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_MINUTES")
	_ = viper.BindEnv("CARD_ENCRYPTION_KEY")
	_ = viper.BindEnv("CARD_EXPIRY_SWEEP_SCHEDULE")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "bankcards:rate_limit"
	}

	if config.JWTTTLMinutes <= 0 {
		config.JWTTTLMinutes = 60
	}
	if config.TransferRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer rate limit configured; coercing to zero\" limit=%d", config.TransferRateLimitPerMinute)
		config.TransferRateLimitPerMinute = 0
	}
	if strings.TrimSpace(config.CardExpirySweepSchedule) == "" {
		config.CardExpirySweepSchedule = "0 3 * * *"
	}

	return
}
