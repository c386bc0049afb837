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

// Config holds all the configuration variables for the lumentix backend.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	HorizonAPIBaseURL         string `mapstructure:"HORIZON_API_BASE_URL"`
	EscrowWalletAddress       string `mapstructure:"ESCROW_WALLET_ADDRESS"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	SettlementEventExchange   string `mapstructure:"SETTLEMENT_EVENT_EXCHANGE"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	ConfirmRateLimitPerMinute int    `mapstructure:"CONFIRM_RATE_LIMIT_PER_MINUTE"`
	EscrowWatchSchedule       string `mapstructure:"ESCROW_WATCH_SCHEDULE"`
	EscrowWatchPageLimit      int    `mapstructure:"ESCROW_WATCH_PAGE_LIMIT"`
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
	viper.SetDefault("HORIZON_API_BASE_URL", "https://horizon-testnet.stellar.org")
	viper.SetDefault("SETTLEMENT_EVENT_EXCHANGE", "lumentix.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lumentix:rate_limit")
	viper.SetDefault("CONFIRM_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("ESCROW_WATCH_SCHEDULE", "@every 1m")
	viper.SetDefault("ESCROW_WATCH_PAGE_LIMIT", 20)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("HORIZON_API_BASE_URL")
	_ = viper.BindEnv("ESCROW_WALLET_ADDRESS")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SETTLEMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LUMENTIX_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("CONFIRM_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("ESCROW_WATCH_SCHEDULE")
	_ = viper.BindEnv("ESCROW_WATCH_PAGE_LIMIT")

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
	config.HorizonAPIBaseURL = strings.TrimSpace(config.HorizonAPIBaseURL)
	config.EscrowWalletAddress = strings.TrimSpace(config.EscrowWalletAddress)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "lumentix:rate_limit"
	}

	if config.ConfirmRateLimitPerMinute <= 0 {
		config.ConfirmRateLimitPerMinute = 30
	}
	if config.EscrowWatchPageLimit <= 0 {
		config.EscrowWatchPageLimit = 20
	}
	// Horizon caps page sizes at 200 records.
	if config.EscrowWatchPageLimit > 200 {
		log.Printf("level=warn component=config msg=\"escrow watch page limit too high; capping at 200\" limit=%d", config.EscrowWatchPageLimit)
		config.EscrowWatchPageLimit = 200
	}

	return
}
