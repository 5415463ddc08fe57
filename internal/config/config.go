package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	RedisURL string `mapstructure:"redis_url"`
	DBURL    string `mapstructure:"db_url"`

	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	RoomTTL        time.Duration `mapstructure:"room_ttl"`
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	EmptyDebounce  time.Duration `mapstructure:"empty_room_debounce"`
	FreeTrialLimit time.Duration `mapstructure:"free_trial_limit"`
	MessageCap     int           `mapstructure:"message_cap"`

	ChatRateLimit  int           `mapstructure:"chat_rate_limit"`
	ChatRateWindow time.Duration `mapstructure:"chat_rate_window"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("sync_interval", "1500ms")
	v.SetDefault("room_ttl", "24h")
	v.SetDefault("grace_period", "60s")
	v.SetDefault("empty_room_debounce", "500ms")
	v.SetDefault("free_trial_limit", "24h")
	v.SetDefault("message_cap", 50)
	v.SetDefault("chat_rate_limit", 20)
	v.SetDefault("chat_rate_window", "10s")

	// secrets come from the environment, not the yaml file
	v.SetDefault("secret", os.Getenv("JWT_SECRET"))
	v.SetDefault("redis_url", os.Getenv("REDIS_URL"))
	v.SetDefault("db_url", os.Getenv("DB_URL"))

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
