package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const configPathEnv = "SETTINGS_CONFIG_PATH"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Rates    RatesConfig    `yaml:"rates"`
	Settings SettingsConfig `yaml:"settings"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr    string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s" validate:"gt=0"`
}

type RedisConfig struct {
	// Empty keeps the rates envelope in process memory.
	Addr string `yaml:"addr" env:"REDIS_ADDR"`
}

type RatesConfig struct {
	URL             string        `yaml:"url" env:"RATES_URL" env-default:"https://api.exchangerate-api.com/v4/latest/USD" validate:"required,url"`
	TTL             time.Duration `yaml:"ttl" env:"RATES_TTL" env-default:"30m" validate:"gt=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"RATES_REFRESH_INTERVAL" env-default:"0s" validate:"gte=0"`
}

type SettingsConfig struct {
	URL       string `yaml:"url" env:"SETTINGS_URL" env-default:"http://localhost:5000/api/settings" validate:"required,url"`
	BasicAuth string `yaml:"basic_auth" env:"SETTINGS_BASIC_AUTH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
}

// Load reads an optional .env file, then the YAML file named by
// SETTINGS_CONFIG_PATH if set, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv(configPathEnv); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
