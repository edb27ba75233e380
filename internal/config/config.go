package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPAddr   string `yaml:"http-addr" env:"HTTP_ADDR" env-default:":8080"`
	SQLitePath string `yaml:"sqlite-path" env:"SQLITE_PATH" env-default:"./master.db"`
	JWTSecret  string `yaml:"jwt-secret" env:"JWT_SECRET" env-default:"change-me"`
	Redis      Redis  `yaml:"redis"`
	Otel       Otel   `yaml:"otel"`
	Hub        Hub    `yaml:"hub"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr    string `yaml:"addr" env:"REDIS_CONNSTRING" env-default:"localhost:6379"`
}

type Otel struct {
	Enabled     bool   `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"otel-collector:4317"`
	ServiceName string `yaml:"service-name" env:"OTEL_SERVICE_NAME" env-default:"tictactoe-rooms"`
}

type Hub struct {
	SweepInterval time.Duration `yaml:"sweep-interval" env:"HUB_SWEEP_INTERVAL" env-default:"30s"`
	GameOverDelay time.Duration `yaml:"game-over-delay" env:"HUB_GAME_OVER_DELAY" env-default:"1s"`
	SendBuffer    int           `yaml:"send-buffer" env:"HUB_SEND_BUFFER" env-default:"32"`
	BotThinkTime  time.Duration `yaml:"bot-think-time" env:"HUB_BOT_THINK_TIME" env-default:"500ms"`
}

// Load reads the yaml file at path, or only the environment when path is empty.
func Load(path string) (*Config, error) {
	config := &Config{}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(config)
	} else {
		err = cleanenv.ReadConfig(path, config)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}
	return config, nil
}

// MustLoad - load all configurations, panicking on failure.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}
	return config
}
