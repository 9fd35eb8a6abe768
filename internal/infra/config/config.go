package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию виджета комментариев.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	Disqus struct {
		Site      string        `envconfig:"DISQUS_SITE"`
		APIKey    string        `envconfig:"DISQUS_API_KEY"`
		APISecret string        `envconfig:"DISQUS_API_SECRET"`
		BaseURL   string        `envconfig:"DISQUS_BASE_URL" default:"https://disqus.com/api/3.0"`
		Timeout   time.Duration `envconfig:"DISQUS_TIMEOUT" default:"15s"`
		RPS       float64       `envconfig:"DISQUS_RPS" default:"4"`
		Burst     int           `envconfig:"DISQUS_BURST" default:"8"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
