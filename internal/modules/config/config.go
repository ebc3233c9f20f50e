package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"divergence_bot/internal/models"
	divergence "divergence_bot/internal/modules/divergence/service"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_BOT_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
)

const (
	PriceSourceVariational = "variational"
	PriceSourceOKX         = "okx"
)

// Config: стартовая конфигурация процесса.
// engine задаёт только начальные Params, дальше они живут в ParamStore.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	DB       string         `yaml:"db_dsn"`
	Service struct {
		Name       string `yaml:"name"`
		HealthAddr string `yaml:"health_addr"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
	LogLevel string `yaml:"log_level"`

	Price  PriceConfig   `yaml:"price"`
	Engine models.Params `yaml:"engine"`
}

type TelegramConfig struct {
	Token       string        `yaml:"token"`
	ChatID      int64         `yaml:"chat_id"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type PriceConfig struct {
	Source     string        `yaml:"source"` // variational | okx
	BaseURL    string        `yaml:"base_url"`
	Endpoint   string        `yaml:"endpoint"`
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Freshness  time.Duration `yaml:"freshness"` // котировка старше: нет сэмпла
}

func defaults() Config {
	var c Config
	c.Telegram.SendTimeout = 15 * time.Second
	c.Service.Name = "divergence_bot"
	c.Service.HealthAddr = ":8080"
	c.Jaeger.Port = 6831
	c.LogLevel = "info"
	c.Price = PriceConfig{
		Source:     PriceSourceVariational,
		BaseURL:    "https://omni-client-api.prod.ap-northeast-1.variational.io",
		Endpoint:   "/metadata/stats",
		WSURL:      "wss://ws.okx.com:8443/ws/v5/public",
		Timeout:    30 * time.Second,
		RatePerSec: 1,
		Freshness:  10 * time.Minute,
	}
	c.Engine = models.DefaultParams()
	return c
}

func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	dir := getenvDefault(configDirENV, "configs")
	name := getenvDefault(configFilePathENV, "values_local.yaml")

	config := defaults()
	file, err := os.Open(filepath.Join(dir, name))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// работаем на дефолтах + env
	case err != nil:
		return nil, fmt.Errorf("open config file: %w", err)
	default:
		defer func() {
			_ = file.Close()
		}()
		if err := Decode(file, &config); err != nil {
			return nil, err
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Decode читает YAML поверх уже выставленных значений.
func Decode(r io.Reader, config *Config) error {
	err := yaml.NewDecoder(r).Decode(config)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv(tokenTelegramENV); token != "" {
		c.Telegram.Token = token
	}
	if v := os.Getenv(chatTelegramENV); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		c.DB = dsn
	}
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.Service.HealthAddr = getenvDefault("HEALTH_ADDR", c.Service.HealthAddr)
	c.Jaeger.Host = getenvDefault("JAEGER_HOST", c.Jaeger.Host)
	c.Jaeger.Port = intFromEnv("JAEGER_PORT", c.Jaeger.Port)
	c.Price.Source = strings.ToLower(getenvDefault("PRICE_SOURCE", c.Price.Source))
	c.Price.Timeout = durationFromEnv("PRICE_TIMEOUT", c.Price.Timeout)
	c.Price.RatePerSec = floatFromEnv("PRICE_RATE_PER_SEC", c.Price.RatePerSec)
}

func (c *Config) Validate() error {
	switch c.Price.Source {
	case PriceSourceVariational, PriceSourceOKX:
	default:
		return fmt.Errorf("price.source %q: want %s or %s", c.Price.Source, PriceSourceVariational, PriceSourceOKX)
	}
	if c.Price.Timeout <= 0 {
		return fmt.Errorf("price.timeout must be > 0")
	}
	if c.Price.Freshness <= 0 {
		return fmt.Errorf("price.freshness must be > 0")
	}
	if c.Telegram.SendTimeout <= 0 {
		return fmt.Errorf("telegram.send_timeout must be > 0")
	}
	if err := divergence.Validate(c.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// TelegramEnabled: без токена и чата алерты только в лог.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
