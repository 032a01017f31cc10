package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Engine  EngineConfig  `yaml:"engine" toml:"engine"`
	Account AccountConfig `yaml:"account" toml:"account"`
	Feed    FeedConfig    `yaml:"feed" toml:"feed"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Events  EventsConfig  `yaml:"events" toml:"events"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// EngineConfig controla el ciclo de vida de los wagers.
type EngineConfig struct {
	Symbol                 string  `yaml:"symbol" toml:"symbol"`
	Kind                   string  `yaml:"kind" toml:"kind"` // direction | range
	PayoutMultiplier       float64 `yaml:"payout_multiplier" toml:"payout_multiplier"`
	DefaultDurationSeconds int     `yaml:"default_duration_seconds" toml:"default_duration_seconds"`
	RangeBand              float64 `yaml:"range_band" toml:"range_band"` // semi-ancho de la banda
	PriceAttempts          int     `yaml:"price_attempts" toml:"price_attempts"`
	AttemptTimeoutMs       int     `yaml:"attempt_timeout_ms" toml:"attempt_timeout_ms"`
	RetryBackoffMs         int     `yaml:"retry_backoff_ms" toml:"retry_backoff_ms"`
	CountdownIntervalMs    int     `yaml:"countdown_interval_ms" toml:"countdown_interval_ms"`
}

// AccountConfig es el balance con el que arranca una cuenta nueva.
type AccountConfig struct {
	InitialBalance float64 `yaml:"initial_balance" toml:"initial_balance"`
}

// FeedConfig elige la fuente de precios.
type FeedConfig struct {
	Source              string  `yaml:"source" toml:"source"` // rest | stream | composite | sim
	RESTBase            string  `yaml:"rest_base" toml:"rest_base"`
	StreamURL           string  `yaml:"stream_url" toml:"stream_url"`
	RatePerSec          float64 `yaml:"rate_per_sec" toml:"rate_per_sec"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`
	MaxQuoteAgeMs       int     `yaml:"max_quote_age_ms" toml:"max_quote_age_ms"`
}

// StorageConfig controla dónde se persisten balance e historial.
type StorageConfig struct {
	Driver    string `yaml:"driver" toml:"driver"` // sqlite | redis | postgres | memory
	DSN       string `yaml:"dsn" toml:"dsn"`       // ruta SQLite o DSN de Postgres
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix" toml:"key_prefix"`
}

// EventsConfig habilita la publicación de liquidaciones en Kafka.
type EventsConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers" toml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic" toml:"kafka_topic"`
}

// MetricsConfig: puerto vacío desactiva el servidor.
type MetricsConfig struct {
	Port string `yaml:"port" toml:"port"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug | info | warn | error
	Format string `yaml:"format" toml:"format"` // text | json
}

// Load carga la configuración desde el archivo (YAML, o TOML si termina en
// .toml) y el archivo .env si existe. Las variables de entorno sobreescriben
// los valores del archivo.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse TOML: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Default devuelve la configuración por defecto, sin archivo.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// Multiplier devuelve el multiplicador de payout como decimal.
func (c *Config) Multiplier() decimal.Decimal {
	return decimal.NewFromFloat(c.Engine.PayoutMultiplier)
}

// InitialBalance devuelve el balance inicial como decimal.
func (c *Config) InitialBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Account.InitialBalance)
}

// RangeBand devuelve el semi-ancho por defecto de la banda.
func (c *Config) RangeBand() decimal.Decimal {
	return decimal.NewFromFloat(c.Engine.RangeBand)
}

// DefaultDuration devuelve la duración por defecto de un wager.
func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.Engine.DefaultDurationSeconds) * time.Second
}

// AttemptTimeout acota cada intento de obtener precio.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Engine.AttemptTimeoutMs) * time.Millisecond
}

// RetryBackoff es la espera base entre intentos.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Engine.RetryBackoffMs) * time.Millisecond
}

// CountdownInterval es el periodo del tick de display.
func (c *Config) CountdownInterval() time.Duration {
	return time.Duration(c.Engine.CountdownIntervalMs) * time.Millisecond
}

// PollInterval es el periodo del poll de display.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Feed.PollIntervalSeconds) * time.Second
}

// MaxQuoteAge es la edad máxima de un quote cacheado.
func (c *Config) MaxQuoteAge() time.Duration {
	return time.Duration(c.Feed.MaxQuoteAgeMs) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("WAGERBOT_SYMBOL"); v != "" {
		cfg.Engine.Symbol = v
	}
	if v := os.Getenv("WAGERBOT_FEED_SOURCE"); v != "" {
		cfg.Feed.Source = v
	}
	if v := os.Getenv("WAGERBOT_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("WAGERBOT_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Metrics.Port = v
	}
	if v := os.Getenv("WAGERBOT_INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Account.InitialBalance = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.Symbol == "" {
		cfg.Engine.Symbol = "BTCUSDT"
	}
	cfg.Engine.Symbol = strings.ToUpper(cfg.Engine.Symbol)
	if cfg.Engine.Kind == "" {
		cfg.Engine.Kind = "direction"
	}
	if cfg.Engine.PayoutMultiplier <= 0 {
		cfg.Engine.PayoutMultiplier = 1.9
	}
	if cfg.Engine.DefaultDurationSeconds <= 0 {
		cfg.Engine.DefaultDurationSeconds = 60
	}
	if cfg.Engine.RangeBand <= 0 {
		cfg.Engine.RangeBand = 100
	}
	if cfg.Engine.PriceAttempts <= 0 {
		cfg.Engine.PriceAttempts = 3
	}
	if cfg.Engine.AttemptTimeoutMs <= 0 {
		cfg.Engine.AttemptTimeoutMs = 2000
	}
	if cfg.Engine.RetryBackoffMs <= 0 {
		cfg.Engine.RetryBackoffMs = 500
	}
	if cfg.Engine.CountdownIntervalMs <= 0 {
		cfg.Engine.CountdownIntervalMs = 1000
	}
	if cfg.Account.InitialBalance <= 0 {
		cfg.Account.InitialBalance = 1000
	}
	if cfg.Feed.Source == "" {
		cfg.Feed.Source = "rest"
	}
	if cfg.Feed.PollIntervalSeconds <= 0 {
		cfg.Feed.PollIntervalSeconds = 5
	}
	if cfg.Feed.MaxQuoteAgeMs <= 0 {
		cfg.Feed.MaxQuoteAgeMs = 1000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "wagerbot.db"
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = "localhost:6379"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "wagerbot:"
	}
	if cfg.Events.KafkaTopic == "" {
		cfg.Events.KafkaTopic = "wagerbot.settlements"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Engine.Kind {
	case "direction", "range":
	default:
		return fmt.Errorf("engine.kind must be direction or range, got %q", c.Engine.Kind)
	}
	switch c.Feed.Source {
	case "rest", "stream", "composite", "sim":
	default:
		return fmt.Errorf("feed.source must be rest, stream, composite or sim, got %q", c.Feed.Source)
	}
	switch c.Storage.Driver {
	case "sqlite", "redis", "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite, redis, postgres or memory, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for postgres")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
