// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path"`
	RabbitConnectionString  string `yaml:"rabbit_connection_string"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Provider                `yaml:"provider"`
	Telegram                `yaml:"telegram"`
	Engine                  `yaml:"engine"`
	JWTToken                `yaml:"jwttoken"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// Provider структура для настройки клиента платёжного провайдера
type Provider struct {
	ShopID        string        `yaml:"shop_id"`
	SecretKey     string        `yaml:"secret_key"`
	APIURL        string        `yaml:"api_url"`
	Timeout       time.Duration `yaml:"timeout"`
	WebhookSecret string        `yaml:"webhook_secret"`
	ReturnURL     string        `yaml:"return_url"`
}

// Telegram структура для настройки клиента Telegram Bot API
type Telegram struct {
	BotToken   string        `yaml:"bot_token"`
	APIURL     string        `yaml:"api_url"`
	TimeoutBot time.Duration `yaml:"timeoutbot"`
}

// Engine структура с параметрами движка подписок
type Engine struct {
	IntentTTL        time.Duration `yaml:"intent_ttl"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	GateRetries      int           `yaml:"gate_retries"`
	GateRetryBackoff time.Duration `yaml:"gate_retry_backoff"`
}

// JWTToken структура для работы с jwt-токеном администратора
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// MustLoad функция для загрузки конфига, путь берётся из переменной окружения CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.IntentTTL == 0 {
		cfg.IntentTTL = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.GateRetries == 0 {
		cfg.GateRetries = 3
	}
	if cfg.GateRetryBackoff == 0 {
		cfg.GateRetryBackoff = 150 * time.Millisecond
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 10 * time.Second
	}
	if cfg.Provider.APIURL == "" {
		cfg.Provider.APIURL = "https://api.yookassa.ru/v3"
	}
	if cfg.Telegram.TimeoutBot == 0 {
		cfg.Telegram.TimeoutBot = 10 * time.Second
	}
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
}
