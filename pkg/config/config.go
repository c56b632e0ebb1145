package config

import (
	"log"
	"os"
	"time"

	"github.com/arnaudmaillet/core-platform-sub000/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Cache    Redis    `yaml:"cache"`
	Counters Redis    `yaml:"counters"`
	Kafka    Kafka    `yaml:"kafka"`
	Outbox   Outbox   `yaml:"outbox"`
	Executor Executor `yaml:"executor"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr string        `yaml:"addr" env-default:"localhost:6379"`
	DB   int           `yaml:"db" env-default:"0"`
	TTL  time.Duration `yaml:"ttl" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"identity.events"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
}

// Executor bounds the optimistic concurrency retry loop.
type Executor struct {
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	BaseBackoff time.Duration `yaml:"base_backoff" env-default:"20ms"`
}

func MustLoad() *Config {
	configPath := utils.EnvOr("CONFIG_PATH", "./config/local.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
