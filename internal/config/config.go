package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores the order engine service settings.
type Config struct {
	Port        int      `env:"PORT"`
	LogFormat   string   `env:"LOG_FORMAT"`
	LogLevel    string   `env:"LOG_LEVEL"`
	Restaurants []string `env:"RESTAURANTS" envSeparator:","`

	DB         DB
	Feed       Feed
	Kafka      Kafka
	RabbitMQ   RabbitMQ
	Engine     Engine
	Transition Transition
}

// DB stores PostgreSQL connection settings.
type DB struct {
	Host string `env:"POSTGRES_HOST"`
	Port string `env:"POSTGRES_PORT"`
	User string `env:"POSTGRES_USER"`
	Pass string `env:"POSTGRES_PASSWORD"`
	Name string `env:"POSTGRES_DB"`
}

// DSN builds a postgres connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Feed selects the live order feed backend.
type Feed struct {
	Mode         string        `env:"FEED_MODE"`
	PollInterval time.Duration `env:"FEED_POLL_INTERVAL"`
}

// Kafka stores the order change stream settings.
type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	GroupID string   `env:"KAFKA_GROUP_ID"`
	Topic   string   `env:"KAFKA_ORDERS_TOPIC"`
}

// RabbitMQ stores the notification broker settings. An empty URL disables publishing.
type RabbitMQ struct {
	URL      string `env:"RABBITMQ_URL"`
	Exchange string `env:"RABBITMQ_EXCHANGE"`
}

// Engine stores timer settings.
type Engine struct {
	TickInterval      time.Duration `env:"ENGINE_TICK_INTERVAL"`
	AutoCancelGrace   time.Duration `env:"ENGINE_AUTO_CANCEL_GRACE"`
	AutoCancelTimeout time.Duration `env:"ENGINE_AUTO_CANCEL_TIMEOUT"`
}

// Transition stores transition executor settings.
type Transition struct {
	WriteTimeout     time.Duration `env:"TRANSITION_WRITE_TIMEOUT"`
	NotifyTimeout    time.Duration `env:"TRANSITION_NOTIFY_TIMEOUT"`
	RetryMaxAttempts int           `env:"AUTO_CANCEL_MAX_ATTEMPTS"`
	RetryBaseDelay   time.Duration `env:"AUTO_CANCEL_RETRY_BASE_DELAY"`
	RetryMaxDelay    time.Duration `env:"AUTO_CANCEL_RETRY_MAX_DELAY"`
}

// Load reads configuration in order: defaults → .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:       defaultPort,
		LogFormat:  "json",
		LogLevel:   "info",
		DB:         defaultDB,
		Feed:       defaultFeed,
		Kafka:      defaultKafka,
		RabbitMQ:   defaultRabbitMQ,
		Engine:     defaultEngine,
		Transition: defaultTransition,
	}

	sections := []struct {
		name string
		dst  any
	}{
		{"service", cfg},
		{"postgres", &cfg.DB},
		{"feed", &cfg.Feed},
		{"kafka", &cfg.Kafka},
		{"rabbitmq", &cfg.RabbitMQ},
		{"engine", &cfg.Engine},
		{"transition", &cfg.Transition},
	}
	for _, s := range sections {
		if err := env.Parse(s.dst); err != nil {
			return nil, fmt.Errorf("parse %s env: %w", s.name, err)
		}
	}

	restaurants := strings.Join(cfg.Restaurants, ",")
	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.Feed.Mode, "feed", cfg.Feed.Mode, "live order feed backend: poll or kafka")
	pflag.StringVar(&restaurants, "restaurants", restaurants, "comma separated restaurant ids to start engines for")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	cfg.Restaurants = splitList(restaurants)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if _, err := strconv.Atoi(c.DB.Port); err != nil {
		return fmt.Errorf("invalid postgres port %q: %w", c.DB.Port, err)
	}
	switch c.Feed.Mode {
	case FeedModePoll:
		if c.Feed.PollInterval <= 0 {
			return fmt.Errorf("invalid feed poll interval: %s", c.Feed.PollInterval)
		}
	case FeedModeKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
			return fmt.Errorf("kafka feed requires brokers, topic and group id")
		}
	default:
		return fmt.Errorf("unknown feed mode: %q", c.Feed.Mode)
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("invalid engine tick interval: %s", c.Engine.TickInterval)
	}
	if c.Engine.AutoCancelGrace <= 0 {
		return fmt.Errorf("invalid auto-cancel grace: %s", c.Engine.AutoCancelGrace)
	}
	if c.Transition.RetryMaxAttempts < 1 {
		return fmt.Errorf("invalid auto-cancel max attempts: %d", c.Transition.RetryMaxAttempts)
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
