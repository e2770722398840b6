package config

import "time"

const defaultPort = 8080

const (
	FeedModePoll  = "poll"
	FeedModeKafka = "kafka"
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "orders_db",
}

var defaultFeed = Feed{
	Mode:         FeedModePoll,
	PollInterval: 2 * time.Second,
}

var defaultKafka = Kafka{
	GroupID: "order-engine",
	Topic:   "orders.changes",
}

var defaultRabbitMQ = RabbitMQ{
	Exchange: "notifications",
}

var defaultEngine = Engine{
	TickInterval:      time.Second,
	AutoCancelGrace:   3 * time.Minute,
	AutoCancelTimeout: 10 * time.Second,
}

var defaultTransition = Transition{
	WriteTimeout:     3 * time.Second,
	NotifyTimeout:    15 * time.Second,
	RetryMaxAttempts: 4,
	RetryBaseDelay:   150 * time.Millisecond,
	RetryMaxDelay:    2 * time.Second,
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultEngine returns the default engine timings.
func DefaultEngine() Engine {
	return defaultEngine
}

// DefaultTransition returns the default transition executor settings.
func DefaultTransition() Transition {
	return defaultTransition
}
