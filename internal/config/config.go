package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Desteles/deli-pwa-app/internal/events"
)

// DatabaseConfig Postgres connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN returns the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config of the dispatch service
type Config struct {
	HTTP struct {
		Addr  string
		Token string // bearer token of the delivery API; empty refuses every request
	}
	DBEnabled bool
	Database  DatabaseConfig

	RedisEnabled bool
	Redis        struct {
		Addr     string
		Password string
		DB       int
	}

	Log struct {
		Level  string
		Format string
	}

	Telegram struct {
		Token       string
		APIURL      string
		PollTimeout time.Duration
	}

	Dispatch struct {
		SessionTTL            time.Duration
		CompletedLimit        int
		DriverCompletedLimit  int
		DriverCompletedWindow time.Duration
		Timezone              string
	}

	Events struct {
		Sink   string // none | mqtt | redis
		Stream string
		MQTT   events.MQTTConfig
	}

	Roles struct {
		File     string // YAML roster, wins over the env lists
		Managers string // "id:Name,id:Name"
		Drivers  string
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", "127.0.0.1:8080")
	cfg.HTTP.Token = getEnv("HTTP_TOKEN", "")

	// Without a database the in-memory store is used; records do not survive restarts.
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "dispatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "true") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Telegram.Token = getEnv("TELEGRAM_TOKEN", "")
	cfg.Telegram.APIURL = getEnv("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.Telegram.PollTimeout = parseDuration(getEnv("TELEGRAM_POLL_TIMEOUT", "30s"), 30*time.Second)

	cfg.Dispatch.SessionTTL = parseDuration(getEnv("SESSION_TTL", "30m"), 30*time.Minute)
	cfg.Dispatch.CompletedLimit = parseInt(getEnv("COMPLETED_LIST_LIMIT", "10"), 10)
	cfg.Dispatch.DriverCompletedLimit = parseInt(getEnv("DRIVER_COMPLETED_LIMIT", "5"), 5)
	days := parseInt(getEnv("DRIVER_COMPLETED_WINDOW_DAYS", "30"), 30)
	cfg.Dispatch.DriverCompletedWindow = time.Duration(days) * 24 * time.Hour
	cfg.Dispatch.Timezone = getEnv("DISPATCH_TIMEZONE", "Local")

	cfg.Events.Sink = getEnv("EVENTS_SINK", "none")
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "dispatch:events")
	cfg.Events.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.Events.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "deli-dispatch")
	cfg.Events.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.Events.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.Events.MQTT.Topic = getEnv("MQTT_TOPIC", "dispatch/deliveries")

	cfg.Roles.File = getEnv("ROLES_FILE", "")
	cfg.Roles.Managers = getEnv("MANAGERS", "")
	cfg.Roles.Drivers = getEnv("DRIVERS", "")

	return cfg
}

// Location resolves the display timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Dispatch.Timezone == "" || c.Dispatch.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Dispatch.Timezone)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
