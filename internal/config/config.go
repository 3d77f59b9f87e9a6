package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Auth struct {
		JWTSecret string
	}
	Realtime struct {
		HeartbeatInterval time.Duration
	}
	Delivery struct {
		MaxRetries  int
		BackoffBase time.Duration
		RetryPause  time.Duration
	}
	Escalation struct {
		ScanInterval time.Duration
		AgeThreshold time.Duration
	}
	Push struct {
		VAPIDPublicKey  string
		VAPIDPrivateKey string
		Subscriber      string
		RatePerSecond   int
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	Dashboard struct {
		BaseURL string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
// Channel credentials are optional: a channel whose credentials are absent
// runs unconfigured and reports zero recipients without error.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Realtime auth
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	// Intervals and retry policy
	cfg.Realtime.HeartbeatInterval = envDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second)
	cfg.Delivery.MaxRetries = envInt("DELIVERY_MAX_RETRIES", 3)
	cfg.Delivery.BackoffBase = envDuration("DELIVERY_BACKOFF_BASE", time.Second)
	cfg.Delivery.RetryPause = envDuration("DELIVERY_RETRY_PAUSE", 500*time.Millisecond)
	cfg.Escalation.ScanInterval = envDuration("ESCALATION_SCAN_INTERVAL", 5*time.Minute)
	cfg.Escalation.AgeThreshold = envDuration("ESCALATION_AGE_THRESHOLD", 30*time.Minute)

	// Web Push settings (optional)
	cfg.Push.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	cfg.Push.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	cfg.Push.Subscriber = os.Getenv("VAPID_SUBSCRIBER")
	cfg.Push.RatePerSecond = envInt("PUSH_RATE_PER_SECOND", 20)

	// Email settings (optional)
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	cfg.Email.SMTPPort = envInt("EMAIL_SMTP_PORT", 587)
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// Dashboard deep links
	cfg.Dashboard.BaseURL = os.Getenv("DASHBOARD_BASE_URL")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "urgent_orders"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "meal-alert-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Dashboard.BaseURL == "" {
		cfg.Dashboard.BaseURL = "http://localhost:3000"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// PushConfigured reports whether Web Push credentials were supplied.
func (c Config) PushConfigured() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}

// EmailConfigured reports whether an SMTP account was supplied.
func (c Config) EmailConfigured() bool {
	return c.Email.SMTPServer != "" && c.Email.Username != "" && c.Email.Password != ""
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}
