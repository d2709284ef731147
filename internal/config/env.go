// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Notification delivery modes.
const (
	NotifySMTP = "smtp" // send email directly from the draw server
	NotifyNATS = "nats" // relay to the mailer service
	NotifyNone = "none" // reveal channel only
)

// SMTP holds outgoing mail settings shared by the draw server and the mailer.
type SMTP struct {
	Host     string        `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     int           `env:"SMTP_PORT" envDefault:"587"`
	User     string        `env:"EMAIL_USER"`
	Password string        `env:"EMAIL_PASS"`
	FromName string        `env:"EMAIL_FROM_NAME" envDefault:"Secret Santa"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"15s"`
}

func (s SMTP) validate() error {
	if s.User == "" {
		return fmt.Errorf("EMAIL_USER is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("SMTP_PORT %d out of range", s.Port)
	}
	return nil
}

// DrawServer configures cmd/drawserver.
type DrawServer struct {
	ListenAddr       string        `env:"LISTEN_ADDR" envDefault:":5000"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	NATSURL          string        `env:"NATS_URL"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	MaxAttempts      int           `env:"DRAW_MAX_ATTEMPTS" envDefault:"100"`
	FeasibilityCheck bool          `env:"DRAW_FEASIBILITY_CHECK" envDefault:"false"`
	NotifyMode       string        `env:"NOTIFY_MODE" envDefault:"smtp"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigin    string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	SMTP             SMTP
}

// LoadDrawServer reads and validates the draw server configuration.
func LoadDrawServer() (DrawServer, error) {
	var cfg DrawServer
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges and the settings each notify mode needs.
func (c DrawServer) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("DRAW_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.NotifyTimeout <= 0 || c.RequestTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT and REQUEST_TIMEOUT must be positive")
	}
	switch c.NotifyMode {
	case NotifySMTP:
		return c.SMTP.validate()
	case NotifyNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when NOTIFY_MODE=%s", NotifyNATS)
		}
	case NotifyNone:
	default:
		return fmt.Errorf("NOTIFY_MODE must be one of %s, %s, %s; got %q",
			NotifySMTP, NotifyNATS, NotifyNone, c.NotifyMode)
	}
	return nil
}

// Mailer configures cmd/mailer.
type Mailer struct {
	NATSURL string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	SMTP    SMTP
}

// LoadMailer reads and validates the mailer configuration.
func LoadMailer() (Mailer, error) {
	var cfg Mailer
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.SMTP.validate()
}

// RevealServer configures cmd/revealserver.
type RevealServer struct {
	ListenAddr     string        `env:"LISTEN_ADDR" envDefault:":8080"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	NATSURL        string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	ServerName     string        `env:"SERVER_NAME"`
	WorkerPoolSize int           `env:"WORKER_POOL_SIZE" envDefault:"256"`
	MaxConnections int           `env:"MAX_CONNECTIONS" envDefault:"100000"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

// LoadRevealServer reads and validates the reveal server configuration.
func LoadRevealServer() (RevealServer, error) {
	var cfg RevealServer
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.WorkerPoolSize < 1 || cfg.MaxConnections < 1 {
		return cfg, fmt.Errorf("WORKER_POOL_SIZE and MAX_CONNECTIONS must be positive")
	}
	return cfg, nil
}
