package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"GIFTDRAW_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("GIFTDRAW_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDrawServerDefaults(t *testing.T) {
	t.Setenv("EMAIL_USER", "santa@example.com")

	cfg, err := LoadDrawServer()
	if err != nil {
		t.Fatalf("LoadDrawServer: %v", err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, want :5000", cfg.ListenAddr)
	}
	if cfg.MaxAttempts != 100 {
		t.Errorf("MaxAttempts = %d, want 100", cfg.MaxAttempts)
	}
	if cfg.FeasibilityCheck {
		t.Error("FeasibilityCheck should default to false")
	}
	if cfg.NotifyMode != NotifySMTP {
		t.Errorf("NotifyMode = %q, want %q", cfg.NotifyMode, NotifySMTP)
	}
	if cfg.RequestTimeout != 30*time.Second || cfg.NotifyTimeout != 10*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.RequestTimeout, cfg.NotifyTimeout)
	}
	if cfg.SMTP.Host != "smtp.gmail.com" || cfg.SMTP.Port != 587 {
		t.Errorf("SMTP = %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}
}

func TestLoadDrawServerOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DRAW_MAX_ATTEMPTS", "250")
	t.Setenv("DRAW_FEASIBILITY_CHECK", "true")
	t.Setenv("NOTIFY_MODE", "none")

	cfg, err := LoadDrawServer()
	if err != nil {
		t.Fatalf("LoadDrawServer: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.MaxAttempts != 250 || !cfg.FeasibilityCheck || cfg.NotifyMode != NotifyNone {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDrawServerValidate(t *testing.T) {
	base := DrawServer{
		MaxAttempts:    100,
		NotifyMode:     NotifyNone,
		NotifyTimeout:  time.Second,
		RequestTimeout: time.Second,
		SMTP:           SMTP{Port: 587},
	}

	tests := []struct {
		name    string
		mutate  func(*DrawServer)
		wantErr string
	}{
		{"valid none", func(*DrawServer) {}, ""},
		{"zero attempts", func(c *DrawServer) { c.MaxAttempts = 0 }, "DRAW_MAX_ATTEMPTS"},
		{"smtp without user", func(c *DrawServer) { c.NotifyMode = NotifySMTP }, "EMAIL_USER"},
		{"smtp with user", func(c *DrawServer) { c.NotifyMode = NotifySMTP; c.SMTP.User = "a@b.c" }, ""},
		{"nats without url", func(c *DrawServer) { c.NotifyMode = NotifyNATS }, "NATS_URL"},
		{"nats with url", func(c *DrawServer) { c.NotifyMode = NotifyNATS; c.NATSURL = "nats://x" }, ""},
		{"unknown mode", func(c *DrawServer) { c.NotifyMode = "pigeon" }, "NOTIFY_MODE"},
		{"zero timeout", func(c *DrawServer) { c.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMailerRequiresUser(t *testing.T) {
	t.Setenv("EMAIL_USER", "")
	if _, err := LoadMailer(); err == nil {
		t.Fatal("expected error without EMAIL_USER")
	}

	t.Setenv("EMAIL_USER", "santa@example.com")
	cfg, err := LoadMailer()
	if err != nil {
		t.Fatalf("LoadMailer: %v", err)
	}
	if cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
}

func TestLoadRevealServer(t *testing.T) {
	t.Setenv("WORKER_POOL_SIZE", "8")

	cfg, err := LoadRevealServer()
	if err != nil {
		t.Fatalf("LoadRevealServer: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.WorkerPoolSize != 8 {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("MAX_CONNECTIONS", "0")
	if _, err := LoadRevealServer(); err == nil {
		t.Error("expected error for MAX_CONNECTIONS=0")
	}
}
