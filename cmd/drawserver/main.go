package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/secretsanta/giftdraw/internal/ban"
	"github.com/secretsanta/giftdraw/internal/config"
	"github.com/secretsanta/giftdraw/internal/draw"
	"github.com/secretsanta/giftdraw/internal/gateway"
	"github.com/secretsanta/giftdraw/internal/messaging"
	"github.com/secretsanta/giftdraw/internal/moderation"
	"github.com/secretsanta/giftdraw/internal/notify"
	"github.com/secretsanta/giftdraw/internal/ratelimit"
	"github.com/secretsanta/giftdraw/internal/record"
	"github.com/secretsanta/giftdraw/internal/reveal"
)

func main() {
	log.Println("Starting gift draw server...")

	cfg, err := config.LoadDrawServer()
	if err != nil {
		config.Exitf("drawserver: %v", err)
	}

	engine := draw.NewEngine(
		draw.WithMaxAttempts(cfg.MaxAttempts),
		draw.WithFeasibilityCheck(cfg.FeasibilityCheck),
	)
	opts := []gateway.Option{gateway.WithFilter(moderation.NewFilter())}

	// Redis setup. Without Redis there is no rate limiting, no client
	// blocking and no stored reveals.
	var (
		rdb         *redis.Client
		revealStore reveal.Saver
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		cancel()

		opts = append(opts,
			gateway.WithLimiter(ratelimit.NewLimiter(rdb)),
			gateway.WithBlocker(ban.NewStore(rdb)),
		)
		revealStore = reveal.NewStore(rdb)
	}

	// NATS setup. Needed for the mailer relay, live reveals and
	// draw.completed events.
	var (
		natsClient *messaging.NATSClient
		revealBus  reveal.Broadcaster
	)
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "giftdraw-drawserver"
		natsClient, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		opts = append(opts, gateway.WithCompletionPublisher(natsClient))
		revealBus = natsClient
	}

	// PostgreSQL audit trail.
	var records *record.Store
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		records, err = record.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("failed to open draw records: %v", err)
		}
		opts = append(opts, gateway.WithRecorder(records))
	}

	sender, err := newSender(cfg, natsClient)
	if err != nil {
		log.Fatalf("failed to set up notifications: %v", err)
	}

	dispatcherOpts := []notify.DispatcherOption{notify.WithSendTimeout(cfg.NotifyTimeout)}
	if revealStore != nil || revealBus != nil {
		dispatcherOpts = append(dispatcherOpts, notify.WithRevealer(reveal.NewPublisher(revealStore, revealBus)))
	}
	dispatcher := notify.NewDispatcher(sender, cfg.NotifyMode, dispatcherOpts...)

	handler := gateway.NewHandler(gateway.Config{
		AllowedOrigin:  cfg.AllowedOrigin,
		RequestTimeout: cfg.RequestTimeout,
	}, engine, dispatcher, opts...)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("Gift draw server running")
	log.Printf("  listen_addr:       %s", cfg.ListenAddr)
	log.Printf("  max_attempts:      %d", cfg.MaxAttempts)
	log.Printf("  feasibility_check: %t", cfg.FeasibilityCheck)
	log.Printf("  notify_mode:       %s", cfg.NotifyMode)
	log.Printf("  redis_addr:        %s", enabled(cfg.RedisAddr))
	log.Printf("  nats_url:          %s", enabled(cfg.NATSURL))
	log.Printf("  draw_records:      %t", records != nil)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	if natsClient != nil {
		natsClient.Close()
	}
	if records != nil {
		records.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
}

// newSender returns the notification transport for the configured mode.
func newSender(cfg config.DrawServer, natsClient *messaging.NATSClient) (notify.Sender, error) {
	switch cfg.NotifyMode {
	case config.NotifyNATS:
		return notify.NewRelay(natsClient, cfg.NotifyTimeout), nil
	case config.NotifyNone:
		return notify.Discard{}, nil
	default:
		return notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			FromName: cfg.SMTP.FromName,
			Timeout:  cfg.SMTP.Timeout,
		})
	}
}

// enabled returns value, or "disabled" for an unset optional backend.
func enabled(value string) string {
	if value == "" {
		return "disabled"
	}
	return value
}
