package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/secretsanta/giftdraw/internal/config"
	"github.com/secretsanta/giftdraw/internal/messaging"
	"github.com/secretsanta/giftdraw/internal/notify"
)

func main() {
	log.Println("Starting gift draw mailer service...")

	cfg, err := config.LoadMailer()
	if err != nil {
		config.Exitf("mailer: %v", err)
	}

	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		FromName: cfg.SMTP.FromName,
		Timeout:  cfg.SMTP.Timeout,
	})
	if err != nil {
		log.Fatalf("failed to create mailer: %v", err)
	}

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "giftdraw-mailer"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Each request is one notification; the reply tells the draw server
	// whether the email went out.
	err = natsClient.SubscribeNotifyEmail(func(data []byte) []byte {
		reply := notify.HandleRelay(ctx, mailer, data)
		log.Printf("[mailer] handled notification: %s", reply)
		return reply
	})
	if err != nil {
		log.Fatalf("failed to subscribe to %s: %v", messaging.SubjectNotifyEmail, err)
	}

	log.Printf("Gift draw mailer service running")
	log.Printf("  nats_url:  %s", natsConfig.URL)
	log.Printf("  smtp_host: %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	log.Printf("  from:      %s <%s>", cfg.SMTP.FromName, cfg.SMTP.User)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}
