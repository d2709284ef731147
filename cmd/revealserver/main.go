package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/secretsanta/giftdraw/internal/config"
	"github.com/secretsanta/giftdraw/internal/messaging"
	"github.com/secretsanta/giftdraw/internal/ratelimit"
	"github.com/secretsanta/giftdraw/internal/reveal"
	"github.com/secretsanta/giftdraw/internal/ws"
)

func main() {
	cfg, err := config.LoadRevealServer()
	if err != nil {
		config.Exitf("revealserver: %v", err)
	}

	serverName := cfg.ServerName
	if serverName == "" {
		serverName, _ = os.Hostname()
	}
	if serverName == "" {
		serverName = "reveal-1"
	}

	wsConfig := ws.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "giftdraw-reveal-" + serverName
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	log.Printf("Gift draw reveal server starting")
	log.Printf("  listen_addr:     %s", wsConfig.ListenAddr)
	log.Printf("  worker_pool:     %d", wsConfig.WorkerPoolSize)
	log.Printf("  max_connections: %d", wsConfig.MaxConnections)
	log.Printf("  read_timeout:    %s", wsConfig.ReadTimeout)
	log.Printf("  write_timeout:   %s", wsConfig.WriteTimeout)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", cfg.RedisAddr)
	log.Printf("  server_name:     %s", serverName)

	dispatcher := ws.NewMessageDispatcher()
	server := ws.NewServer(wsConfig, dispatcher.Dispatch)
	server.SetConnLimiter(ratelimit.NewLimiter(rdb))

	watchers := ws.NewWatchers(server, reveal.NewStore(rdb), natsClient)
	watchers.Register(dispatcher)
	server.SetOnDisconnect(watchers.Disconnected)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	if err := server.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	natsClient.Close()
	rdb.Close()
}
