// Package messaging provides a NATS client wrapper for pub/sub and
// request/reply messaging between the draw services. It handles connection
// lifecycle, keyed subscriptions for reveal watchers, and the subjects used
// to hand notifications to the mailer service.
package messaging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across the draw services.
const (
	SubjectNotifyEmail   = "notify.email"   // request/reply, queue group QueueMailers
	SubjectReveal        = "reveal"         // + .<reveal_token>
	SubjectDrawCompleted = "draw.completed" // summary of every finished draw

	QueueMailers = "mailers"
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "giftdraw",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Request sends data to subject and waits for a single reply. The wait is
// bounded by ctx, which should carry a deadline.
func (c *NATSClient) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// QueueSubscribe registers a handler in a queue group, so each message is
// delivered to only one member of the group.
func (c *NATSClient) QueueSubscribe(subject, queue string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return fmt.Errorf("nats queue subscribe %s/%s: %w", subject, queue, err)
	}

	c.mu.Lock()
	c.subs[subject+"#"+queue] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeNotifyEmail joins the mailer queue group on notify.email. The
// handler's return value is sent back as the reply.
func (c *NATSClient) SubscribeNotifyEmail(handler func(data []byte) []byte) error {
	return c.QueueSubscribe(SubjectNotifyEmail, QueueMailers, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			log.Printf("[nats] respond on %s: %v", SubjectNotifyEmail, err)
		}
	})
}

// SubscribeReveal subscribes to reveal.<token> on behalf of one connection.
// The subscription is keyed by connID so several connections on the same
// server can watch the same token without overwriting each other. Callers
// must pass a validated token; wildcards are not rejected here.
func (c *NATSClient) SubscribeReveal(token, connID string, handler func(data []byte)) error {
	subject := SubjectReveal + "." + token
	key := "revealsub:" + connID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	old := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	// A connection watches one token at a time.
	if old != nil {
		if err := old.Unsubscribe(); err != nil {
			log.Printf("[nats] replace %s: %v", key, err)
		}
	}
	return nil
}

// UnsubscribeReveal removes a connection's reveal subscription.
func (c *NATSClient) UnsubscribeReveal(connID string) error {
	return c.unsubscribe("revealsub:" + connID)
}

// PublishReveal publishes data to reveal.<token>.
func (c *NATSClient) PublishReveal(token string, data []byte) error {
	return c.Publish(SubjectReveal+"."+token, data)
}

// PublishDrawCompleted publishes a draw summary to draw.completed.
func (c *NATSClient) PublishDrawCompleted(data []byte) error {
	return c.Publish(SubjectDrawCompleted, data)
}

// SubscribeDrawCompleted subscribes to draw summaries.
func (c *NATSClient) SubscribeDrawCompleted(handler func(data []byte)) error {
	return c.Subscribe(SubjectDrawCompleted, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Flush blocks until the server has processed everything sent so far.
func (c *NATSClient) Flush() error {
	return c.conn.Flush()
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
