package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/secretsanta/giftdraw/internal/metrics"
	"github.com/secretsanta/giftdraw/internal/protocol"
	"github.com/secretsanta/giftdraw/internal/reveal"
)

// RevealSource looks up stored reveals.
type RevealSource interface {
	Get(ctx context.Context, token string) (*reveal.Reveal, error)
}

// RevealBus delivers live reveals, one subscription per connection.
type RevealBus interface {
	SubscribeReveal(token, connID string, handler func(data []byte)) error
	UnsubscribeReveal(connID string) error
}

// Watchers implements the watch and unwatch messages. A connection watches at
// most one reveal token and receives the assignment behind it when it is
// stored or published. Tokens are never logged.
type Watchers struct {
	server *Server
	store  RevealSource
	bus    RevealBus

	mu       sync.Mutex
	watching map[string]string // conn_id -> reveal token
}

// NewWatchers creates the watch handlers for server. store may be nil to
// disable replay of earlier draws.
func NewWatchers(server *Server, store RevealSource, bus RevealBus) *Watchers {
	return &Watchers{
		server:   server,
		store:    store,
		bus:      bus,
		watching: make(map[string]string),
	}
}

// Register installs the handlers on d.
func (w *Watchers) Register(d *MessageDispatcher) {
	d.Register(protocol.TypeWatch, w.handleWatch)
	d.Register(protocol.TypeUnwatch, w.handleUnwatch)
}

// Watching returns the token a connection watches, or "".
func (w *Watchers) Watching(connID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching[connID]
}

// handleWatch subscribes before replaying the stored reveal so a reveal
// published in between is not lost. The client may then see the same
// assignment twice.
func (w *Watchers) handleWatch(conn *Connection, msg interface{}) {
	watch, ok := msg.(protocol.WatchMsg)
	if !ok {
		return
	}
	connID := conn.ID

	// Only well-formed tokens reach the store and the bus, which also keeps
	// NATS wildcards out of the subject.
	parsed, err := uuid.Parse(watch.Token)
	if err != nil {
		sendError(conn, "invalid_token", "reveal code is not valid")
		return
	}
	token := parsed.String()

	if err := w.bus.SubscribeReveal(token, connID, func(data []byte) {
		start := time.Now()
		if err := w.server.SendMessage(connID, data); err != nil {
			log.Printf("[ws] reveal delivery to conn=%s failed: %v", connID, err)
			return
		}
		metrics.RevealLatency.Observe(time.Since(start).Seconds())
	}); err != nil {
		log.Printf("[ws] watch conn=%s: %v", connID, err)
		sendError(conn, "watch_failed", "could not watch reveal")
		return
	}

	w.mu.Lock()
	_, already := w.watching[connID]
	w.watching[connID] = token
	w.mu.Unlock()
	if !already {
		metrics.WatchersTotal.Inc()
	}

	confirm, err := protocol.NewServerMessage(protocol.TypeWatching, protocol.WatchingMsg{
		Token: token,
	})
	if err == nil {
		_ = w.server.SendMessage(connID, confirm)
	}

	w.replay(connID, token)
	log.Printf("[ws] conn=%s watching", connID)
}

func (w *Watchers) replay(connID, token string) {
	if w.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	r, err := w.store.Get(ctx, token)
	if err != nil {
		log.Printf("[ws] replay conn=%s: %v", connID, err)
		return
	}
	if r == nil {
		return
	}

	data, err := r.Encode()
	if err != nil {
		log.Printf("[ws] replay encode draw=%s: %v", r.DrawID, err)
		return
	}
	if err := w.server.SendMessage(connID, data); err != nil {
		log.Printf("[ws] replay to conn=%s failed: %v", connID, err)
	}
}

func (w *Watchers) handleUnwatch(conn *Connection, _ interface{}) {
	w.release(conn.ID)
}

// Disconnected releases the watch of a closed connection. Pass it to
// Server.SetOnDisconnect.
func (w *Watchers) Disconnected(connID string) {
	w.release(connID)
}

func (w *Watchers) release(connID string) {
	w.mu.Lock()
	_, ok := w.watching[connID]
	delete(w.watching, connID)
	w.mu.Unlock()
	if !ok {
		return
	}

	metrics.WatchersTotal.Dec()
	if err := w.bus.UnsubscribeReveal(connID); err != nil {
		log.Printf("[ws] unwatch conn=%s: %v", connID, err)
	}
}
